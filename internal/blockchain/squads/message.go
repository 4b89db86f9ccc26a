package squads

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const maxMessageAccounts = 255

var ErrInvalidMessage = errors.New("invalid transaction message")

type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

type AddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// TransactionMessage is the inner message a vault executes.
type TransactionMessage struct {
	NumSigners            uint8
	NumWritableSigners    uint8
	NumWritableNonSigners uint8
	AccountKeys           []solana.PublicKey
	Instructions          []CompiledInstruction
	AddressTableLookups   []AddressTableLookup
}

func (m TransactionMessage) IsSigner(i int) bool {
	return i < int(m.NumSigners)
}

func (m TransactionMessage) IsWritable(i int) bool {
	if i < int(m.NumSigners) {
		return i < int(m.NumWritableSigners)
	}
	return i-int(m.NumSigners) < int(m.NumWritableNonSigners)
}

type keyMeta struct {
	key      solana.PublicKey
	signer   bool
	writable bool
}

// CompileMessage orders the keys of ixs as the program expects:
// writable signers, readonly signers, writable non-signers, readonly non-signers.
// The vault comes first and pays.
func CompileMessage(vault solana.PublicKey, ixs []solana.Instruction) (TransactionMessage, error) {
	if len(ixs) == 0 {
		return TransactionMessage{}, fmt.Errorf("%w: no instructions", ErrInvalidMessage)
	}

	metas := []*keyMeta{{key: vault, signer: true, writable: true}}
	index := map[solana.PublicKey]*keyMeta{vault: metas[0]}
	add := func(key solana.PublicKey, signer, writable bool) {
		if m, ok := index[key]; ok {
			m.signer = m.signer || signer
			m.writable = m.writable || writable
			return
		}
		m := &keyMeta{key: key, signer: signer, writable: writable}
		index[key] = m
		metas = append(metas, m)
	}

	for _, ix := range ixs {
		add(ix.ProgramID(), false, false)
		for _, acc := range ix.Accounts() {
			add(acc.PublicKey, acc.IsSigner, acc.IsWritable)
		}
	}

	if len(metas) > maxMessageAccounts {
		return TransactionMessage{}, fmt.Errorf("%w: %d accounts", ErrInvalidMessage, len(metas))
	}

	var ordered []*keyMeta
	var msg TransactionMessage
	for _, group := range []struct{ signer, writable bool }{
		{true, true}, {true, false}, {false, true}, {false, false},
	} {
		for _, m := range metas {
			if m.signer != group.signer || m.writable != group.writable {
				continue
			}
			ordered = append(ordered, m)
			switch {
			case m.signer && m.writable:
				msg.NumWritableSigners++
				msg.NumSigners++
			case m.signer:
				msg.NumSigners++
			case m.writable:
				msg.NumWritableNonSigners++
			}
		}
	}

	position := make(map[solana.PublicKey]uint8, len(ordered))
	for i, m := range ordered {
		position[m.key] = uint8(i)
		msg.AccountKeys = append(msg.AccountKeys, m.key)
	}

	for _, ix := range ixs {
		data, err := ix.Data()
		if err != nil {
			return TransactionMessage{}, fmt.Errorf("failed to read instruction data: %w", err)
		}
		if len(data) > 0xffff {
			return TransactionMessage{}, fmt.Errorf("%w: instruction data of %d bytes", ErrInvalidMessage, len(data))
		}
		accounts := ix.Accounts()
		if len(accounts) > maxMessageAccounts {
			return TransactionMessage{}, fmt.Errorf("%w: instruction with %d accounts", ErrInvalidMessage, len(accounts))
		}
		compiled := CompiledInstruction{
			ProgramIDIndex: position[ix.ProgramID()],
			AccountIndexes: make([]uint8, 0, len(accounts)),
			Data:           data,
		}
		for _, acc := range accounts {
			compiled.AccountIndexes = append(compiled.AccountIndexes, position[acc.PublicKey])
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}

	return msg, nil
}

// MarshalCompact encodes the message with the one-byte (two-byte for data) length prefixes
// vaultTransactionCreate takes.
func (m TransactionMessage) MarshalCompact() ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	if len(m.AccountKeys) > maxMessageAccounts || len(m.Instructions) > 0xff || len(m.AddressTableLookups) > 0xff {
		return nil, fmt.Errorf("%w: too many entries", ErrInvalidMessage)
	}

	writeSmallBytes := func(b []uint8) error {
		if len(b) > 0xff {
			return fmt.Errorf("%w: index list of %d", ErrInvalidMessage, len(b))
		}
		if err := enc.WriteUint8(uint8(len(b))); err != nil {
			return err
		}
		return enc.WriteBytes(b, false)
	}

	for _, v := range []uint8{m.NumSigners, m.NumWritableSigners, m.NumWritableNonSigners, uint8(len(m.AccountKeys))} {
		if err := enc.WriteUint8(v); err != nil {
			return nil, err
		}
	}
	for _, k := range m.AccountKeys {
		if err := enc.WriteBytes(k.Bytes(), false); err != nil {
			return nil, err
		}
	}

	if err := enc.WriteUint8(uint8(len(m.Instructions))); err != nil {
		return nil, err
	}
	for _, ix := range m.Instructions {
		if err := enc.WriteUint8(ix.ProgramIDIndex); err != nil {
			return nil, err
		}
		if err := writeSmallBytes(ix.AccountIndexes); err != nil {
			return nil, err
		}
		if err := enc.WriteUint16(uint16(len(ix.Data)), bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(ix.Data, false); err != nil {
			return nil, err
		}
	}

	if err := enc.WriteUint8(uint8(len(m.AddressTableLookups))); err != nil {
		return nil, err
	}
	for _, l := range m.AddressTableLookups {
		if err := enc.WriteBytes(l.AccountKey.Bytes(), false); err != nil {
			return nil, err
		}
		if err := writeSmallBytes(l.WritableIndexes); err != nil {
			return nil, err
		}
		if err := writeSmallBytes(l.ReadonlyIndexes); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// decodeStoredMessage reads the message as the program stores it inside accounts,
// with regular four-byte vector lengths.
func decodeStoredMessage(dec *bin.Decoder) (TransactionMessage, error) {
	var m TransactionMessage
	var err error

	if m.NumSigners, err = dec.ReadUint8(); err != nil {
		return m, err
	}
	if m.NumWritableSigners, err = dec.ReadUint8(); err != nil {
		return m, err
	}
	if m.NumWritableNonSigners, err = dec.ReadUint8(); err != nil {
		return m, err
	}

	if m.AccountKeys, err = readPublicKeys(dec); err != nil {
		return m, err
	}

	n, err := readLength(dec)
	if err != nil {
		return m, err
	}
	for i := 0; i < n; i++ {
		var ix CompiledInstruction
		if ix.ProgramIDIndex, err = dec.ReadUint8(); err != nil {
			return m, err
		}
		if ix.AccountIndexes, err = readByteVec(dec); err != nil {
			return m, err
		}
		if ix.Data, err = readByteVec(dec); err != nil {
			return m, err
		}
		m.Instructions = append(m.Instructions, ix)
	}

	if n, err = readLength(dec); err != nil {
		return m, err
	}
	for i := 0; i < n; i++ {
		var l AddressTableLookup
		if l.AccountKey, err = readPublicKey(dec); err != nil {
			return m, err
		}
		if l.WritableIndexes, err = readByteVec(dec); err != nil {
			return m, err
		}
		if l.ReadonlyIndexes, err = readByteVec(dec); err != nil {
			return m, err
		}
		m.AddressTableLookups = append(m.AddressTableLookups, l)
	}

	return m, nil
}
