package squads

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"multisig-dashboard/internal/model"
)

var ErrUnknownAccount = errors.New("unknown account discriminator")

// proposal status variants in on-chain order
var proposalStatuses = []model.ProposalState{
	model.ProposalDraft,
	model.ProposalActive,
	model.ProposalRejected,
	model.ProposalApproved,
	model.ProposalExecuting,
	model.ProposalExecuted,
	model.ProposalCancelled,
}

type ProposalAccount struct {
	Multisig         solana.PublicKey
	TransactionIndex uint64
	Status           model.ProposalState
	// StatusTimestamp is zero for Executing, which carries none.
	StatusTimestamp int64
	Bump            uint8
	Approved        []solana.PublicKey
	Rejected        []solana.PublicKey
	Cancelled       []solana.PublicKey
}

type VaultTransactionAccount struct {
	Multisig             solana.PublicKey
	Creator              solana.PublicKey
	Index                uint64
	Bump                 uint8
	VaultIndex           uint8
	VaultBump            uint8
	EphemeralSignerBumps []uint8
	Message              TransactionMessage
}

type BatchAccount struct {
	Multisig                 solana.PublicKey
	Creator                  solana.PublicKey
	Index                    uint64
	Bump                     uint8
	VaultIndex               uint8
	VaultBump                uint8
	Size                     uint32
	ExecutedTransactionIndex uint32
}

// Pending lists the 1-based indices of the batch transactions still to execute, in order.
func (b BatchAccount) Pending() []uint32 {
	var out []uint32
	for i := b.ExecutedTransactionIndex + 1; i <= b.Size; i++ {
		out = append(out, i)
	}
	return out
}

type BatchTransactionAccount struct {
	Bump                 uint8
	EphemeralSignerBumps []uint8
	Message              TransactionMessage
}

// TransactionKind tells which transaction variant an account at a transaction address holds.
func TransactionKind(data []byte) (model.TransactionKind, error) {
	if len(data) < 8 {
		return "", fmt.Errorf("%w: %d bytes", ErrUnknownAccount, len(data))
	}
	switch {
	case hasDiscriminator(data, accountVaultTransaction):
		return model.TransactionVault, nil
	case hasDiscriminator(data, accountConfigTransaction):
		return model.TransactionConfig, nil
	case hasDiscriminator(data, accountBatch):
		return model.TransactionBatch, nil
	}
	return "", ErrUnknownAccount
}

func DecodeProposal(data []byte) (ProposalAccount, error) {
	var p ProposalAccount
	dec, err := accountDecoder(data, accountProposal)
	if err != nil {
		return p, err
	}

	if p.Multisig, err = readPublicKey(dec); err != nil {
		return p, err
	}
	if p.TransactionIndex, err = dec.ReadUint64(bin.LE); err != nil {
		return p, err
	}

	variant, err := dec.ReadUint8()
	if err != nil {
		return p, err
	}
	if int(variant) >= len(proposalStatuses) {
		return p, fmt.Errorf("unknown proposal status %d", variant)
	}
	p.Status = proposalStatuses[variant]
	if p.Status != model.ProposalExecuting {
		if p.StatusTimestamp, err = dec.ReadInt64(bin.LE); err != nil {
			return p, err
		}
	}

	if p.Bump, err = dec.ReadUint8(); err != nil {
		return p, err
	}
	if p.Approved, err = readPublicKeys(dec); err != nil {
		return p, err
	}
	if p.Rejected, err = readPublicKeys(dec); err != nil {
		return p, err
	}
	if p.Cancelled, err = readPublicKeys(dec); err != nil {
		return p, err
	}
	return p, nil
}

func DecodeVaultTransaction(data []byte) (VaultTransactionAccount, error) {
	var v VaultTransactionAccount
	dec, err := accountDecoder(data, accountVaultTransaction)
	if err != nil {
		return v, err
	}

	if v.Multisig, err = readPublicKey(dec); err != nil {
		return v, err
	}
	if v.Creator, err = readPublicKey(dec); err != nil {
		return v, err
	}
	if v.Index, err = dec.ReadUint64(bin.LE); err != nil {
		return v, err
	}
	if v.Bump, err = dec.ReadUint8(); err != nil {
		return v, err
	}
	if v.VaultIndex, err = dec.ReadUint8(); err != nil {
		return v, err
	}
	if v.VaultBump, err = dec.ReadUint8(); err != nil {
		return v, err
	}
	if v.EphemeralSignerBumps, err = readByteVec(dec); err != nil {
		return v, err
	}
	if v.Message, err = decodeStoredMessage(dec); err != nil {
		return v, fmt.Errorf("failed to decode message: %w", err)
	}
	return v, nil
}

func DecodeBatch(data []byte) (BatchAccount, error) {
	var b BatchAccount
	dec, err := accountDecoder(data, accountBatch)
	if err != nil {
		return b, err
	}

	if b.Multisig, err = readPublicKey(dec); err != nil {
		return b, err
	}
	if b.Creator, err = readPublicKey(dec); err != nil {
		return b, err
	}
	if b.Index, err = dec.ReadUint64(bin.LE); err != nil {
		return b, err
	}
	if b.Bump, err = dec.ReadUint8(); err != nil {
		return b, err
	}
	if b.VaultIndex, err = dec.ReadUint8(); err != nil {
		return b, err
	}
	if b.VaultBump, err = dec.ReadUint8(); err != nil {
		return b, err
	}
	if b.Size, err = dec.ReadUint32(bin.LE); err != nil {
		return b, err
	}
	if b.ExecutedTransactionIndex, err = dec.ReadUint32(bin.LE); err != nil {
		return b, err
	}
	return b, nil
}

func DecodeBatchTransaction(data []byte) (BatchTransactionAccount, error) {
	var t BatchTransactionAccount
	dec, err := accountDecoder(data, accountBatchTransaction)
	if err != nil {
		return t, err
	}

	if t.Bump, err = dec.ReadUint8(); err != nil {
		return t, err
	}
	if t.EphemeralSignerBumps, err = readByteVec(dec); err != nil {
		return t, err
	}
	if t.Message, err = decodeStoredMessage(dec); err != nil {
		return t, fmt.Errorf("failed to decode message: %w", err)
	}
	return t, nil
}

func hasDiscriminator(data []byte, account string) bool {
	d := accountDiscriminator(account)
	return len(data) >= 8 && bytes.Equal(data[:8], d[:])
}

func accountDecoder(data []byte, account string) (*bin.Decoder, error) {
	if !hasDiscriminator(data, account) {
		return nil, fmt.Errorf("%w: expected %s", ErrUnknownAccount, account)
	}
	return bin.NewBorshDecoder(data[8:]), nil
}

func readLength(dec *bin.Decoder) (int, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return 0, err
	}
	if int(n) > dec.Remaining() {
		return 0, fmt.Errorf("vector length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	return int(n), nil
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func readPublicKeys(dec *bin.Decoder) ([]solana.PublicKey, error) {
	n, err := readLength(dec)
	if err != nil {
		return nil, err
	}
	keys := make([]solana.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		k, err := readPublicKey(dec)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func readByteVec(dec *bin.Decoder) ([]byte, error) {
	n, err := readLength(dec)
	if err != nil {
		return nil, err
	}
	return dec.ReadNBytes(n)
}
