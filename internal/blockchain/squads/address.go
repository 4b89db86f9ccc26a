package squads

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/hogyzen12/squads-go/pkg/multisig"
)

var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress decodes a base58 account address.
func ParseAddress(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return key, nil
}

// Program binds address derivation and instruction building to one program deployment.
type Program struct {
	ID solana.PublicKey
}

func NewProgram(programID solana.PublicKey) (Program, error) {
	if programID.IsZero() {
		return Program{}, fmt.Errorf("%w: zero program id", ErrInvalidAddress)
	}
	return Program{ID: programID}, nil
}

func checkMultisig(ms solana.PublicKey) error {
	if ms.IsZero() {
		return fmt.Errorf("%w: zero multisig address", ErrInvalidAddress)
	}
	return nil
}

func (p Program) ProgramConfigAddress() solana.PublicKey {
	pda, _ := multisig.GetProgramConfigPDA(p.ID)
	return pda
}

func (p Program) MultisigAddress(createKey solana.PublicKey) (solana.PublicKey, error) {
	if createKey.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("%w: zero create key", ErrInvalidAddress)
	}
	pda, _ := multisig.GetMultisigPDA(createKey, p.ID)
	return pda, nil
}

func (p Program) VaultAddress(ms solana.PublicKey, index uint8) (solana.PublicKey, error) {
	if err := checkMultisig(ms); err != nil {
		return solana.PublicKey{}, err
	}
	pda, _ := multisig.GetVaultPDA(ms, index, p.ID)
	return pda, nil
}

func (p Program) TransactionAddress(ms solana.PublicKey, index uint64) (solana.PublicKey, error) {
	if err := checkMultisig(ms); err != nil {
		return solana.PublicKey{}, err
	}
	pda, _ := multisig.GetTransactionPDA(ms, index, p.ID)
	return pda, nil
}

func (p Program) ProposalAddress(ms solana.PublicKey, index uint64) (solana.PublicKey, error) {
	if err := checkMultisig(ms); err != nil {
		return solana.PublicKey{}, err
	}
	pda, _ := multisig.GetProposalPDA(ms, index, p.ID)
	return pda, nil
}

// BatchTransactionAddress derives the address of the txIndex-th (1-based) transaction of a batch.
func (p Program) BatchTransactionAddress(ms solana.PublicKey, batchIndex uint64, txIndex uint32) (solana.PublicKey, error) {
	if err := checkMultisig(ms); err != nil {
		return solana.PublicKey{}, err
	}

	batchBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(batchBytes, batchIndex)
	txBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(txBytes, txIndex)

	pda, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte(seedPrefix),
			ms.Bytes(),
			[]byte(seedTransaction),
			batchBytes,
			[]byte(seedBatchTransaction),
			txBytes,
		},
		p.ID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find batch transaction address: %w", err)
	}
	return pda, nil
}

// ProposalAddresses returns the transaction and proposal addresses sharing one index.
func (p Program) ProposalAddresses(ms solana.PublicKey, index uint64) (transaction, proposal solana.PublicKey, err error) {
	if transaction, err = p.TransactionAddress(ms, index); err != nil {
		return
	}
	proposal, err = p.ProposalAddress(ms, index)
	return
}

// VaultIndexFromInt checks that i fits the one-byte vault index seed.
func VaultIndexFromInt(i int) (uint8, error) {
	if i < 0 || i > 255 {
		return 0, fmt.Errorf("%w: vault index %d out of range", ErrInvalidAddress, i)
	}
	return uint8(i), nil
}
