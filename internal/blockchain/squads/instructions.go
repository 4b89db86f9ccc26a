package squads

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/hogyzen12/squads-go/generated/squads_multisig_program"

	"multisig-dashboard/internal/model"
)

var ErrInvalidParams = errors.New("invalid instruction parameters")

type argsWriter struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newArgs(name string) *argsWriter {
	w := &argsWriter{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	d := instructionDiscriminator(name)
	w.bytes(d[:])
	return w
}

func (w *argsWriter) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *argsWriter) u16(v uint16) {
	if w.err == nil {
		w.err = w.enc.WriteUint16(v, bin.LE)
	}
}

func (w *argsWriter) u32(v uint32) {
	if w.err == nil {
		w.err = w.enc.WriteUint32(v, bin.LE)
	}
}

func (w *argsWriter) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, bin.LE)
	}
}

func (w *argsWriter) boolean(v bool) {
	if w.err == nil {
		w.err = w.enc.WriteBool(v)
	}
}

func (w *argsWriter) bytes(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *argsWriter) vec(b []byte) {
	w.u32(uint32(len(b)))
	w.bytes(b)
}

func (w *argsWriter) key(k solana.PublicKey) {
	w.bytes(k.Bytes())
}

// memo writes an optional string; empty means None.
func (w *argsWriter) memo(s string) {
	if s == "" {
		w.boolean(false)
		return
	}
	w.boolean(true)
	w.vec([]byte(s))
}

func (w *argsWriter) data() ([]byte, error) {
	if w.err != nil {
		return nil, fmt.Errorf("failed to encode instruction args: %w", w.err)
	}
	return w.buf.Bytes(), nil
}

func (p Program) instruction(accounts solana.AccountMetaSlice, args *argsWriter) (solana.Instruction, error) {
	data, err := args.data()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.ID, accounts, data), nil
}

type MultisigCreateParams struct {
	CreateKey solana.PublicKey
	Creator   solana.PublicKey
	Treasury  solana.PublicKey
	Members   []model.Member
	Threshold uint16
	TimeLock  uint32
	Memo      string
}

// MultisigCreate builds multisigCreateV2 without a config authority, so every
// later config change goes through a proposal.
func (p Program) MultisigCreate(params MultisigCreateParams) (solana.Instruction, error) {
	if err := model.ValidateMembership(params.Members, params.Threshold); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	ms, err := p.MultisigAddress(params.CreateKey)
	if err != nil {
		return nil, err
	}

	members := make([]squads_multisig_program.Member, len(params.Members))
	for i, m := range params.Members {
		members[i] = squads_multisig_program.Member{
			Key:         m.Key,
			Permissions: squads_multisig_program.Permissions{Mask: m.Permissions},
		}
	}
	args := squads_multisig_program.MultisigCreateArgsV2{
		Threshold: params.Threshold,
		Members:   members,
		TimeLock:  params.TimeLock,
	}
	if params.Memo != "" {
		memo := params.Memo
		args.Memo = &memo
	}

	ix := squads_multisig_program.NewMultisigCreateV2Instruction(
		args,
		p.ProgramConfigAddress(),
		params.Treasury,
		ms,
		params.CreateKey,
		params.Creator,
		solana.SystemProgramID,
	).Build()

	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to encode multisig create: %w", err)
	}
	// the generated builder targets the mainnet deployment
	return solana.NewInstruction(p.ID, ix.Accounts(), data), nil
}

type ProposalCreateParams struct {
	Multisig         solana.PublicKey
	Creator          solana.PublicKey
	RentPayer        solana.PublicKey
	TransactionIndex uint64
	Draft            bool
}

func (p Program) ProposalCreate(params ProposalCreateParams) (solana.Instruction, error) {
	proposal, err := p.ProposalAddress(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}
	payer := params.RentPayer
	if payer.IsZero() {
		payer = params.Creator
	}

	args := newArgs(ixProposalCreate)
	args.u64(params.TransactionIndex)
	args.boolean(params.Draft)

	return p.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, false, false),
		solana.NewAccountMeta(proposal, true, false),
		solana.NewAccountMeta(params.Creator, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, args)
}

type ProposalVoteParams struct {
	Multisig         solana.PublicKey
	Member           solana.PublicKey
	TransactionIndex uint64
	Memo             string
}

func (p Program) proposalVote(name string, params ProposalVoteParams, withMemo bool) (solana.Instruction, error) {
	proposal, err := p.ProposalAddress(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}
	if params.Member.IsZero() {
		return nil, fmt.Errorf("%w: missing member", ErrInvalidParams)
	}

	args := newArgs(name)
	if withMemo {
		args.memo(params.Memo)
	}

	return p.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, false, false),
		solana.NewAccountMeta(params.Member, true, true),
		solana.NewAccountMeta(proposal, true, false),
	}, args)
}

// ProposalActivate moves a draft proposal to active.
func (p Program) ProposalActivate(params ProposalVoteParams) (solana.Instruction, error) {
	return p.proposalVote(ixProposalActivate, params, false)
}

func (p Program) ProposalApprove(params ProposalVoteParams) (solana.Instruction, error) {
	return p.proposalVote(ixProposalApprove, params, true)
}

func (p Program) ProposalReject(params ProposalVoteParams) (solana.Instruction, error) {
	return p.proposalVote(ixProposalReject, params, true)
}

// ProposalCancel votes to cancel an approved proposal.
func (p Program) ProposalCancel(params ProposalVoteParams) (solana.Instruction, error) {
	return p.proposalVote(ixProposalCancel, params, true)
}

type VaultTransactionCreateParams struct {
	Multisig         solana.PublicKey
	Creator          solana.PublicKey
	RentPayer        solana.PublicKey
	TransactionIndex uint64
	VaultIndex       uint8
	EphemeralSigners uint8
	Instructions     []solana.Instruction
	Memo             string
}

func (p Program) VaultTransactionCreate(params VaultTransactionCreateParams) (solana.Instruction, error) {
	tx, err := p.TransactionAddress(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}
	vault, err := p.VaultAddress(params.Multisig, params.VaultIndex)
	if err != nil {
		return nil, err
	}
	msg, err := CompileMessage(vault, params.Instructions)
	if err != nil {
		return nil, err
	}
	raw, err := msg.MarshalCompact()
	if err != nil {
		return nil, err
	}
	payer := params.RentPayer
	if payer.IsZero() {
		payer = params.Creator
	}

	args := newArgs(ixVaultTransactionCreate)
	args.u8(params.VaultIndex)
	args.u8(params.EphemeralSigners)
	args.vec(raw)
	args.memo(params.Memo)

	return p.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, true, false),
		solana.NewAccountMeta(tx, true, false),
		solana.NewAccountMeta(params.Creator, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, args)
}

type ConfigTransactionCreateParams struct {
	Multisig         solana.PublicKey
	Creator          solana.PublicKey
	RentPayer        solana.PublicKey
	TransactionIndex uint64
	Actions          []ConfigAction
	Memo             string
}

func (p Program) ConfigTransactionCreate(params ConfigTransactionCreateParams) (solana.Instruction, error) {
	if len(params.Actions) == 0 {
		return nil, fmt.Errorf("%w: no config actions", ErrInvalidParams)
	}
	tx, err := p.TransactionAddress(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}
	payer := params.RentPayer
	if payer.IsZero() {
		payer = params.Creator
	}

	args := newArgs(ixConfigTransactionCreate)
	args.u32(uint32(len(params.Actions)))
	for _, a := range params.Actions {
		if err := a.validate(); err != nil {
			return nil, err
		}
		a.encode(args)
	}
	args.memo(params.Memo)

	return p.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, true, false),
		solana.NewAccountMeta(tx, true, false),
		solana.NewAccountMeta(params.Creator, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, args)
}

type ExecuteParams struct {
	Multisig         solana.PublicKey
	Member           solana.PublicKey
	TransactionIndex uint64
}

func (p Program) ConfigTransactionExecute(params ExecuteParams) (solana.Instruction, error) {
	tx, proposal, err := p.ProposalAddresses(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}

	return p.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, true, false),
		solana.NewAccountMeta(params.Member, false, true),
		solana.NewAccountMeta(proposal, true, false),
		solana.NewAccountMeta(tx, false, false),
		// rent payer and system program, used when the config adds spending limits
		solana.NewAccountMeta(params.Member, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, newArgs(ixConfigTransactionExecute))
}

// VaultTransactionExecute needs the decoded stored message to pass its accounts along.
func (p Program) VaultTransactionExecute(params ExecuteParams, msg TransactionMessage) (solana.Instruction, error) {
	tx, proposal, err := p.ProposalAddresses(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}
	remaining, err := messageAccounts(msg)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, false, false),
		solana.NewAccountMeta(proposal, true, false),
		solana.NewAccountMeta(tx, false, false),
		solana.NewAccountMeta(params.Member, false, true),
	}
	return p.instruction(append(accounts, remaining...), newArgs(ixVaultTransactionExecute))
}

// BatchExecuteTransaction executes the txIndex-th transaction of the batch at params.TransactionIndex.
func (p Program) BatchExecuteTransaction(params ExecuteParams, txIndex uint32, msg TransactionMessage) (solana.Instruction, error) {
	batch, proposal, err := p.ProposalAddresses(params.Multisig, params.TransactionIndex)
	if err != nil {
		return nil, err
	}
	tx, err := p.BatchTransactionAddress(params.Multisig, params.TransactionIndex, txIndex)
	if err != nil {
		return nil, err
	}
	remaining, err := messageAccounts(msg)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(params.Multisig, false, false),
		solana.NewAccountMeta(params.Member, false, true),
		solana.NewAccountMeta(proposal, true, false),
		solana.NewAccountMeta(batch, true, false),
		solana.NewAccountMeta(tx, false, false),
	}
	return p.instruction(append(accounts, remaining...), newArgs(ixBatchExecuteTransaction))
}

// messageAccounts lists the stored message keys as remaining accounts. Signers in a
// stored message are program derived (vault or ephemeral), so none of them signs the
// outer transaction.
func messageAccounts(msg TransactionMessage) (solana.AccountMetaSlice, error) {
	if len(msg.AddressTableLookups) > 0 {
		return nil, fmt.Errorf("%w: address lookup tables are not supported", ErrInvalidMessage)
	}
	metas := make(solana.AccountMetaSlice, 0, len(msg.AccountKeys))
	for i, k := range msg.AccountKeys {
		metas = append(metas, solana.NewAccountMeta(k, msg.IsWritable(i), false))
	}
	return metas, nil
}

func ComputeUnitLimit(units uint32) solana.Instruction {
	return computebudget.NewSetComputeUnitLimitInstruction(units).Build()
}

func ComputeUnitPrice(microLamports uint64) solana.Instruction {
	return computebudget.NewSetComputeUnitPriceInstruction(microLamports).Build()
}
