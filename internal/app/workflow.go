package app

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"multisig-dashboard/internal/blockchain"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/wallet"
)

// step names, in the vocabulary of the program's instructions
const (
	StepMultisigCreate           = "multisigCreate"
	StepVaultTransactionCreate   = "vaultTransactionCreate"
	StepConfigTransactionCreate  = "configTransactionCreate"
	StepProposalCreate           = "proposalCreate"
	StepProposalActivate         = "proposalActivate"
	StepProposalApprove          = "proposalApprove"
	StepProposalReject           = "proposalReject"
	StepProposalCancel           = "proposalCancel"
	StepComputeUnitLimit         = "computeUnitLimit"
	StepComputeUnitPrice         = "computeUnitPrice"
	StepVaultTransactionExecute  = "vaultTransactionExecute"
	StepConfigTransactionExecute = "configTransactionExecute"
	StepBatchExecuteTransaction  = "batchExecuteTransaction"
)

type Step struct {
	Name        string
	Instruction solana.Instruction
}

// Plan is the ordered list of steps that go into one atomic transaction.
type Plan struct {
	Action   model.Action
	Multisig solana.PublicKey
	Index    uint64
	Payer    solana.PublicKey
	Steps    []Step
	// Signers are throwaway keys that sign before the wallet does.
	Signers []solana.PrivateKey
}

func (p *Plan) add(name string, ix solana.Instruction) {
	p.Steps = append(p.Steps, Step{Name: name, Instruction: ix})
}

func (p Plan) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return names
}

func (p Plan) Instructions() []solana.Instruction {
	ixs := make([]solana.Instruction, len(p.Steps))
	for i, s := range p.Steps {
		ixs[i] = s.Instruction
	}
	return ixs
}

// Result describes a confirmed transaction.
type Result struct {
	Action    model.Action
	Multisig  solana.PublicKey
	Index     uint64
	Steps     []string
	Signature solana.Signature
}

// Prepared is a simulated transaction waiting for a browser wallet signature.
type Prepared struct {
	Action      model.Action
	Multisig    solana.PublicKey
	Index       uint64
	Steps       []string
	Transaction string
}

func connectedKey(w wallet.Wallet) (solana.PublicKey, error) {
	if w == nil {
		return solana.PublicKey{}, ErrWalletNotConnected
	}
	key, ok := w.PublicKey()
	if !ok {
		return solana.PublicKey{}, ErrWalletNotConnected
	}
	return key, nil
}

// run turns plan into one transaction: simulate, sign, submit, confirm.
// Nothing is signed when the simulation fails.
func (a App) run(ctx context.Context, w wallet.Wallet, plan Plan) (Result, error) {
	result := Result{Action: plan.Action, Multisig: plan.Multisig, Index: plan.Index, Steps: plan.StepNames()}
	log := a.logger.With(
		zap.String("action", string(plan.Action)),
		zap.String("multisig", plan.Multisig.String()),
		zap.Uint64("index", plan.Index),
		zap.Strings("steps", result.Steps),
	)

	tx, err := a.chain.BuildTransaction(ctx, plan.Payer, plan.Instructions())
	if err != nil {
		return result, err
	}
	if _, err := a.chain.Simulate(ctx, tx); err != nil {
		return result, err
	}

	if len(plan.Signers) > 0 {
		if err := wallet.PartialSign(tx, plan.Signers...); err != nil {
			return result, err
		}
	}

	log.Info("requesting wallet signature")
	if err := w.SignTransaction(ctx, tx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		return result, &blockchain.SubmissionError{Err: err}
	}

	sig, err := a.chain.Submit(ctx, tx)
	if err != nil {
		return result, err
	}
	result.Signature = sig

	if err := a.chain.Confirm(ctx, sig, a.opts.ConfirmTimeout); err != nil {
		log.Error("transaction not confirmed", zap.String("signature", sig.String()), zap.Error(err))
		return result, err
	}
	log.Info("transaction confirmed", zap.String("signature", sig.String()))

	a.publish(ctx, result, plan.Payer)
	return result, nil
}

// prepare simulates plan and encodes it unsigned, apart from throwaway signers.
func (a App) prepare(ctx context.Context, plan Plan) (Prepared, error) {
	prepared := Prepared{Action: plan.Action, Multisig: plan.Multisig, Index: plan.Index, Steps: plan.StepNames()}

	tx, err := a.chain.BuildTransaction(ctx, plan.Payer, plan.Instructions())
	if err != nil {
		return prepared, err
	}
	if _, err := a.chain.Simulate(ctx, tx); err != nil {
		return prepared, err
	}
	if len(plan.Signers) > 0 {
		if err := wallet.PartialSign(tx, plan.Signers...); err != nil {
			return prepared, err
		}
	}

	if prepared.Transaction, err = blockchain.EncodeTransaction(tx); err != nil {
		return prepared, err
	}
	return prepared, nil
}

func (a App) publish(ctx context.Context, result Result, actor solana.PublicKey) {
	event := model.Event{
		ID:        uuid.NewString(),
		Action:    result.Action,
		Multisig:  result.Multisig.String(),
		Index:     result.Index,
		Actor:     actor.String(),
		Signature: result.Signature.String(),
		Steps:     result.Steps,
		At:        time.Now().UTC(),
	}
	if err := a.events.Publish(ctx, event); err != nil {
		a.logger.Warn("failed to publish event", zap.String("id", event.ID), zap.Error(err))
	}
}
