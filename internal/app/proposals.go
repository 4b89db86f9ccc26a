package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/wallet"
)

// PlanVote plans approve, reject or cancel by member on the proposal at index,
// opening the proposal first when it was never created or is still a draft.
func (a App) PlanVote(ctx context.Context, member, multisig solana.PublicKey, index uint64, action model.Action) (Plan, error) {
	plan := Plan{Action: action, Multisig: multisig, Index: index, Payer: member}

	switch action {
	case model.ActionApprove, model.ActionReject, model.ActionCancel:
	default:
		return plan, fmt.Errorf("%w: %s is not a vote", ErrInvalidRequest, action)
	}

	proposal, err := a.chain.GetProposal(ctx, multisig, index)
	if err != nil {
		return plan, err
	}
	if err := checkAction(proposal.State, action); err != nil {
		return plan, err
	}

	params := squads.ProposalVoteParams{Multisig: multisig, Member: member, TransactionIndex: index}

	if step, ok := openingStep(proposal.State); ok {
		var ix solana.Instruction
		if step == StepProposalCreate {
			ix, err = a.program.ProposalCreate(squads.ProposalCreateParams{
				Multisig:         multisig,
				Creator:          member,
				TransactionIndex: index,
			})
		} else {
			ix, err = a.program.ProposalActivate(params)
		}
		if err != nil {
			return plan, err
		}
		plan.add(step, ix)
	}

	var ix solana.Instruction
	var step string
	switch action {
	case model.ActionApprove:
		step = StepProposalApprove
		ix, err = a.program.ProposalApprove(params)
	case model.ActionReject:
		step = StepProposalReject
		ix, err = a.program.ProposalReject(params)
	case model.ActionCancel:
		step = StepProposalCancel
		ix, err = a.program.ProposalCancel(params)
	}
	if err != nil {
		return plan, err
	}
	plan.add(step, ix)
	return plan, nil
}

func (a App) vote(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, index uint64, action model.Action) (Result, error) {
	member, err := connectedKey(w)
	if err != nil {
		return Result{}, err
	}
	plan, err := a.PlanVote(ctx, member, multisig, index, action)
	if err != nil {
		return Result{}, err
	}
	return a.run(ctx, w, plan)
}

func (a App) Approve(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, index uint64) (Result, error) {
	return a.vote(ctx, w, multisig, index, model.ActionApprove)
}

func (a App) Reject(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, index uint64) (Result, error) {
	return a.vote(ctx, w, multisig, index, model.ActionReject)
}

func (a App) Cancel(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, index uint64) (Result, error) {
	return a.vote(ctx, w, multisig, index, model.ActionCancel)
}

// errNothingPending is returned when a batch has no transaction left to execute.
var errNothingPending = fmt.Errorf("%w: nothing left to execute", ErrInvalidProposalState)

// PlanExecute plans the next execution step of an approved proposal: the whole
// vault or config transaction, or the next pending transaction of a batch.
func (a App) PlanExecute(ctx context.Context, member, multisig solana.PublicKey, index uint64) (Plan, error) {
	plan, _, err := a.planExecute(ctx, member, multisig, index, 0)
	return plan, err
}

// planExecute reads the proposal and its transaction fresh. For a batch it
// plans the first pending transaction after the one numbered after, which is
// returned as next.
func (a App) planExecute(ctx context.Context, member, multisig solana.PublicKey, index uint64, after uint32) (plan Plan, next uint32, err error) {
	proposal, err := a.chain.GetProposal(ctx, multisig, index)
	if err != nil {
		return Plan{}, 0, err
	}
	if err := checkAction(proposal.State, model.ActionExecute); err != nil {
		return Plan{}, 0, err
	}

	kind, err := a.chain.GetTransactionKind(ctx, multisig, index)
	if err != nil {
		return Plan{}, 0, err
	}

	params := squads.ExecuteParams{Multisig: multisig, Member: member, TransactionIndex: index}
	plan = Plan{Action: model.ActionExecute, Multisig: multisig, Index: index, Payer: member}

	switch kind {
	case model.TransactionVault:
		vtx, err := a.chain.GetVaultTransaction(ctx, multisig, index)
		if err != nil {
			return Plan{}, 0, err
		}
		ix, err := a.program.VaultTransactionExecute(params, vtx.Message)
		if err != nil {
			return Plan{}, 0, err
		}
		a.addComputeBudget(&plan)
		plan.add(StepVaultTransactionExecute, ix)
		return plan, 0, nil

	case model.TransactionConfig:
		ix, err := a.program.ConfigTransactionExecute(params)
		if err != nil {
			return Plan{}, 0, err
		}
		plan.add(StepConfigTransactionExecute, ix)
		return plan, 0, nil

	case model.TransactionBatch:
		batch, err := a.chain.GetBatch(ctx, multisig, index)
		if err != nil {
			return Plan{}, 0, err
		}
		for _, i := range batch.Pending() {
			if i > after {
				next = i
				break
			}
		}
		if next == 0 {
			return Plan{}, 0, errNothingPending
		}
		btx, err := a.chain.GetBatchTransaction(ctx, multisig, index, next)
		if err != nil {
			return Plan{}, 0, err
		}
		ix, err := a.program.BatchExecuteTransaction(params, next, btx.Message)
		if err != nil {
			return Plan{}, 0, err
		}
		a.addComputeBudget(&plan)
		plan.add(StepBatchExecuteTransaction, ix)
		return plan, next, nil
	}
	return Plan{}, 0, fmt.Errorf("unsupported transaction kind %q", kind)
}

func (a App) addComputeBudget(plan *Plan) {
	plan.add(StepComputeUnitLimit, squads.ComputeUnitLimit(a.opts.ComputeUnitLimit))
	plan.add(StepComputeUnitPrice, squads.ComputeUnitPrice(a.opts.ComputeUnitPrice))
}

// Execute runs an approved proposal. A batch runs one transaction per round:
// the batch is read again, the next transaction is built, sent and confirmed,
// and only then is the following one read. The results of the confirmed ones
// are returned with the first error.
func (a App) Execute(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, index uint64) ([]Result, error) {
	member, err := connectedKey(w)
	if err != nil {
		return nil, err
	}

	var (
		results []Result
		last    uint32
	)
	for {
		plan, next, err := a.planExecute(ctx, member, multisig, index, last)
		if err != nil {
			// the last batch transaction executes the proposal
			if len(results) > 0 && errors.Is(err, ErrInvalidProposalState) {
				return results, nil
			}
			a.stopped(multisig, index, len(results), err)
			return results, err
		}

		result, err := a.run(ctx, w, plan)
		if err != nil {
			a.stopped(multisig, index, len(results), err)
			return results, err
		}
		results = append(results, result)

		if next == 0 {
			return results, nil
		}
		last = next
	}
}

func (a App) stopped(multisig solana.PublicKey, index uint64, done int, err error) {
	a.logger.Error("execution stopped",
		zap.String("multisig", multisig.String()),
		zap.Uint64("index", index),
		zap.Int("done", done),
		zap.Error(err))
}

// Prepare plans action for member and returns the simulated, unsigned transaction.
// For a batch only the next transaction is prepared.
func (a App) Prepare(ctx context.Context, member, multisig solana.PublicKey, index uint64, action model.Action) (Prepared, error) {
	if action == model.ActionExecute {
		plan, err := a.PlanExecute(ctx, member, multisig, index)
		if err != nil {
			return Prepared{}, err
		}
		return a.prepare(ctx, plan)
	}

	plan, err := a.PlanVote(ctx, member, multisig, index, action)
	if err != nil {
		return Prepared{}, err
	}
	return a.prepare(ctx, plan)
}
