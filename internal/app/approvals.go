package app

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/wallet"
)

// ApprovalView reads the multisig, the proposal at index and every member's
// balance. A zero connected key means nobody is connected. A failed balance read
// leaves that member's balance unknown.
func (a App) ApprovalView(ctx context.Context, multisig solana.PublicKey, index uint64, connected solana.PublicKey) (model.ApprovalView, error) {
	ms, err := a.GetMultisig(ctx, multisig)
	if err != nil {
		return model.ApprovalView{}, err
	}
	proposal, err := a.chain.GetProposal(ctx, multisig, index)
	if err != nil {
		return model.ApprovalView{}, err
	}

	view := model.ApprovalView{
		Multisig:  multisig,
		Index:     index,
		State:     proposal.State,
		Threshold: ms.Threshold,
		Members:   make([]model.MemberApproval, len(ms.Members)),
		Connected: connected,
	}

	var g errgroup.Group
	for i, m := range ms.Members {
		entry := model.MemberApproval{
			Key:         m.Key,
			Permissions: m.Permissions,
			HasApproved: proposal.HasApproved(m.Key),
			HasRejected: proposal.HasRejected(m.Key),
			IsConnected: !connected.IsZero() && connected.Equals(m.Key),
		}
		if entry.HasApproved {
			view.TotalApprovals++
		}
		if entry.HasRejected {
			view.TotalRejects++
		}
		view.Members[i] = entry

		i, key := i, m.Key
		g.Go(func() error {
			lamports, err := a.chain.GetBalance(ctx, key)
			if err != nil {
				a.logger.Warn("member balance unknown", zap.String("member", key.String()), zap.Error(err))
				return nil
			}
			view.Members[i].Balance = &lamports
			view.Members[i].CanPayFees = lamports >= a.opts.MinFeeBalance
			return nil
		})
	}
	_ = g.Wait()

	view.IsComplete = view.TotalApprovals >= int(ms.Threshold)
	return view, nil
}

// ApproveAndRefresh approves as the connected wallet and returns the view read
// after confirmation.
func (a App) ApproveAndRefresh(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, index uint64) (Result, model.ApprovalView, error) {
	result, err := a.Approve(ctx, w, multisig, index)
	if err != nil {
		return result, model.ApprovalView{}, err
	}
	member, _ := w.PublicKey()
	view, err := a.ApprovalView(ctx, multisig, index, member)
	return result, view, err
}
