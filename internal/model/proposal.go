package model

import (
	"github.com/gagliardetto/solana-go"
)

type ProposalState string

const (
	ProposalNone      ProposalState = "none"
	ProposalDraft     ProposalState = "draft"
	ProposalActive    ProposalState = "active"
	ProposalApproved  ProposalState = "approved"
	ProposalRejected  ProposalState = "rejected"
	ProposalExecuting ProposalState = "executing"
	ProposalExecuted  ProposalState = "executed"
	ProposalCancelled ProposalState = "cancelled"
)

func (s ProposalState) String() string {
	return string(s)
}

// IsTerminal reports whether no further mutating action can be taken on the proposal.
func (s ProposalState) IsTerminal() bool {
	return s == ProposalRejected || s == ProposalExecuted || s == ProposalCancelled
}

// Proposal is the approval-tracking record paired with the transaction of the same index.
type Proposal struct {
	Multisig solana.PublicKey
	Index    uint64
	State    ProposalState

	// Timestamp of the last status change, unix seconds; zero when unknown.
	StatusAt int64

	Approved  []solana.PublicKey
	Rejected  []solana.PublicKey
	Cancelled []solana.PublicKey
}

func (p Proposal) HasApproved(key solana.PublicKey) bool {
	return containsKey(p.Approved, key)
}

func (p Proposal) HasRejected(key solana.PublicKey) bool {
	return containsKey(p.Rejected, key)
}

func containsKey(keys []solana.PublicKey, key solana.PublicKey) bool {
	for _, k := range keys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}

type TransactionKind string

const (
	TransactionVault  TransactionKind = "vault"
	TransactionConfig TransactionKind = "config"
	TransactionBatch  TransactionKind = "batch"
)

type Action string

const (
	ActionCreate  Action = "create"
	ActionPropose Action = "propose"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionExecute Action = "execute"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionPropose, ActionApprove, ActionReject, ActionCancel, ActionExecute:
		return true
	}
	return false
}
