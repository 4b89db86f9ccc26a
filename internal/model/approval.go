package model

import "github.com/gagliardetto/solana-go"

type MemberApproval struct {
	Key         solana.PublicKey
	Permissions uint8
	HasApproved bool
	HasRejected bool
	IsConnected bool

	// Balance is nil when the balance read failed.
	Balance    *uint64
	CanPayFees bool
}

// ApprovalView is what the approval screen shows for one proposal.
type ApprovalView struct {
	Multisig  solana.PublicKey
	Index     uint64
	State     ProposalState
	Threshold uint16

	Members        []MemberApproval
	TotalApprovals int
	TotalRejects   int
	IsComplete     bool

	// Connected is the zero key when no wallet is connected.
	Connected solana.PublicKey
}

// ConnectedMember returns the entry of the connected wallet, if it is a member.
func (v ApprovalView) ConnectedMember() (MemberApproval, bool) {
	for _, m := range v.Members {
		if m.IsConnected {
			return m, true
		}
	}
	return MemberApproval{}, false
}
