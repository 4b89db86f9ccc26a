package app

import (
	"fmt"

	"github.com/looplab/fsm"

	"multisig-dashboard/internal/model"
)

// proposal lifecycle as seen by a dashboard user; only the action gating is used
var proposalEvents = fsm.Events{
	{Name: string(model.ActionApprove), Src: []string{string(model.ProposalNone), string(model.ProposalDraft), string(model.ProposalActive)}, Dst: string(model.ProposalActive)},
	{Name: string(model.ActionReject), Src: []string{string(model.ProposalNone), string(model.ProposalDraft), string(model.ProposalActive)}, Dst: string(model.ProposalActive)},
	{Name: string(model.ActionCancel), Src: []string{string(model.ProposalApproved)}, Dst: string(model.ProposalCancelled)},
	{Name: string(model.ActionExecute), Src: []string{string(model.ProposalApproved)}, Dst: string(model.ProposalExecuted)},
}

func proposalFSM(state model.ProposalState) *fsm.FSM {
	return fsm.NewFSM(string(state), proposalEvents, fsm.Callbacks{})
}

// checkAction fails with ErrInvalidProposalState when action cannot be taken in state.
func checkAction(state model.ProposalState, action model.Action) error {
	if !proposalFSM(state).Can(string(action)) {
		return fmt.Errorf("%w: cannot %s a proposal that is %s", ErrInvalidProposalState, action, state)
	}
	return nil
}

// openingStep is the step that makes a proposal votable, if one is needed.
func openingStep(state model.ProposalState) (string, bool) {
	switch state {
	case model.ProposalNone:
		return StepProposalCreate, true
	case model.ProposalDraft:
		return StepProposalActivate, true
	}
	return "", false
}
