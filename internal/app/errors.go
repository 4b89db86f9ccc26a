package app

import (
	"errors"

	"multisig-dashboard/internal/model"
)

var (
	ErrInvalidProposalState = errors.New("invalid proposal state")
	ErrWalletNotConnected   = errors.New("wallet not connected")
	ErrNotMember            = errors.New("wallet is not a member of the multisig")
	ErrNotFound             = model.ErrNotFound
	ErrInvalidRequest       = errors.New("invalid request")
)
