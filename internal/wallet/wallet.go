package wallet

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrRejected = errors.New("signature request rejected")

// Wallet is the signing boundary. Signing may wait on a person and is only
// bounded by ctx.
type Wallet interface {
	// PublicKey reports false when no wallet is connected.
	PublicKey() (solana.PublicKey, bool)
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Disconnected is the wallet of a session nobody connected to.
type Disconnected struct{}

func (Disconnected) PublicKey() (solana.PublicKey, bool) {
	return solana.PublicKey{}, false
}

func (Disconnected) SignTransaction(context.Context, *solana.Transaction) error {
	return ErrRejected
}
