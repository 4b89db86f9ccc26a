package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"multisig-dashboard/internal/blockchain"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/config"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/notify"
	"multisig-dashboard/internal/pricing"
)

// MultisigLookup keeps the default multisig of each wallet.
type MultisigLookup interface {
	// GetWalletMultisig returns ErrNotFound when nothing is stored for wallet.
	GetWalletMultisig(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, error)
	SetWalletMultisig(ctx context.Context, wallet, multisig solana.PublicKey) error
}

// RecipientStore remembers the recipients a wallet proposed transfers to.
type RecipientStore interface {
	AddRecipient(wallet, recipient solana.PublicKey) error
	Recipients(wallet solana.PublicKey) ([]solana.PublicKey, error)
}

type Options struct {
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	ConfirmTimeout   time.Duration
	PriceTimeout     time.Duration
	MinFeeBalance    uint64
	VaultFirst       uint8
	VaultLast        uint8
}

func OptionsFromConfig() Options {
	first, last := config.GetVaultIndexRange()
	return Options{
		ComputeUnitLimit: config.GetComputeUnitLimit(),
		ComputeUnitPrice: config.GetComputeUnitPrice(),
		ConfirmTimeout:   config.GetConfirmTimeout(),
		PriceTimeout:     config.GetPriceTimeout(),
		MinFeeBalance:    config.GetMinFeeBalance(),
		VaultFirst:       first,
		VaultLast:        last,
	}
}

type App struct {
	logger     *zap.Logger
	chain      *blockchain.Client
	program    squads.Program
	lookup     MultisigLookup
	recipients RecipientStore
	events     notify.Publisher
	prices     pricing.Source
	opts       Options
}

func NewApp(logger *zap.Logger, chain *blockchain.Client, lookup MultisigLookup, recipients RecipientStore, events notify.Publisher, prices pricing.Source, opts Options) App {
	if events == nil {
		events = notify.Nop{}
	}
	return App{
		logger:     logger,
		chain:      chain,
		program:    chain.Program(),
		lookup:     lookup,
		recipients: recipients,
		events:     events,
		prices:     prices,
		opts:       opts,
	}
}

func (a App) GetMultisig(ctx context.Context, multisig solana.PublicKey) (model.Multisig, error) {
	ms, err := a.chain.GetMultisig(ctx, multisig)
	if errors.Is(err, blockchain.ErrReadNotFound) {
		return model.Multisig{}, ErrNotFound
	}
	return ms, err
}

func (a App) GetProposal(ctx context.Context, multisig solana.PublicKey, index uint64) (model.Proposal, error) {
	return a.chain.GetProposal(ctx, multisig, index)
}

// DefaultMultisig returns the multisig stored for wallet.
func (a App) DefaultMultisig(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, error) {
	if a.lookup == nil {
		return solana.PublicKey{}, ErrNotFound
	}
	return a.lookup.GetWalletMultisig(ctx, wallet)
}

// LinkMultisig stores multisig as the default of wallet, which must be one of its members.
func (a App) LinkMultisig(ctx context.Context, wallet, multisig solana.PublicKey) error {
	ms, err := a.GetMultisig(ctx, multisig)
	if err != nil {
		return err
	}
	if !ms.IsMember(wallet) {
		return ErrNotMember
	}
	return a.storeLink(ctx, wallet, multisig)
}

func (a App) storeLink(ctx context.Context, wallet, multisig solana.PublicKey) error {
	if a.lookup == nil {
		return nil
	}
	if err := a.lookup.SetWalletMultisig(ctx, wallet, multisig); err != nil {
		return fmt.Errorf("failed to store the multisig of the wallet: %w", err)
	}
	a.logger.Info("multisig linked", zap.String("wallet", wallet.String()), zap.String("multisig", multisig.String()))
	return nil
}

func (a App) RecentRecipients(wallet solana.PublicKey) ([]solana.PublicKey, error) {
	if a.recipients == nil {
		return nil, nil
	}
	return a.recipients.Recipients(wallet)
}
