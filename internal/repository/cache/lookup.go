package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"multisig-dashboard/internal/model"
)

// Lookup is the store of wallet to multisig links being cached.
type Lookup interface {
	GetWalletMultisig(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, error)
	SetWalletMultisig(ctx context.Context, wallet, multisig solana.PublicKey) error
}

// CachedLookup keeps links read from the store for ttl. Misses are not cached.
type CachedLookup struct {
	logger  *zap.Logger
	backend Lookup
	links   *cache.Cache
}

func NewCachedLookup(logger *zap.Logger, backend Lookup, ttl time.Duration) CachedLookup {
	return CachedLookup{
		logger:  logger,
		backend: backend,
		links:   cache.New(ttl, 2*ttl),
	}
}

func (c CachedLookup) GetWalletMultisig(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, error) {
	if multisig, ok := c.links.Get(wallet.String()); ok {
		return multisig.(solana.PublicKey), nil
	}

	multisig, err := c.backend.GetWalletMultisig(ctx, wallet)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			c.logger.Warn("wallet lookup failed", zap.String("wallet", wallet.String()), zap.Error(err))
		}
		return solana.PublicKey{}, err
	}

	c.links.SetDefault(wallet.String(), multisig)
	return multisig, nil
}

func (c CachedLookup) SetWalletMultisig(ctx context.Context, wallet, multisig solana.PublicKey) error {
	if err := c.backend.SetWalletMultisig(ctx, wallet, multisig); err != nil {
		c.links.Delete(wallet.String())
		return err
	}
	c.links.SetDefault(wallet.String(), multisig)
	return nil
}
