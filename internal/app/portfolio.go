package app

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"multisig-dashboard/internal/config"
	"multisig-dashboard/internal/model"
)

var nativeMint = solana.MustPublicKeyFromBase58(config.NativeMint)

// Portfolio reads every vault in the configured index range concurrently.
// A vault whose read fails is reported empty with Err set; the rest still count.
// USD values are added afterwards, best effort, under the price timeout.
func (a App) Portfolio(ctx context.Context, multisig solana.PublicKey) (model.Portfolio, error) {
	if multisig.IsZero() {
		return model.Portfolio{}, ErrInvalidRequest
	}
	first, last := a.opts.VaultFirst, a.opts.VaultLast
	if last < first {
		last = first
	}

	portfolio := model.Portfolio{
		Multisig: multisig,
		Vaults:   make([]model.VaultBalance, int(last)-int(first)+1),
	}

	var g errgroup.Group
	for i := range portfolio.Vaults {
		i := i
		index := first + uint8(i)
		g.Go(func() error {
			portfolio.Vaults[i] = a.readVault(ctx, multisig, index)
			return nil
		})
	}
	_ = g.Wait()

	if failed := portfolio.FailedVaults(); len(failed) > 0 {
		a.logger.Warn("some vaults could not be read", zap.String("multisig", multisig.String()), zap.Any("vaults", failed))
	}

	portfolio.Valued = a.value(ctx, &portfolio)
	return portfolio, nil
}

func (a App) readVault(ctx context.Context, multisig solana.PublicKey, index uint8) model.VaultBalance {
	vault := model.VaultBalance{Index: index}

	address, err := a.program.VaultAddress(multisig, index)
	if err != nil {
		vault.Err = err
		return vault
	}
	vault.Address = address

	lamports, err := a.chain.GetBalance(ctx, address)
	if err != nil {
		vault.Err = err
		return vault
	}
	tokens, err := a.chain.GetTokenBalances(ctx, address)
	if err != nil {
		vault.Err = err
		return vault
	}

	vault.Lamports = lamports
	vault.Tokens = tokens
	return vault
}

// value sets the USD values it can find prices for and reports whether pricing succeeded.
func (a App) value(ctx context.Context, portfolio *model.Portfolio) bool {
	if a.prices == nil {
		return false
	}

	mints := []solana.PublicKey{nativeMint}
	seen := map[solana.PublicKey]bool{nativeMint: true}
	for _, v := range portfolio.Vaults {
		for _, t := range v.Tokens {
			if !seen[t.Mint] {
				seen[t.Mint] = true
				mints = append(mints, t.Mint)
			}
		}
	}

	if a.opts.PriceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.PriceTimeout)
		defer cancel()
	}
	prices, err := a.prices.Prices(ctx, mints)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Info("prices timed out", zap.Duration("timeout", a.opts.PriceTimeout))
		} else {
			a.logger.Warn("failed to read prices", zap.Error(err))
		}
		return false
	}

	for i := range portfolio.Vaults {
		v := &portfolio.Vaults[i]
		if price, ok := prices[nativeMint]; ok && v.Lamports > 0 {
			usd := v.SOL().Mul(price)
			v.NativeUSDValue = &usd
		}
		for j := range v.Tokens {
			t := &v.Tokens[j]
			if price, ok := prices[t.Mint]; ok {
				usd := t.UIAmount().Mul(price)
				t.USDValue = &usd
			}
		}
	}
	return true
}
