package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"multisig-dashboard/internal/model"
)

func (c Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	return res.Value, nil
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetTokenBalances lists the non-empty SPL token accounts owned by owner.
func (c Client) GetTokenBalances(ctx context.Context, owner solana.PublicKey) ([]model.TokenBalance, error) {
	programID := solana.TokenProgramID
	res, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed, Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read token accounts of %s: %w", owner, err)
	}

	var balances []model.TokenBalance
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse token account %s: %w", acc.Pubkey, err)
		}
		info := parsed.Parsed.Info

		amount, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("token account %s: bad amount %q: %w", acc.Pubkey, info.TokenAmount.Amount, err)
		}
		if amount == 0 {
			continue
		}
		mint, err := solana.PublicKeyFromBase58(info.Mint)
		if err != nil {
			return nil, fmt.Errorf("token account %s: bad mint: %w", acc.Pubkey, err)
		}

		balances = append(balances, model.TokenBalance{
			Mint:     mint,
			Account:  acc.Pubkey,
			Amount:   amount,
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return balances, nil
}

// AccountExists reports whether address holds an account.
func (c Client) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	_, err := c.readAccount(ctx, address)
	if errors.Is(err, ErrReadNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
