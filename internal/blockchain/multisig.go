package blockchain

import (
	"context"
	"fmt"

	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/hogyzen12/squads-go/generated/squads_multisig_program"

	"multisig-dashboard/internal/model"
)

func (c Client) GetMultisig(ctx context.Context, address solana.PublicKey) (model.Multisig, error) {
	data, err := c.readAccount(ctx, address)
	if err != nil {
		return model.Multisig{}, err
	}

	var ms squads_multisig_program.Multisig
	if err := ms.UnmarshalWithDecoder(ag_binary.NewBorshDecoder(data)); err != nil {
		return model.Multisig{}, fmt.Errorf("failed to decode multisig %s: %w", address, err)
	}

	members := make([]model.Member, 0, len(ms.Members))
	for _, m := range ms.Members {
		members = append(members, model.Member{Key: m.Key, Permissions: m.Permissions.Mask})
	}

	return model.Multisig{
		Address:               address,
		Threshold:             ms.Threshold,
		TimeLock:              ms.TimeLock,
		TransactionIndex:      ms.TransactionIndex,
		StaleTransactionIndex: ms.StaleTransactionIndex,
		Members:               members,
	}, nil
}

// GetTreasury returns the fee treasury that multisig creation pays into.
func (c Client) GetTreasury(ctx context.Context) (solana.PublicKey, error) {
	data, err := c.readAccount(ctx, c.program.ProgramConfigAddress())
	if err != nil {
		return solana.PublicKey{}, err
	}

	var cfg squads_multisig_program.ProgramConfig
	if err := cfg.UnmarshalWithDecoder(ag_binary.NewBorshDecoder(data)); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to decode program config: %w", err)
	}
	return cfg.Treasury, nil
}
