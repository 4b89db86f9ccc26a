package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
)

// readAccount returns ErrReadNotFound when the account does not exist.
func (c Client) readAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfo(ctx, address)
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", ErrReadNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account %s: %w", address, err)
	}
	return res.Value.Data.GetBinary(), nil
}

// GetProposal reads the proposal at index. A proposal that was never created
// is reported with state None and no error.
func (c Client) GetProposal(ctx context.Context, multisig solana.PublicKey, index uint64) (model.Proposal, error) {
	proposal := model.Proposal{Multisig: multisig, Index: index, State: model.ProposalNone}

	address, err := c.program.ProposalAddress(multisig, index)
	if err != nil {
		return proposal, err
	}

	data, err := c.readAccount(ctx, address)
	if errors.Is(err, ErrReadNotFound) {
		c.logger.Debug("proposal not created yet", zap.String("multisig", multisig.String()), zap.Uint64("index", index))
		return proposal, nil
	}
	if err != nil {
		return proposal, err
	}

	account, err := squads.DecodeProposal(data)
	if err != nil {
		return proposal, fmt.Errorf("failed to decode proposal %d: %w", index, err)
	}

	proposal.State = account.Status
	proposal.StatusAt = account.StatusTimestamp
	proposal.Approved = account.Approved
	proposal.Rejected = account.Rejected
	proposal.Cancelled = account.Cancelled
	return proposal, nil
}

// GetTransactionKind tells which variant the transaction at index is, from one read.
func (c Client) GetTransactionKind(ctx context.Context, multisig solana.PublicKey, index uint64) (model.TransactionKind, error) {
	address, err := c.program.TransactionAddress(multisig, index)
	if err != nil {
		return "", err
	}
	data, err := c.readAccount(ctx, address)
	if err != nil {
		return "", err
	}
	return squads.TransactionKind(data)
}

func (c Client) GetVaultTransaction(ctx context.Context, multisig solana.PublicKey, index uint64) (squads.VaultTransactionAccount, error) {
	address, err := c.program.TransactionAddress(multisig, index)
	if err != nil {
		return squads.VaultTransactionAccount{}, err
	}
	data, err := c.readAccount(ctx, address)
	if err != nil {
		return squads.VaultTransactionAccount{}, err
	}
	return squads.DecodeVaultTransaction(data)
}

func (c Client) GetBatch(ctx context.Context, multisig solana.PublicKey, index uint64) (squads.BatchAccount, error) {
	address, err := c.program.TransactionAddress(multisig, index)
	if err != nil {
		return squads.BatchAccount{}, err
	}
	data, err := c.readAccount(ctx, address)
	if err != nil {
		return squads.BatchAccount{}, err
	}
	return squads.DecodeBatch(data)
}

func (c Client) GetBatchTransaction(ctx context.Context, multisig solana.PublicKey, batchIndex uint64, txIndex uint32) (squads.BatchTransactionAccount, error) {
	address, err := c.program.BatchTransactionAddress(multisig, batchIndex, txIndex)
	if err != nil {
		return squads.BatchTransactionAccount{}, err
	}
	data, err := c.readAccount(ctx, address)
	if err != nil {
		return squads.BatchTransactionAccount{}, err
	}
	return squads.DecodeBatchTransaction(data)
}
