package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"multisig-dashboard/internal/blockchain/squads"
)

const (
	confirmInitialDelay = 500 * time.Millisecond
	confirmMaxDelay     = 4 * time.Second
)

// BuildTransaction assembles ixs into one transaction paid by payer. Signature
// slots are allocated but left empty.
func (c Client) BuildTransaction(ctx context.Context, payer solana.PublicKey, ixs []solana.Instruction) (*solana.Transaction, error) {
	if len(ixs) == 0 {
		return nil, errors.New("no instructions to send")
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	padSignatures(tx)
	return tx, nil
}

func padSignatures(tx *solana.Transaction) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
}

// Simulate runs tx without signature verification. A failing transaction is
// returned as *SimulationError.
func (c Client) Simulate(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResult, error) {
	padSignatures(tx)

	res, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		Commitment:             rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	if res == nil || res.Value == nil {
		return nil, errors.New("failed to simulate transaction: empty response")
	}

	if res.Value.Err != nil {
		msg, programErr := squads.DescribeTransactionError(res.Value.Err)
		c.logger.Info("simulation failed",
			zap.String("reason", msg),
			zap.Any("raw", res.Value.Err),
			zap.Strings("logs", res.Value.Logs))
		return res.Value, &SimulationError{Message: msg, Program: programErr, Logs: res.Value.Logs}
	}

	if res.Value.UnitsConsumed != nil {
		c.logger.Debug("simulation ok", zap.Uint64("units", *res.Value.UnitsConsumed))
	}
	return res.Value, nil
}

// Submit sends a signed transaction. It is never retried; preflight is skipped
// because every transaction was simulated already.
func (c Client) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Error("failed to submit transaction", zap.Error(err))
		return solana.Signature{}, &SubmissionError{Err: err}
	}
	c.logger.Info("transaction submitted", zap.String("signature", sig.String()))
	return sig, nil
}

// Confirm polls the signature status with exponential backoff until the
// transaction is confirmed, fails, timeout passes or ctx is done.
func (c Client) Confirm(ctx context.Context, sig solana.Signature, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	delay := confirmInitialDelay
	for {
		res, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			// transient; the deadline bounds the retries
			c.logger.Debug("signature status read failed", zap.String("signature", sig.String()), zap.Error(err))
		} else if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				msg, _ := squads.DescribeTransactionError(status.Err)
				return &SubmissionError{Err: errors.New(msg)}
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				c.logger.Info("transaction confirmed", zap.String("signature", sig.String()))
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
			}
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > confirmMaxDelay {
			delay = confirmMaxDelay
		}
	}
}

// EncodeTransaction serializes tx as base58 for a browser wallet to sign.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	padSignatures(tx)
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base58.Encode(raw), nil
}
