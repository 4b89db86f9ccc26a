package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/wallet"
)

// signingCommand wraps a command that needs the application and a wallet.
func signingCommand(run func(ctx context.Context, e *env, w wallet.Wallet, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		w, err := signer(cmd)
		if err != nil {
			return err
		}
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return run(ctx, e, w, args)
	}
}

func parseIndex(s string) (uint64, error) {
	index, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid transaction index %q: %w", s, err)
	}
	return index, nil
}

func printResult(r app.Result) {
	fmt.Printf("%s on %s, transaction %d\n", r.Action, r.Multisig, r.Index)
	fmt.Printf("  steps:     %s\n", strings.Join(r.Steps, ", "))
	fmt.Printf("  signature: %s\n", r.Signature)
}

func printView(v model.ApprovalView) {
	fmt.Printf("proposal %d of %s: %s, %d/%d approvals, %d rejections\n",
		v.Index, v.Multisig, v.State, v.TotalApprovals, v.Threshold, v.TotalRejects)
	for _, m := range v.Members {
		vote := "-"
		switch {
		case m.HasApproved:
			vote = "approved"
		case m.HasRejected:
			vote = "rejected"
		}
		balance := "unknown"
		if m.Balance != nil {
			balance = model.VaultBalance{Lamports: *m.Balance}.SOL().String() + " SOL"
		}
		marker := " "
		if m.IsConnected {
			marker = "*"
		}
		fees := ""
		if !m.CanPayFees {
			fees = " (cannot pay fees)"
		}
		fmt.Printf(" %s %s  %-8s  %s%s\n", marker, m.Key, vote, balance, fees)
	}
	if v.IsComplete {
		fmt.Println("threshold reached")
	}
}

func createCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "creates a multisig with the given members",
	}
	cmd.Flags().StringSlice("member", nil, "Member address, repeatable")
	cmd.Flags().Uint16("threshold", 1, "Approvals needed to execute")
	cmd.Flags().Uint32("timelock", 0, "Seconds between approval and execution")
	cmd.Flags().String("memo", "", "Memo")
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		raw, err := cmd.Flags().GetStringSlice("member")
		if err != nil {
			return err
		}
		var req app.CreateRequest
		for _, s := range raw {
			key, err := squads.ParseAddress(s)
			if err != nil {
				return err
			}
			req.Members = append(req.Members, key)
		}
		if req.Threshold, err = cmd.Flags().GetUint16("threshold"); err != nil {
			return err
		}
		if req.TimeLock, err = cmd.Flags().GetUint32("timelock"); err != nil {
			return err
		}
		if req.Memo, err = cmd.Flags().GetString("memo"); err != nil {
			return err
		}

		result, err := e.app.CreateMultisig(ctx, w, req)
		if err != nil {
			return fmt.Errorf("failed to create the multisig: %w", err)
		}
		printResult(result)
		return nil
	})
	return cmd
}

func transferCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <multisig> <recipient> <amount>",
		Short: "proposes a SOL or token transfer out of a vault",
		Args:  cobra.ExactArgs(3),
	}
	cmd.Flags().Int("vault", 0, "Vault index")
	cmd.Flags().String("mint", "", "Token mint, SOL when empty")
	cmd.Flags().String("memo", "", "Memo")
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		var (
			req app.TransferRequest
			err error
		)
		if req.Multisig, err = squads.ParseAddress(args[0]); err != nil {
			return err
		}
		if req.Recipient, err = squads.ParseAddress(args[1]); err != nil {
			return err
		}
		if req.Amount, err = decimal.NewFromString(args[2]); err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[2], err)
		}
		vault, err := cmd.Flags().GetInt("vault")
		if err != nil {
			return err
		}
		if req.VaultIndex, err = squads.VaultIndexFromInt(vault); err != nil {
			return err
		}
		if mint, _ := cmd.Flags().GetString("mint"); mint != "" {
			if req.Mint, err = squads.ParseAddress(mint); err != nil {
				return err
			}
		}
		req.Memo, _ = cmd.Flags().GetString("memo")

		result, err := e.app.ProposeTransfer(ctx, w, req)
		if err != nil {
			return fmt.Errorf("failed to propose the transfer: %w", err)
		}
		printResult(result)
		return nil
	})
	return cmd
}

// memberChangeCommand proposes adding or removing one member.
func memberChangeCommand(use, short string, propose func(a app.App, ctx context.Context, w wallet.Wallet, ms, key solana.PublicKey) (app.Result, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <multisig> <member>",
		Short: short,
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		key, err := squads.ParseAddress(args[1])
		if err != nil {
			return err
		}
		result, err := propose(e.app, ctx, w, ms, key)
		if err != nil {
			return fmt.Errorf("failed to propose the change: %w", err)
		}
		printResult(result)
		return nil
	})
	return cmd
}

func addMemberCommand() *cobra.Command {
	return memberChangeCommand("add-member", "proposes adding a member with all permissions", app.App.ProposeAddMember)
}

func removeMemberCommand() *cobra.Command {
	return memberChangeCommand("remove-member", "proposes removing a member", app.App.ProposeRemoveMember)
}

func thresholdCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threshold <multisig> <approvals>",
		Short: "proposes a new approval threshold",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		threshold, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", args[1], err)
		}
		result, err := e.app.ProposeThreshold(ctx, w, ms, uint16(threshold))
		if err != nil {
			return fmt.Errorf("failed to propose the threshold: %w", err)
		}
		printResult(result)
		return nil
	})
	return cmd
}

func timeLockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timelock <multisig> <seconds>",
		Short: "proposes a new time lock",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		seconds, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid time lock %q: %w", args[1], err)
		}
		result, err := e.app.ProposeTimeLock(ctx, w, ms, uint32(seconds))
		if err != nil {
			return fmt.Errorf("failed to propose the time lock: %w", err)
		}
		printResult(result)
		return nil
	})
	return cmd
}

type voteKind int

const (
	voteApprove voteKind = iota
	voteReject
	voteCancel
)

func voteCommand(kind voteKind) *cobra.Command {
	use := map[voteKind]string{voteApprove: "approve", voteReject: "reject", voteCancel: "cancel"}[kind]
	cmd := &cobra.Command{
		Use:   use + " <multisig> <index>",
		Short: use + "s a proposal",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}

		var result app.Result
		switch kind {
		case voteApprove:
			var view model.ApprovalView
			result, view, err = e.app.ApproveAndRefresh(ctx, w, ms, index)
			if err == nil {
				printResult(result)
				printView(view)
				return nil
			}
		case voteReject:
			result, err = e.app.Reject(ctx, w, ms, index)
		case voteCancel:
			result, err = e.app.Cancel(ctx, w, ms, index)
		}
		if err != nil {
			return fmt.Errorf("failed to %s: %w", use, err)
		}
		printResult(result)
		return nil
	})
	return cmd
}

func executeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <multisig> <index>",
		Short: "executes an approved proposal, batches one transaction at a time",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		results, err := e.app.Execute(ctx, w, ms, index)
		for _, r := range results {
			printResult(r)
		}
		if err != nil {
			return fmt.Errorf("execution stopped after %d transaction(s): %w", len(results), err)
		}
		return nil
	})
	return cmd
}

func statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <multisig>",
		Short: "shows the members and settings of a multisig",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, _ wallet.Wallet, args []string) error {
		address, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		ms, err := e.app.GetMultisig(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to read the multisig: %w", err)
		}
		fmt.Printf("multisig %s\n", ms.Address)
		fmt.Printf("  threshold:   %d of %d\n", ms.Threshold, len(ms.Members))
		fmt.Printf("  time lock:   %ds\n", ms.TimeLock)
		fmt.Printf("  transaction: %d (stale up to %d)\n", ms.TransactionIndex, ms.StaleTransactionIndex)
		for _, m := range ms.Members {
			fmt.Printf("  member %s permissions %03b\n", m.Key, m.Permissions)
		}
		return nil
	})
	return cmd
}

func approvalsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals <multisig> <index>",
		Short: "shows who approved a proposal and who can still pay fees",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		connected, _ := w.PublicKey()
		view, err := e.app.ApprovalView(ctx, ms, index, connected)
		if err != nil {
			return fmt.Errorf("failed to read the approvals: %w", err)
		}
		printView(view)
		return nil
	})
	return cmd
}

func portfolioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio <multisig>",
		Short: "lists the holdings of every vault",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, _ wallet.Wallet, args []string) error {
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		p, err := e.app.Portfolio(ctx, ms)
		if err != nil {
			return fmt.Errorf("failed to read the portfolio: %w", err)
		}
		for _, v := range p.Vaults {
			if v.Err != nil {
				fmt.Printf("vault %d: unavailable: %v\n", v.Index, v.Err)
				continue
			}
			if v.IsEmpty() {
				continue
			}
			fmt.Printf("vault %d %s: %s SOL\n", v.Index, v.Address, v.SOL())
			for _, t := range v.Tokens {
				fmt.Printf("  %s %s\n", t.UIAmount(), t.Mint)
			}
		}
		total := model.VaultBalance{Lamports: p.TotalLamports()}
		fmt.Printf("total: %s SOL\n", total.SOL())
		if p.Valued {
			fmt.Printf("value: $%s\n", p.TotalUSD().StringFixed(2))
		}
		return nil
	})
	return cmd
}

func linkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link [multisig]",
		Short: "shows or sets the default multisig of the keypair wallet",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.RunE = signingCommand(func(ctx context.Context, e *env, w wallet.Wallet, args []string) error {
		key, ok := w.PublicKey()
		if !ok {
			return app.ErrWalletNotConnected
		}
		if len(args) == 0 {
			ms, err := e.app.DefaultMultisig(ctx, key)
			if err != nil {
				return fmt.Errorf("no default multisig: %w", err)
			}
			fmt.Println(ms)
			return nil
		}
		ms, err := squads.ParseAddress(args[0])
		if err != nil {
			return err
		}
		if err := e.app.LinkMultisig(ctx, key, ms); err != nil {
			return fmt.Errorf("failed to link: %w", err)
		}
		fmt.Printf("%s linked to %s\n", key, ms)
		return nil
	})
	return cmd
}
