package app

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/wallet"
)

const nativeDecimals = 9

// TransferRequest moves Amount, in whole units of the token, out of a vault.
// A zero Mint means SOL.
type TransferRequest struct {
	Multisig   solana.PublicKey
	VaultIndex uint8
	Recipient  solana.PublicKey
	Mint       solana.PublicKey
	Amount     decimal.Decimal
	Memo       string
}

func baseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	units := amount.Shift(int32(decimals))
	if !units.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidRequest, amount, decimals)
	}
	if !units.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if !units.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: amount %s is too large", ErrInvalidRequest, amount)
	}
	return units.BigInt().Uint64(), nil
}

// transferInstructions builds what the vault itself executes once the proposal passes.
func (a App) transferInstructions(ctx context.Context, req TransferRequest) ([]solana.Instruction, error) {
	vault, err := a.program.VaultAddress(req.Multisig, req.VaultIndex)
	if err != nil {
		return nil, err
	}

	if req.Mint.IsZero() {
		lamports, err := baseUnits(req.Amount, nativeDecimals)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{system.NewTransferInstruction(lamports, vault, req.Recipient).Build()}, nil
	}

	holdings, err := a.chain.GetTokenBalances(ctx, vault)
	if err != nil {
		return nil, err
	}
	var source *model.TokenBalance
	for i := range holdings {
		if holdings[i].Mint.Equals(req.Mint) {
			source = &holdings[i]
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%w: vault %d holds no %s", ErrInvalidRequest, req.VaultIndex, req.Mint)
	}

	amount, err := baseUnits(req.Amount, source.Decimals)
	if err != nil {
		return nil, err
	}
	if amount > source.Amount {
		return nil, fmt.Errorf("%w: vault %d holds %s of %s", ErrInvalidRequest, req.VaultIndex, source.UIAmount(), req.Mint)
	}

	destination, _, err := solana.FindAssociatedTokenAddress(req.Recipient, req.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive the token account of %s: %w", req.Recipient, err)
	}
	exists, err := a.chain.AccountExists(ctx, destination)
	if err != nil {
		return nil, err
	}

	var ixs []solana.Instruction
	if !exists {
		ixs = append(ixs, associatedtokenaccount.NewCreateInstruction(vault, req.Recipient, req.Mint).Build())
	}
	ixs = append(ixs, token.NewTransferCheckedInstruction(
		amount, source.Decimals, source.Account, req.Mint, destination, vault, nil,
	).Build())
	return ixs, nil
}

// PlanTransfer plans a new vault transaction moving funds to req.Recipient, its
// proposal and the proposer's approval.
func (a App) PlanTransfer(ctx context.Context, member solana.PublicKey, req TransferRequest) (Plan, error) {
	if req.Recipient.IsZero() {
		return Plan{}, fmt.Errorf("%w: missing recipient", ErrInvalidRequest)
	}
	ms, err := a.GetMultisig(ctx, req.Multisig)
	if err != nil {
		return Plan{}, err
	}
	index := ms.NextTransactionIndex()
	plan := Plan{Action: model.ActionPropose, Multisig: req.Multisig, Index: index, Payer: member}

	inner, err := a.transferInstructions(ctx, req)
	if err != nil {
		return plan, err
	}
	create, err := a.program.VaultTransactionCreate(squads.VaultTransactionCreateParams{
		Multisig:         req.Multisig,
		Creator:          member,
		TransactionIndex: index,
		VaultIndex:       req.VaultIndex,
		Instructions:     inner,
		Memo:             req.Memo,
	})
	if err != nil {
		return plan, err
	}
	plan.add(StepVaultTransactionCreate, create)

	return plan, a.addProposal(&plan, member)
}

// PlanConfigChange plans a config transaction, its proposal and the proposer's
// approval. The resulting membership is checked before anything is sent.
func (a App) PlanConfigChange(ctx context.Context, member, multisig solana.PublicKey, actions ...squads.ConfigAction) (Plan, error) {
	if len(actions) == 0 {
		return Plan{}, fmt.Errorf("%w: no changes", ErrInvalidRequest)
	}
	ms, err := a.GetMultisig(ctx, multisig)
	if err != nil {
		return Plan{}, err
	}
	if err := checkConfigActions(ms, actions); err != nil {
		return Plan{}, err
	}

	index := ms.NextTransactionIndex()
	plan := Plan{Action: model.ActionPropose, Multisig: multisig, Index: index, Payer: member}

	create, err := a.program.ConfigTransactionCreate(squads.ConfigTransactionCreateParams{
		Multisig:         multisig,
		Creator:          member,
		TransactionIndex: index,
		Actions:          actions,
	})
	if err != nil {
		return plan, err
	}
	plan.add(StepConfigTransactionCreate, create)

	return plan, a.addProposal(&plan, member)
}

// checkConfigActions applies actions to the current membership and validates the outcome.
func checkConfigActions(ms model.Multisig, actions []squads.ConfigAction) error {
	members, threshold := ms.Members, ms.Threshold
	for _, action := range actions {
		var err error
		if members, threshold, err = action.Apply(members, threshold); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if err := model.ValidateMembership(members, threshold); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (a App) addProposal(plan *Plan, member solana.PublicKey) error {
	create, err := a.program.ProposalCreate(squads.ProposalCreateParams{
		Multisig:         plan.Multisig,
		Creator:          member,
		TransactionIndex: plan.Index,
	})
	if err != nil {
		return err
	}
	plan.add(StepProposalCreate, create)

	approve, err := a.program.ProposalApprove(squads.ProposalVoteParams{
		Multisig:         plan.Multisig,
		Member:           member,
		TransactionIndex: plan.Index,
	})
	if err != nil {
		return err
	}
	plan.add(StepProposalApprove, approve)
	return nil
}

func (a App) ProposeTransfer(ctx context.Context, w wallet.Wallet, req TransferRequest) (Result, error) {
	member, err := connectedKey(w)
	if err != nil {
		return Result{}, err
	}
	plan, err := a.PlanTransfer(ctx, member, req)
	if err != nil {
		return Result{}, err
	}
	result, err := a.run(ctx, w, plan)
	if err != nil {
		return result, err
	}
	a.rememberRecipient(member, req.Recipient)
	return result, nil
}

func (a App) rememberRecipient(member, recipient solana.PublicKey) {
	if a.recipients == nil {
		return
	}
	if err := a.recipients.AddRecipient(member, recipient); err != nil {
		a.logger.Warn("failed to store recipient", zap.String("wallet", member.String()), zap.Error(err))
	}
}

func (a App) proposeConfig(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, actions ...squads.ConfigAction) (Result, error) {
	member, err := connectedKey(w)
	if err != nil {
		return Result{}, err
	}
	plan, err := a.PlanConfigChange(ctx, member, multisig, actions...)
	if err != nil {
		return Result{}, err
	}
	return a.run(ctx, w, plan)
}

// ProposeAddMember proposes adding key with full permissions.
func (a App) ProposeAddMember(ctx context.Context, w wallet.Wallet, multisig, key solana.PublicKey) (Result, error) {
	return a.proposeConfig(ctx, w, multisig, squads.AddMember(model.FullMember(key)))
}

func (a App) ProposeRemoveMember(ctx context.Context, w wallet.Wallet, multisig, key solana.PublicKey) (Result, error) {
	return a.proposeConfig(ctx, w, multisig, squads.RemoveMember(key))
}

func (a App) ProposeThreshold(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, threshold uint16) (Result, error) {
	return a.proposeConfig(ctx, w, multisig, squads.ChangeThreshold(threshold))
}

func (a App) ProposeTimeLock(ctx context.Context, w wallet.Wallet, multisig solana.PublicKey, seconds uint32) (Result, error) {
	return a.proposeConfig(ctx, w, multisig, squads.SetTimeLock(seconds))
}

// CreateRequest describes a new multisig. Every member gets full permissions.
type CreateRequest struct {
	Members   []solana.PublicKey
	Threshold uint16
	TimeLock  uint32
	Memo      string
}

// PlanCreate plans a new multisig created by member. The create key is a
// throwaway key that signs with the plan.
func (a App) PlanCreate(ctx context.Context, member solana.PublicKey, req CreateRequest) (Plan, error) {
	members := make([]model.Member, len(req.Members))
	for i, key := range req.Members {
		members[i] = model.FullMember(key)
	}
	if err := model.ValidateMembership(members, req.Threshold); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	createKey, err := wallet.GenerateKey()
	if err != nil {
		return Plan{}, err
	}
	multisig, err := a.program.MultisigAddress(createKey.PublicKey())
	if err != nil {
		return Plan{}, err
	}
	treasury, err := a.chain.GetTreasury(ctx)
	if err != nil {
		return Plan{}, err
	}

	ix, err := a.program.MultisigCreate(squads.MultisigCreateParams{
		CreateKey: createKey.PublicKey(),
		Creator:   member,
		Treasury:  treasury,
		Members:   members,
		Threshold: req.Threshold,
		TimeLock:  req.TimeLock,
		Memo:      req.Memo,
	})
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Action: model.ActionCreate, Multisig: multisig, Payer: member, Signers: []solana.PrivateKey{createKey}}
	plan.add(StepMultisigCreate, ix)
	return plan, nil
}

// CreateMultisig creates the multisig and makes it the default of the connected wallet.
func (a App) CreateMultisig(ctx context.Context, w wallet.Wallet, req CreateRequest) (Result, error) {
	member, err := connectedKey(w)
	if err != nil {
		return Result{}, err
	}
	plan, err := a.PlanCreate(ctx, member, req)
	if err != nil {
		return Result{}, err
	}
	result, err := a.run(ctx, w, plan)
	if err != nil {
		return result, err
	}
	if err := a.storeLink(ctx, member, plan.Multisig); err != nil {
		a.logger.Warn("multisig created but not linked", zap.String("multisig", plan.Multisig.String()), zap.Error(err))
	}
	return result, nil
}

// PrepareTransfer is PlanTransfer turned into a simulated transaction for a browser wallet.
func (a App) PrepareTransfer(ctx context.Context, member solana.PublicKey, req TransferRequest) (Prepared, error) {
	plan, err := a.PlanTransfer(ctx, member, req)
	if err != nil {
		return Prepared{}, err
	}
	prepared, err := a.prepare(ctx, plan)
	if err != nil {
		return prepared, err
	}
	a.rememberRecipient(member, req.Recipient)
	return prepared, nil
}
