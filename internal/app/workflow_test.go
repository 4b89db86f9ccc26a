package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/mocks/rpcMocks"
	"multisig-dashboard/internal/mocks/walletMocks"
	"multisig-dashboard/internal/model"
	"multisig-dashboard/internal/pricing"
	"multisig-dashboard/internal/wallet"
)

var testOptions = app.Options{
	ComputeUnitLimit: 400_000,
	ComputeUnitPrice: 1_000,
	ConfirmTimeout:   5 * time.Second,
	PriceTimeout:     time.Second,
	MinFeeBalance:    1_000_000,
	VaultFirst:       0,
	VaultLast:        15,
}

type testApp struct {
	app.App
	ctrl       *gomock.Controller
	chain      *chain
	events     *recordingPublisher
	recipients *memoryRecipients
	lookup     *memoryLookup
}

func newTestApp(t *testing.T, prices pricing.Source) *testApp {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	ta := &testApp{
		ctrl:       ctrl,
		chain:      newChain(t, ctrl),
		events:     &recordingPublisher{},
		recipients: &memoryRecipients{},
		lookup:     &memoryLookup{},
	}
	ta.App = app.NewApp(zap.NewNop(), ta.chain.client(), ta.lookup, ta.recipients, ta.events, prices, testOptions)
	return ta
}

func newMember() (*wallet.Keypair, solana.PublicKey) {
	key := solana.NewWallet().PrivateKey
	return wallet.NewKeypair(key), key.PublicKey()
}

func TestActionGating(t *testing.T) {
	type row struct {
		approve, reject, cancel, execute []string
	}
	rows := map[string]struct {
		status *uint8
		want   row
	}{
		"none": {nil, row{
			approve: []string{app.StepProposalCreate, app.StepProposalApprove},
			reject:  []string{app.StepProposalCreate, app.StepProposalReject},
		}},
		"draft": {ptr(statusDraft), row{
			approve: []string{app.StepProposalActivate, app.StepProposalApprove},
			reject:  []string{app.StepProposalActivate, app.StepProposalReject},
		}},
		"active": {ptr(statusActive), row{
			approve: []string{app.StepProposalApprove},
			reject:  []string{app.StepProposalReject},
		}},
		"approved": {ptr(statusApproved), row{
			cancel:  []string{app.StepProposalCancel},
			execute: []string{app.StepComputeUnitLimit, app.StepComputeUnitPrice, app.StepVaultTransactionExecute},
		}},
		"rejected":  {ptr(statusRejected), row{}},
		"executing": {ptr(statusExecuting), row{}},
		"executed":  {ptr(statusExecuted), row{}},
		"cancelled": {ptr(statusCancelled), row{}},
	}

	for name, tc := range rows {
		t.Run(name, func(t *testing.T) {
			ta := newTestApp(t, nil)
			member := solana.NewWallet().PublicKey()
			ms := solana.NewWallet().PublicKey()
			if tc.status != nil {
				ta.chain.setProposal(ms, 4, *tc.status)
			}
			vault := ta.chain.vault(ms, 0)
			ta.chain.setTransaction(ms, 4, vaultTransactionData(ms, vault, solana.NewWallet().PublicKey(), 4))

			expected := map[model.Action][]string{
				model.ActionApprove: tc.want.approve,
				model.ActionReject:  tc.want.reject,
				model.ActionCancel:  tc.want.cancel,
				model.ActionExecute: tc.want.execute,
			}
			for action, steps := range expected {
				prepared, err := ta.Prepare(context.Background(), member, ms, 4, action)
				if steps == nil {
					assert.ErrorIs(t, err, app.ErrInvalidProposalState, "%s on %s", action, name)
					continue
				}
				require.NoError(t, err, "%s on %s", action, name)
				assert.Equal(t, steps, prepared.Steps, "%s on %s", action, name)
				assert.NotEmpty(t, prepared.Transaction)
			}
		})
	}
}

func ptr(v uint8) *uint8 {
	return &v
}

func TestPlanVoteRejectsOtherActions(t *testing.T) {
	ta := newTestApp(t, nil)
	_, err := ta.PlanVote(context.Background(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 1, model.ActionExecute)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
}

func TestTransferApproveExecute(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()

	alice, aliceKey := newMember()
	bob, bobKey := newMember()
	_, carolKey := newMember()
	ms := solana.NewWallet().PublicKey()
	recipient := solana.NewWallet().PublicKey()
	ta.chain.setMultisig(ms, 2, 6, aliceKey, bobKey, carolKey)

	// alice proposes; the new proposal goes to index 7
	result, err := ta.ProposeTransfer(ctx, alice, app.TransferRequest{
		Multisig:  ms,
		Recipient: recipient,
		Amount:    decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), result.Index)
	assert.Equal(t, []string{app.StepVaultTransactionCreate, app.StepProposalCreate, app.StepProposalApprove}, result.Steps)

	sent := ta.chain.sentTransactions()
	require.Len(t, sent, 1)
	assert.NoError(t, sent[0].VerifySignatures())
	assert.Equal(t, sent[0].Signatures[0], result.Signature)

	recent, err := ta.RecentRecipients(aliceKey)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{recipient}, recent)

	// bob approves; threshold reached
	ta.chain.setMultisig(ms, 2, 7, aliceKey, bobKey, carolKey)
	ta.chain.setProposal(ms, 7, statusActive, aliceKey)
	result, err = ta.Approve(ctx, bob, ms, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{app.StepProposalApprove}, result.Steps)

	// alice executes
	ta.chain.setProposal(ms, 7, statusApproved, aliceKey, bobKey)
	ta.chain.setTransaction(ms, 7, vaultTransactionData(ms, ta.chain.vault(ms, 0), recipient, 7))
	results, err := ta.Execute(ctx, alice, ms, 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{app.StepComputeUnitLimit, app.StepComputeUnitPrice, app.StepVaultTransactionExecute}, results[0].Steps)

	// the executed proposal takes no more actions
	ta.chain.setProposal(ms, 7, statusExecuted, aliceKey, bobKey)
	_, err = ta.Execute(ctx, alice, ms, 7)
	assert.ErrorIs(t, err, app.ErrInvalidProposalState)

	events := ta.events.published()
	require.Len(t, events, 3)
	assert.Equal(t, model.ActionPropose, events[0].Action)
	assert.Equal(t, bobKey.String(), events[1].Actor)
	assert.Equal(t, model.ActionExecute, events[2].Action)
	assert.Len(t, ta.chain.sentTransactions(), 3)
}

func TestExecuteBatchInOrder(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	vault := ta.chain.vault(ms, 0)

	ta.chain.setProposal(ms, 2, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 2, batchData(ms, 2, 5, 2))
	for i := uint32(3); i <= 5; i++ {
		ta.chain.setBatchTransaction(ms, 2, i, batchTransactionData(vault, solana.NewWallet().PublicKey()))
	}

	results, err := ta.Execute(context.Background(), alice, ms, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	sent := ta.chain.sentTransactions()
	require.Len(t, sent, 3)
	for i, tx := range sent {
		want := ta.chain.batchTransaction(ms, 2, uint32(3+i))
		assert.Contains(t, tx.Message.AccountKeys, want, "transaction %d", i)
		assert.Equal(t, []string{app.StepComputeUnitLimit, app.StepComputeUnitPrice, app.StepBatchExecuteTransaction}, results[i].Steps)

		// read, sent and confirmed before the next one is read
		sig := tx.Signatures[0].String()
		read := ta.chain.callIndex("read " + want.String())
		send := ta.chain.callIndex("send " + sig)
		confirm := ta.chain.callIndex("confirm " + sig)
		require.True(t, read >= 0 && send >= 0 && confirm >= 0, "transaction %d", i)
		assert.Less(t, read, send, "transaction %d", i)
		assert.Less(t, send, confirm, "transaction %d", i)
		if i+1 < len(sent) {
			nextRead := ta.chain.callIndex("read " + ta.chain.batchTransaction(ms, 2, uint32(4+i)).String())
			assert.Less(t, confirm, nextRead, "transaction %d", i)
		}
	}
}

func TestExecuteBatchStopsAtFirstFailure(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	vault := ta.chain.vault(ms, 0)

	ta.chain.setProposal(ms, 2, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 2, batchData(ms, 2, 2, 0))
	for i := uint32(1); i <= 2; i++ {
		ta.chain.setBatchTransaction(ms, 2, i, batchTransactionData(vault, solana.NewWallet().PublicKey()))
	}

	plan, err := ta.PlanExecute(context.Background(), aliceKey, ms, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{app.StepComputeUnitLimit, app.StepComputeUnitPrice, app.StepBatchExecuteTransaction}, plan.StepNames())
	var keys []solana.PublicKey
	for _, meta := range plan.Instructions()[2].Accounts() {
		keys = append(keys, meta.PublicKey)
	}
	assert.Contains(t, keys, ta.chain.batchTransaction(ms, 2, 1))
	assert.NotContains(t, keys, ta.chain.batchTransaction(ms, 2, 2))

	ta.chain.simErr = map[string]interface{}{
		"InstructionError": []interface{}{float64(2), map[string]interface{}{"Custom": float64(6009)}},
	}
	results, err := ta.Execute(context.Background(), alice, ms, 2)
	assert.ErrorIs(t, err, blockchain.ErrSimulationFailed)
	assert.Empty(t, results)
	assert.Empty(t, ta.chain.sentTransactions())
}

func TestExecuteBatchReturnsConfirmedBeforeFailure(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	vault := ta.chain.vault(ms, 0)

	ta.chain.setProposal(ms, 2, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 2, batchData(ms, 2, 3, 0))
	for i := uint32(1); i <= 3; i++ {
		ta.chain.setBatchTransaction(ms, 2, i, batchTransactionData(vault, solana.NewWallet().PublicKey()))
	}
	ta.chain.simErrFor[ta.chain.batchTransaction(ms, 2, 2)] = map[string]interface{}{
		"InstructionError": []interface{}{float64(2), map[string]interface{}{"Custom": float64(6009)}},
	}

	results, err := ta.Execute(context.Background(), alice, ms, 2)
	assert.ErrorIs(t, err, blockchain.ErrSimulationFailed)
	require.Len(t, results, 1)

	sent := ta.chain.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, sent[0].Signatures[0], results[0].Signature)
	assert.Contains(t, sent[0].Message.AccountKeys, ta.chain.batchTransaction(ms, 2, 1))
}

func TestExecuteBatchRunsReadableTransactionsFirst(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	vault := ta.chain.vault(ms, 0)

	// 5 was never stored
	ta.chain.setProposal(ms, 2, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 2, batchData(ms, 2, 5, 2))
	for i := uint32(3); i <= 4; i++ {
		ta.chain.setBatchTransaction(ms, 2, i, batchTransactionData(vault, solana.NewWallet().PublicKey()))
	}

	results, err := ta.Execute(context.Background(), alice, ms, 2)
	assert.ErrorIs(t, err, blockchain.ErrReadNotFound)
	assert.Len(t, results, 2)
	assert.Len(t, ta.chain.sentTransactions(), 2)
}

func TestExecuteBatchRereadsCursor(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	vault := ta.chain.vault(ms, 0)

	ta.chain.setProposal(ms, 2, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 2, batchData(ms, 2, 4, 0))
	for i := uint32(1); i <= 4; i++ {
		ta.chain.setBatchTransaction(ms, 2, i, batchTransactionData(vault, solana.NewWallet().PublicKey()))
	}
	// another member executes 2 and 3 while the first one confirms
	ta.chain.onSend = func(*solana.Transaction) {
		ta.chain.setTransaction(ms, 2, batchData(ms, 2, 4, 3))
	}

	results, err := ta.Execute(context.Background(), alice, ms, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	sent := ta.chain.sentTransactions()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Message.AccountKeys, ta.chain.batchTransaction(ms, 2, 1))
	assert.Contains(t, sent[1].Message.AccountKeys, ta.chain.batchTransaction(ms, 2, 4))
	assert.NotContains(t, sent[1].Message.AccountKeys, ta.chain.batchTransaction(ms, 2, 2))
}

func TestPrepareEmptyBatch(t *testing.T) {
	ta := newTestApp(t, nil)
	_, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	ta.chain.setProposal(ms, 2, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 2, batchData(ms, 2, 2, 2))

	_, err := ta.Prepare(context.Background(), aliceKey, ms, 2, model.ActionExecute)
	assert.ErrorIs(t, err, app.ErrInvalidProposalState)
}

func TestExecuteConfigTransaction(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()

	ta.chain.setProposal(ms, 3, statusApproved, aliceKey)
	ta.chain.setTransaction(ms, 3, configTransactionData(ms, 3))

	results, err := ta.Execute(context.Background(), alice, ms, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{app.StepConfigTransactionExecute}, results[0].Steps)
}

func TestSimulationFailureSignsNothing(t *testing.T) {
	ta := newTestApp(t, nil)
	member := solana.NewWallet().PublicKey()
	ms := solana.NewWallet().PublicKey()
	ta.chain.setProposal(ms, 1, statusActive)
	ta.chain.simErr = map[string]interface{}{
		"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(6005)}},
	}

	w := walletMocks.NewMockWallet(ta.ctrl)
	w.EXPECT().PublicKey().Return(member, true)
	// SignTransaction is not expected

	_, err := ta.Approve(context.Background(), w, ms, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, blockchain.ErrSimulationFailed)

	var simErr *blockchain.SimulationError
	require.True(t, errors.As(err, &simErr))
	assert.Equal(t, "NotAMember", simErr.Program.Name)
	assert.Empty(t, ta.chain.sentTransactions())
	assert.Empty(t, ta.events.published())
}

func TestWalletRejection(t *testing.T) {
	ta := newTestApp(t, nil)
	member := solana.NewWallet().PublicKey()
	ms := solana.NewWallet().PublicKey()
	ta.chain.setProposal(ms, 1, statusActive)

	w := walletMocks.NewMockWallet(ta.ctrl)
	w.EXPECT().PublicKey().Return(member, true)
	w.EXPECT().SignTransaction(gomock.Any(), gomock.Any()).Return(wallet.ErrRejected)

	_, err := ta.Reject(context.Background(), w, ms, 1)
	assert.ErrorIs(t, err, blockchain.ErrSubmissionFailed)
	assert.ErrorIs(t, err, wallet.ErrRejected)
	assert.Empty(t, ta.chain.sentTransactions())
}

func TestNotConnectedDoesNoIO(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// no expectations: any read fails the test
	strict := rpcMocks.NewMockRPC(ctrl)
	program, err := squads.NewProgram(squads.DefaultProgramID)
	require.NoError(t, err)
	a := app.NewApp(zap.NewNop(), blockchain.NewClient(zap.NewNop(), strict, program), nil, nil, nil, nil, testOptions)

	ctx := context.Background()
	ms := solana.NewWallet().PublicKey()
	disconnected := wallet.Disconnected{}

	_, err = a.Approve(ctx, disconnected, ms, 1)
	assert.ErrorIs(t, err, app.ErrWalletNotConnected)
	_, err = a.Cancel(ctx, nil, ms, 1)
	assert.ErrorIs(t, err, app.ErrWalletNotConnected)
	_, err = a.Execute(ctx, disconnected, ms, 1)
	assert.ErrorIs(t, err, app.ErrWalletNotConnected)
	_, err = a.ProposeTransfer(ctx, disconnected, app.TransferRequest{Multisig: ms})
	assert.ErrorIs(t, err, app.ErrWalletNotConnected)
	_, err = a.ProposeThreshold(ctx, disconnected, ms, 2)
	assert.ErrorIs(t, err, app.ErrWalletNotConnected)
	_, err = a.CreateMultisig(ctx, disconnected, app.CreateRequest{})
	assert.ErrorIs(t, err, app.ErrWalletNotConnected)
}

func TestProposeConfigChanges(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()
	alice, aliceKey := newMember()
	_, bobKey := newMember()
	ms := solana.NewWallet().PublicKey()
	ta.chain.setMultisig(ms, 2, 0, aliceKey, bobKey)

	result, err := ta.ProposeAddMember(ctx, alice, ms, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Index)
	assert.Equal(t, []string{app.StepConfigTransactionCreate, app.StepProposalCreate, app.StepProposalApprove}, result.Steps)

	_, err = ta.ProposeTimeLock(ctx, alice, ms, 3600)
	require.NoError(t, err)

	// checked locally, nothing is sent
	_, err = ta.ProposeRemoveMember(ctx, alice, ms, bobKey)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
	_, err = ta.ProposeRemoveMember(ctx, alice, ms, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
	_, err = ta.ProposeThreshold(ctx, alice, ms, 3)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)
	_, err = ta.ProposeThreshold(ctx, alice, ms, 0)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	assert.Len(t, ta.chain.sentTransactions(), 2)
}

func TestProposeOnMissingMultisig(t *testing.T) {
	ta := newTestApp(t, nil)
	alice, _ := newMember()

	_, err := ta.ProposeThreshold(context.Background(), alice, solana.NewWallet().PublicKey(), 1)
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestProposeTokenTransfer(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()
	alice, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ta.chain.setMultisig(ms, 1, 0, aliceKey)
	ta.chain.setTokenAccount(ta.chain.vault(ms, 1), solana.NewWallet().PublicKey(), mint, "5000000", 6)

	req := app.TransferRequest{
		Multisig:   ms,
		VaultIndex: 1,
		Recipient:  solana.NewWallet().PublicKey(),
		Mint:       mint,
		Amount:     decimal.RequireFromString("2.25"),
	}
	result, err := ta.ProposeTransfer(ctx, alice, req)
	require.NoError(t, err)
	assert.Equal(t, app.StepVaultTransactionCreate, result.Steps[0])

	tooMuch := req
	tooMuch.Amount = decimal.NewFromInt(6)
	_, err = ta.ProposeTransfer(ctx, alice, tooMuch)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	tooPrecise := req
	tooPrecise.Amount = decimal.RequireFromString("0.0000001")
	_, err = ta.ProposeTransfer(ctx, alice, tooPrecise)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	notHeld := req
	notHeld.VaultIndex = 0
	_, err = ta.ProposeTransfer(ctx, alice, notHeld)
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	assert.Len(t, ta.chain.sentTransactions(), 1)
}

func TestCreateMultisig(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()
	alice, aliceKey := newMember()
	_, bobKey := newMember()
	ta.chain.set(ta.chain.program.ProgramConfigAddress(), programConfigData(solana.NewWallet().PublicKey()))

	_, err := ta.CreateMultisig(ctx, alice, app.CreateRequest{Members: []solana.PublicKey{aliceKey, bobKey}, Threshold: 3})
	assert.ErrorIs(t, err, app.ErrInvalidRequest)

	result, err := ta.CreateMultisig(ctx, alice, app.CreateRequest{Members: []solana.PublicKey{aliceKey, bobKey}, Threshold: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{app.StepMultisigCreate}, result.Steps)

	sent := ta.chain.sentTransactions()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Signatures, 2)
	assert.NoError(t, sent[0].VerifySignatures())

	linked, err := ta.DefaultMultisig(ctx, aliceKey)
	require.NoError(t, err)
	assert.Equal(t, result.Multisig, linked)
}

func TestLinkMultisig(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()
	_, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	ta.chain.setMultisig(ms, 1, 0, aliceKey)

	_, err := ta.DefaultMultisig(ctx, aliceKey)
	assert.ErrorIs(t, err, app.ErrNotFound)

	assert.ErrorIs(t, ta.LinkMultisig(ctx, solana.NewWallet().PublicKey(), ms), app.ErrNotMember)
	assert.ErrorIs(t, ta.LinkMultisig(ctx, aliceKey, solana.NewWallet().PublicKey()), app.ErrNotFound)
	require.NoError(t, ta.LinkMultisig(ctx, aliceKey, ms))

	linked, err := ta.DefaultMultisig(ctx, aliceKey)
	require.NoError(t, err)
	assert.Equal(t, ms, linked)
}

func TestLinkMultisigStoreFailure(t *testing.T) {
	ta := newTestApp(t, nil)
	_, aliceKey := newMember()
	ms := solana.NewWallet().PublicKey()
	ta.chain.setMultisig(ms, 1, 0, aliceKey)

	down := errors.New("server selection timeout")
	ta.lookup.setErr = down

	err := ta.LinkMultisig(context.Background(), aliceKey, ms)
	assert.ErrorIs(t, err, down)
}
