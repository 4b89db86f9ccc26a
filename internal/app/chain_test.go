package app_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/blockchain"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/mocks/rpcMocks"
	"multisig-dashboard/internal/model"
)

// proposal status variants as stored on chain
const (
	statusDraft uint8 = iota
	statusActive
	statusRejected
	statusApproved
	statusExecuting
	statusExecuted
	statusCancelled
)

// chain serves account reads from memory and accepts every transaction.
type chain struct {
	t       *testing.T
	rpc     *rpcMocks.MockRPC
	program squads.Program

	mu       sync.Mutex
	accounts map[solana.PublicKey][]byte
	balances map[solana.PublicKey]uint64
	tokens   map[solana.PublicKey][]*rpc.TokenAccount
	failing  map[solana.PublicKey]error
	simErr   interface{}
	// simErrFor fails the simulation of transactions touching the key
	simErrFor map[solana.PublicKey]interface{}
	sent      []*solana.Transaction
	// calls logs reads, sends and confirmations in order
	calls []string
	// onSend runs after a transaction is accepted
	onSend func(tx *solana.Transaction)
}

func newChain(t *testing.T, ctrl *gomock.Controller) *chain {
	program, err := squads.NewProgram(squads.DefaultProgramID)
	require.NoError(t, err)

	c := &chain{
		t:        t,
		rpc:      rpcMocks.NewMockRPC(ctrl),
		program:  program,
		accounts: make(map[solana.PublicKey][]byte),
		balances: make(map[solana.PublicKey]uint64),
		tokens:   make(map[solana.PublicKey][]*rpc.TokenAccount),
		failing:  make(map[solana.PublicKey]error),

		simErrFor: make(map[solana.PublicKey]interface{}),
	}

	c.rpc.EXPECT().GetAccountInfo(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, address solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.calls = append(c.calls, "read "+address.String())
			if err := c.failing[address]; err != nil {
				return nil, err
			}
			data, ok := c.accounts[address]
			if !ok {
				return nil, rpc.ErrNotFound
			}
			return &rpc.GetAccountInfoResult{Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)}}, nil
		}).AnyTimes()

	c.rpc.EXPECT().GetBalance(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, address solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if err := c.failing[address]; err != nil {
				return nil, err
			}
			return &rpc.GetBalanceResult{Value: c.balances[address]}, nil
		}).AnyTimes()

	c.rpc.EXPECT().GetTokenAccountsByOwner(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, owner solana.PublicKey, _ *rpc.GetTokenAccountsConfig, _ *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			return &rpc.GetTokenAccountsResult{Value: c.tokens[owner]}, nil
		}).AnyTimes()

	c.rpc.EXPECT().GetLatestBlockhash(gomock.Any(), gomock.Any()).Return(&rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{9}},
	}, nil).AnyTimes()

	c.rpc.EXPECT().SimulateTransactionWithOpts(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *solana.Transaction, _ *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			simErr := c.simErr
			for _, key := range tx.Message.AccountKeys {
				if err, ok := c.simErrFor[key]; ok {
					simErr = err
				}
			}
			return &rpc.SimulateTransactionResponse{Value: &rpc.SimulateTransactionResult{Err: simErr}}, nil
		}).AnyTimes()

	c.rpc.EXPECT().SendTransactionWithOpts(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
			c.mu.Lock()
			c.sent = append(c.sent, tx)
			c.calls = append(c.calls, "send "+tx.Signatures[0].String())
			onSend := c.onSend
			c.mu.Unlock()
			if onSend != nil {
				onSend(tx)
			}
			return tx.Signatures[0], nil
		}).AnyTimes()

	c.rpc.EXPECT().GetSignatureStatuses(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			for _, sig := range sigs {
				c.calls = append(c.calls, "confirm "+sig.String())
			}
			return &rpc.GetSignatureStatusesResult{
				Value: []*rpc.SignatureStatusesResult{{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}},
			}, nil
		}).AnyTimes()

	return c
}

func (c *chain) client() *blockchain.Client {
	return blockchain.NewClient(zap.NewNop(), c.rpc, c.program)
}

func (c *chain) set(address solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[address] = data
}

func (c *chain) fail(address solana.PublicKey, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[address] = err
}

func (c *chain) sentTransactions() []*solana.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*solana.Transaction(nil), c.sent...)
}

// callIndex returns the position of the first logged call equal to entry, or -1.
func (c *chain) callIndex(entry string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, call := range c.calls {
		if call == entry {
			return i
		}
	}
	return -1
}

func (c *chain) setMultisig(address solana.PublicKey, threshold uint16, txIndex uint64, members ...solana.PublicKey) {
	c.set(address, multisigData(threshold, txIndex, members...))
}

func (c *chain) setProposal(ms solana.PublicKey, index uint64, status uint8, approved ...solana.PublicKey) {
	address, err := c.program.ProposalAddress(ms, index)
	require.NoError(c.t, err)
	c.set(address, proposalData(ms, index, status, approved...))
}

func (c *chain) setTransaction(ms solana.PublicKey, index uint64, data []byte) {
	address, err := c.program.TransactionAddress(ms, index)
	require.NoError(c.t, err)
	c.set(address, data)
}

func (c *chain) setBatchTransaction(ms solana.PublicKey, index uint64, txIndex uint32, data []byte) {
	address, err := c.program.BatchTransactionAddress(ms, index, txIndex)
	require.NoError(c.t, err)
	c.set(address, data)
}

func (c *chain) batchTransaction(ms solana.PublicKey, index uint64, txIndex uint32) solana.PublicKey {
	address, err := c.program.BatchTransactionAddress(ms, index, txIndex)
	require.NoError(c.t, err)
	return address
}

func (c *chain) vault(ms solana.PublicKey, index uint8) solana.PublicKey {
	address, err := c.program.VaultAddress(ms, index)
	require.NoError(c.t, err)
	return address
}

func (c *chain) setTokenAccount(owner, account, mint solana.PublicKey, amount string, decimals uint8) {
	raw := `{"program":"spl-token","parsed":{"type":"account","info":{"mint":"` + mint.String() +
		`","tokenAmount":{"amount":"` + amount + `","decimals":` + strconv.Itoa(int(decimals)) + `}}}}`
	var data rpc.DataBytesOrJSON
	require.NoError(c.t, json.Unmarshal([]byte(raw), &data))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[owner] = append(c.tokens[owner], &rpc.TokenAccount{Pubkey: account, Account: rpc.Account{Data: &data}})
}

type accountData struct {
	bytes.Buffer
}

func newAccountData(name string) *accountData {
	d := &accountData{}
	sum := sha256.Sum256([]byte("account:" + name))
	d.Write(sum[:8])
	return d
}

func (d *accountData) u8(v uint8) *accountData {
	d.WriteByte(v)
	return d
}

func (d *accountData) u16(v uint16) *accountData {
	_ = binary.Write(d, binary.LittleEndian, v)
	return d
}

func (d *accountData) u32(v uint32) *accountData {
	_ = binary.Write(d, binary.LittleEndian, v)
	return d
}

func (d *accountData) u64(v uint64) *accountData {
	_ = binary.Write(d, binary.LittleEndian, v)
	return d
}

func (d *accountData) key(k solana.PublicKey) *accountData {
	d.Write(k.Bytes())
	return d
}

func (d *accountData) keys(keys ...solana.PublicKey) *accountData {
	d.u32(uint32(len(keys)))
	for _, k := range keys {
		d.key(k)
	}
	return d
}

func multisigData(threshold uint16, txIndex uint64, members ...solana.PublicKey) []byte {
	d := newAccountData("Multisig")
	d.key(solana.NewWallet().PublicKey()) // create key
	d.key(solana.PublicKey{})             // config authority
	d.u16(threshold)
	d.u32(0)
	d.u64(txIndex)
	d.u64(0)
	d.u8(0) // no rent collector
	d.u8(255)
	d.u32(uint32(len(members)))
	for _, m := range members {
		d.key(m)
		d.u8(model.PermissionFull)
	}
	return d.Bytes()
}

func programConfigData(treasury solana.PublicKey) []byte {
	d := newAccountData("ProgramConfig")
	d.key(solana.NewWallet().PublicKey())
	d.u64(0)
	d.key(treasury)
	d.Write(make([]byte, 64))
	return d.Bytes()
}

func proposalData(ms solana.PublicKey, index uint64, status uint8, approved ...solana.PublicKey) []byte {
	d := newAccountData("Proposal")
	d.key(ms)
	d.u64(index)
	d.u8(status)
	if status != statusExecuting {
		d.u64(1700000000)
	}
	d.u8(254)
	d.keys(approved...)
	d.keys()
	d.keys()
	return d.Bytes()
}

// storedMessage is a vault message with one instruction touching recipient.
func storedMessage(d *accountData, vault, recipient solana.PublicKey) {
	d.u8(1).u8(1).u8(1)
	d.keys(vault, recipient, solana.SystemProgramID)
	d.u32(1)
	d.u8(2)
	d.u32(2).u8(0).u8(1)
	d.u32(12).u32(2).u64(1000)
	d.u32(0)
}

func vaultTransactionData(ms, vault, recipient solana.PublicKey, index uint64) []byte {
	d := newAccountData("VaultTransaction")
	d.key(ms)
	d.key(solana.NewWallet().PublicKey())
	d.u64(index)
	d.u8(255).u8(0).u8(255)
	d.u32(0)
	storedMessage(d, vault, recipient)
	return d.Bytes()
}

func configTransactionData(ms solana.PublicKey, index uint64) []byte {
	d := newAccountData("ConfigTransaction")
	d.key(ms)
	d.key(solana.NewWallet().PublicKey())
	d.u64(index)
	d.u8(255)
	d.u32(1)
	d.u8(2).u16(1)
	return d.Bytes()
}

func batchData(ms solana.PublicKey, index uint64, size, executed uint32) []byte {
	d := newAccountData("Batch")
	d.key(ms)
	d.key(solana.NewWallet().PublicKey())
	d.u64(index)
	d.u8(255).u8(0).u8(255)
	d.u32(size)
	d.u32(executed)
	return d.Bytes()
}

func batchTransactionData(vault, recipient solana.PublicKey) []byte {
	d := newAccountData("VaultBatchTransaction")
	d.u8(255)
	d.u32(0)
	storedMessage(d, vault, recipient)
	return d.Bytes()
}

// recordingPublisher keeps the published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Event(nil), p.events...)
}

// memoryRecipients is a RecipientStore held in memory.
type memoryRecipients struct {
	mu    sync.Mutex
	lists map[solana.PublicKey][]solana.PublicKey
}

func (m *memoryRecipients) AddRecipient(wallet, recipient solana.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lists == nil {
		m.lists = make(map[solana.PublicKey][]solana.PublicKey)
	}
	m.lists[wallet] = append(m.lists[wallet], recipient)
	return nil
}

func (m *memoryRecipients) Recipients(wallet solana.PublicKey) ([]solana.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[wallet], nil
}

// memoryLookup is a MultisigLookup held in memory.
type memoryLookup struct {
	mu    sync.Mutex
	links map[solana.PublicKey]solana.PublicKey
	// setErr fails every write
	setErr error
}

func (m *memoryLookup) GetWalletMultisig(_ context.Context, wallet solana.PublicKey) (solana.PublicKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.links[wallet]
	if !ok {
		return solana.PublicKey{}, app.ErrNotFound
	}
	return ms, nil
}

func (m *memoryLookup) SetWalletMultisig(_ context.Context, wallet, multisig solana.PublicKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.links == nil {
		m.links = make(map[solana.PublicKey]solana.PublicKey)
	}
	m.links[wallet] = multisig
	return nil
}
