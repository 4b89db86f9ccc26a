package squads_test

import (
	"encoding/binary"
	"multisig-dashboard/internal/blockchain/squads"
	"multisig-dashboard/internal/model"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	proposalApproveDiscriminator = []byte{144, 37, 164, 136, 188, 216, 42, 248}
	proposalCreateDiscriminator  = []byte{220, 60, 73, 224, 30, 108, 79, 159}
	vaultExecuteDiscriminator    = []byte{194, 8, 161, 87, 153, 164, 25, 171}
)

func TestProposalApprove(t *testing.T) {
	p := testProgram(t)
	member := solana.NewWallet().PublicKey()

	ix, err := p.ProposalApprove(squads.ProposalVoteParams{
		Multisig:         testMultisig,
		Member:           member,
		TransactionIndex: 4,
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, proposalApproveDiscriminator...), 0), data)

	proposal, err := p.ProposalAddress(testMultisig, 4)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, testMultisig, accounts[0].PublicKey)
	assert.False(t, accounts[0].IsWritable)
	assert.Equal(t, member, accounts[1].PublicKey)
	assert.True(t, accounts[1].IsSigner)
	assert.Equal(t, proposal, accounts[2].PublicKey)
	assert.True(t, accounts[2].IsWritable)
	assert.Equal(t, squads.DefaultProgramID, ix.ProgramID())
}

func TestProposalApproveWithMemo(t *testing.T) {
	p := testProgram(t)

	ix, err := p.ProposalApprove(squads.ProposalVoteParams{
		Multisig:         testMultisig,
		Member:           solana.NewWallet().PublicKey(),
		TransactionIndex: 1,
		Memo:             "ok",
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0, 0, 'o', 'k'}, data[8:])
}

func TestProposalVoteRequiresMember(t *testing.T) {
	p := testProgram(t)
	_, err := p.ProposalReject(squads.ProposalVoteParams{Multisig: testMultisig, TransactionIndex: 1})
	assert.ErrorIs(t, err, squads.ErrInvalidParams)
}

func TestProposalCreate(t *testing.T) {
	p := testProgram(t)
	creator := solana.NewWallet().PublicKey()

	ix, err := p.ProposalCreate(squads.ProposalCreateParams{
		Multisig:         testMultisig,
		Creator:          creator,
		TransactionIndex: 258,
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 17)
	assert.Equal(t, proposalCreateDiscriminator, data[:8])
	assert.Equal(t, uint64(258), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, byte(0), data[16])

	accounts := ix.Accounts()
	require.Len(t, accounts, 5)
	// rent payer defaults to the creator
	assert.Equal(t, creator, accounts[3].PublicKey)
	assert.True(t, accounts[3].IsWritable)
	assert.Equal(t, solana.SystemProgramID, accounts[4].PublicKey)
}

func TestConfigTransactionCreate(t *testing.T) {
	p := testProgram(t)
	newMember := solana.NewWallet().PublicKey()

	ix, err := p.ConfigTransactionCreate(squads.ConfigTransactionCreateParams{
		Multisig:         testMultisig,
		Creator:          solana.NewWallet().PublicKey(),
		TransactionIndex: 2,
		Actions: []squads.ConfigAction{
			squads.AddMember(model.FullMember(newMember)),
			squads.ChangeThreshold(2),
		},
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)

	body := data[8:]
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(body[:4]))
	assert.Equal(t, byte(0), body[4])
	assert.Equal(t, newMember.Bytes(), body[5:37])
	assert.Equal(t, model.PermissionFull, body[37])
	assert.Equal(t, byte(2), body[38])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(body[39:41]))
	// no memo
	assert.Equal(t, []byte{0}, body[41:])
}

func TestConfigTransactionCreateValidation(t *testing.T) {
	p := testProgram(t)
	params := squads.ConfigTransactionCreateParams{
		Multisig:         testMultisig,
		Creator:          solana.NewWallet().PublicKey(),
		TransactionIndex: 2,
	}

	_, err := p.ConfigTransactionCreate(params)
	assert.ErrorIs(t, err, squads.ErrInvalidParams)

	params.Actions = []squads.ConfigAction{squads.ChangeThreshold(0)}
	_, err = p.ConfigTransactionCreate(params)
	assert.ErrorIs(t, err, squads.ErrInvalidParams)

	params.Actions = []squads.ConfigAction{squads.RemoveMember(solana.PublicKey{})}
	_, err = p.ConfigTransactionCreate(params)
	assert.ErrorIs(t, err, squads.ErrInvalidParams)
}

func TestVaultTransactionCreate(t *testing.T) {
	p := testProgram(t)
	vault, err := p.VaultAddress(testMultisig, 0)
	require.NoError(t, err)
	recipient := solana.NewWallet().PublicKey()

	transfer := system.NewTransferInstruction(1000, vault, recipient).Build()
	ix, err := p.VaultTransactionCreate(squads.VaultTransactionCreateParams{
		Multisig:         testMultisig,
		Creator:          solana.NewWallet().PublicKey(),
		TransactionIndex: 9,
		Instructions:     []solana.Instruction{transfer},
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)

	body := data[8:]
	assert.Equal(t, byte(0), body[0], "vault index")
	assert.Equal(t, byte(0), body[1], "ephemeral signers")
	size := binary.LittleEndian.Uint32(body[2:6])
	msg := body[6 : 6+size]

	// one writable signer (vault), one writable recipient, the system program
	assert.Equal(t, []byte{1, 1, 1, 3}, msg[:4])
	assert.Equal(t, vault.Bytes(), msg[4:36])
	assert.Equal(t, recipient.Bytes(), msg[36:68])
	assert.Equal(t, solana.SystemProgramID.Bytes(), msg[68:100])

	tx, err := p.TransactionAddress(testMultisig, 9)
	require.NoError(t, err)
	assert.Equal(t, tx, ix.Accounts()[1].PublicKey)
	assert.True(t, ix.Accounts()[0].IsWritable)
}

func TestVaultTransactionExecute(t *testing.T) {
	p := testProgram(t)
	member := solana.NewWallet().PublicKey()
	vault, err := p.VaultAddress(testMultisig, 0)
	require.NoError(t, err)
	recipient := solana.NewWallet().PublicKey()

	msg, err := squads.CompileMessage(vault, []solana.Instruction{
		system.NewTransferInstruction(1, vault, recipient).Build(),
	})
	require.NoError(t, err)

	ix, err := p.VaultTransactionExecute(squads.ExecuteParams{
		Multisig:         testMultisig,
		Member:           member,
		TransactionIndex: 3,
	}, msg)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, vaultExecuteDiscriminator, data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 7)
	assert.True(t, accounts[3].IsSigner)
	assert.Equal(t, vault, accounts[4].PublicKey)
	assert.False(t, accounts[4].IsSigner)
	assert.True(t, accounts[4].IsWritable)
	assert.True(t, accounts[5].IsWritable)
	assert.False(t, accounts[6].IsWritable)
}

func TestBatchExecuteTransaction(t *testing.T) {
	p := testProgram(t)
	vault, err := p.VaultAddress(testMultisig, 0)
	require.NoError(t, err)

	msg, err := squads.CompileMessage(vault, []solana.Instruction{
		system.NewTransferInstruction(1, vault, solana.NewWallet().PublicKey()).Build(),
	})
	require.NoError(t, err)

	ix, err := p.BatchExecuteTransaction(squads.ExecuteParams{
		Multisig:         testMultisig,
		Member:           solana.NewWallet().PublicKey(),
		TransactionIndex: 5,
	}, 2, msg)
	require.NoError(t, err)

	batchTx, err := p.BatchTransactionAddress(testMultisig, 5, 2)
	require.NoError(t, err)
	batch, err := p.TransactionAddress(testMultisig, 5)
	require.NoError(t, err)

	accounts := ix.Accounts()
	assert.Equal(t, batch, accounts[3].PublicKey)
	assert.Equal(t, batchTx, accounts[4].PublicKey)
	assert.Len(t, accounts, 5+len(msg.AccountKeys))
}

func TestMultisigCreate(t *testing.T) {
	p := testProgram(t)
	createKey := solana.NewWallet().PublicKey()
	creator := solana.NewWallet().PublicKey()

	ix, err := p.MultisigCreate(squads.MultisigCreateParams{
		CreateKey: createKey,
		Creator:   creator,
		Treasury:  solana.NewWallet().PublicKey(),
		Members:   []model.Member{model.FullMember(creator)},
		Threshold: 1,
	})
	require.NoError(t, err)

	ms, err := p.MultisigAddress(createKey)
	require.NoError(t, err)

	var found bool
	for _, acc := range ix.Accounts() {
		if acc.PublicKey.Equals(ms) {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, squads.DefaultProgramID, ix.ProgramID())

	_, err = p.MultisigCreate(squads.MultisigCreateParams{
		CreateKey: createKey,
		Creator:   creator,
		Members:   []model.Member{model.FullMember(creator)},
		Threshold: 2,
	})
	assert.ErrorIs(t, err, squads.ErrInvalidParams)
}
