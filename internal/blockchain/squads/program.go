package squads

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

var DefaultProgramID = solana.MustPublicKeyFromBase58("SQDS4ep65T869zMMBKyuUq6aD6EgTu8psMjkvj52pCf")

const (
	seedPrefix           = "multisig"
	seedTransaction      = "transaction"
	seedBatchTransaction = "batch_transaction"
)

// instruction names as registered by the program
const (
	ixConfigTransactionCreate  = "config_transaction_create"
	ixConfigTransactionExecute = "config_transaction_execute"
	ixVaultTransactionCreate   = "vault_transaction_create"
	ixVaultTransactionExecute  = "vault_transaction_execute"
	ixBatchExecuteTransaction  = "batch_execute_transaction"
	ixProposalCreate           = "proposal_create"
	ixProposalActivate         = "proposal_activate"
	ixProposalApprove          = "proposal_approve"
	ixProposalReject           = "proposal_reject"
	ixProposalCancel           = "proposal_cancel"
)

// account names as registered by the program
const (
	accountProposal          = "Proposal"
	accountVaultTransaction  = "VaultTransaction"
	accountConfigTransaction = "ConfigTransaction"
	accountBatch             = "Batch"
	accountBatchTransaction  = "VaultBatchTransaction"
)

type discriminator [8]byte

func sighash(namespace, name string) discriminator {
	var d discriminator
	h := sha256.Sum256([]byte(namespace + ":" + name))
	copy(d[:], h[:8])
	return d
}

func instructionDiscriminator(name string) discriminator {
	return sighash("global", name)
}

func accountDiscriminator(name string) discriminator {
	return sighash("account", name)
}
