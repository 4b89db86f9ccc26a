package squads

import (
	"encoding/json"
	"fmt"
	"strings"
)

const programErrorOffset = 6000

type ProgramError struct {
	Code    uint32
	Name    string
	Message string
}

func (e ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

var programErrors = []struct{ name, msg string }{
	{"DuplicateMember", "found multiple members with the same pubkey"},
	{"EmptyMembers", "members array is empty"},
	{"TooManyMembers", "too many members"},
	{"InvalidThreshold", "threshold must be between 1 and the number of voting members"},
	{"Unauthorized", "attempted to perform an unauthorized action"},
	{"NotAMember", "provided key is not a member of the multisig"},
	{"InvalidTransactionMessage", "transaction message is malformed"},
	{"StaleProposal", "proposal is stale"},
	{"InvalidProposalStatus", "invalid proposal status"},
	{"InvalidTransactionIndex", "invalid transaction index"},
	{"AlreadyApproved", "member already approved the transaction"},
	{"AlreadyRejected", "member already rejected the transaction"},
	{"AlreadyCancelled", "member already cancelled the transaction"},
	{"InvalidNumberOfAccounts", "wrong number of accounts provided"},
	{"InvalidAccount", "invalid account provided"},
	{"RemoveLastMember", "cannot remove the last member"},
	{"NoVoters", "members don't include any voters"},
	{"NoProposers", "members don't include any proposers"},
	{"NoExecutors", "members don't include any executors"},
	{"InvalidStaleTransactionIndex", "stale transaction index must not exceed the transaction index"},
	{"NotSupportedForControlled", "instruction not supported for a controlled multisig"},
	{"TimeLockNotReleased", "proposal time lock has not been released"},
	{"NoActions", "config transaction must have at least one action"},
	{"MissingAccount", "missing account"},
	{"InvalidMint", "invalid mint"},
	{"InvalidDestination", "invalid destination"},
	{"SpendingLimitExceeded", "spending limit exceeded"},
	{"DecimalsMismatch", "decimals don't match the mint"},
	{"UnknownPermission", "member has unknown permission"},
	{"ProtectedAccount", "account is protected and cannot be passed into a CPI as writable"},
	{"TimeLockExceedsMaxAllowed", "time lock exceeds the maximum allowed"},
	{"IllegalAccountOwner", "account is not owned by the multisig program"},
	{"RentReclamationDisabled", "rent reclamation is disabled for this multisig"},
	{"InvalidRentCollector", "invalid rent collector address"},
	{"ProposalForAnotherMultisig", "proposal is for another multisig"},
	{"TransactionForAnotherMultisig", "transaction is for another multisig"},
	{"TransactionNotMatchingProposal", "transaction doesn't match proposal"},
	{"TransactionNotLastInBatch", "transaction is not last in batch"},
	{"BatchNotEmpty", "batch is not empty"},
}

// framework errors raised before the program logic runs
var frameworkErrors = map[uint32]ProgramError{
	2000: {2000, "ConstraintMut", "a mut constraint was violated"},
	2003: {2003, "ConstraintRaw", "a raw constraint was violated"},
	2006: {2006, "ConstraintSeeds", "a seeds constraint was violated"},
	3001: {3001, "AccountDiscriminatorNotFound", "no account discriminator was found"},
	3002: {3002, "AccountDiscriminatorMismatch", "account discriminator did not match"},
	3007: {3007, "AccountOwnedByWrongProgram", "account is owned by a different program"},
	3012: {3012, "AccountNotInitialized", "account is not initialized"},
}

// LookupError resolves a custom error code raised by the multisig program.
func LookupError(code uint32) (ProgramError, bool) {
	if code >= programErrorOffset && int(code-programErrorOffset) < len(programErrors) {
		e := programErrors[code-programErrorOffset]
		return ProgramError{Code: code, Name: e.name, Message: e.msg}, true
	}
	e, ok := frameworkErrors[code]
	return e, ok
}

// top-level transaction errors worth a friendlier message
var transactionErrors = map[string]string{
	"InsufficientFundsForFee": "insufficient funds for fee",
	"AccountNotFound":         "fee payer account not found",
	"BlockhashNotFound":       "blockhash expired",
	"AlreadyProcessed":        "transaction already processed",
}

// DescribeTransactionError turns a transaction error as reported by the RPC
// (the decoded JSON of the err field) into a readable message. The second value
// holds the program error when one was recognized.
func DescribeTransactionError(raw interface{}) (string, *ProgramError) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		if msg, ok := transactionErrors[v]; ok {
			return msg, nil
		}
		return v, nil
	case map[string]interface{}:
		if ie, ok := v["InstructionError"].([]interface{}); ok && len(ie) == 2 {
			return describeInstructionError(ie[0], ie[1])
		}
		for k := range v {
			if msg, ok := transactionErrors[k]; ok {
				return msg, nil
			}
		}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%v", raw), nil
	}
	return string(b), nil
}

func describeInstructionError(index, detail interface{}) (string, *ProgramError) {
	prefix := fmt.Sprintf("instruction %v", index)

	switch d := detail.(type) {
	case string:
		return fmt.Sprintf("%s: %s", prefix, splitCamel(d)), nil
	case map[string]interface{}:
		custom, ok := d["Custom"]
		if !ok {
			break
		}
		code, ok := toUint32(custom)
		if !ok {
			break
		}
		if pe, found := LookupError(code); found {
			return fmt.Sprintf("%s: %s", prefix, pe.Message), &pe
		}
		if code == 1 {
			return fmt.Sprintf("%s: insufficient funds", prefix), nil
		}
		return fmt.Sprintf("%s: custom program error 0x%x", prefix, code), nil
	}

	b, _ := json.Marshal(detail)
	return fmt.Sprintf("%s: %s", prefix, b), nil
}

func toUint32(v interface{}) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n > float64(^uint32(0)) {
			return 0, false
		}
		return uint32(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false
		}
		return uint32(i), true
	case int:
		return uint32(n), n >= 0
	case uint32:
		return n, true
	}
	return 0, false
}

func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
