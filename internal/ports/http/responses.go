package http

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"multisig-dashboard/internal/app"
	"multisig-dashboard/internal/model"
)

type errorResponse struct {
	Error string   `json:"error"`
	Logs  []string `json:"logs,omitempty"`
}

type walletMultisig struct {
	Wallet   string `json:"wallet"`
	Multisig string `json:"multisig"`
}

type retrievedMember struct {
	Key         string `json:"key"`
	Permissions uint8  `json:"permissions"`
}

type retrievedMultisig struct {
	Address               string            `json:"address"`
	Threshold             uint16            `json:"threshold"`
	TimeLock              uint32            `json:"timeLock"`
	TransactionIndex      uint64            `json:"transactionIndex"`
	StaleTransactionIndex uint64            `json:"staleTransactionIndex"`
	Members               []retrievedMember `json:"members"`
}

func newRetrievedMultisig(ms model.Multisig) retrievedMultisig {
	r := retrievedMultisig{
		Address:               ms.Address.String(),
		Threshold:             ms.Threshold,
		TimeLock:              ms.TimeLock,
		TransactionIndex:      ms.TransactionIndex,
		StaleTransactionIndex: ms.StaleTransactionIndex,
		Members:               make([]retrievedMember, len(ms.Members)),
	}
	for i, m := range ms.Members {
		r.Members[i] = retrievedMember{Key: m.Key.String(), Permissions: m.Permissions}
	}
	return r
}

type approvalMember struct {
	Key         string `json:"key"`
	HasApproved bool   `json:"hasApproved"`
	HasRejected bool   `json:"hasRejected"`
	IsConnected bool   `json:"isConnected"`
	// Balance is a lamport amount, absent when unknown.
	Balance    *string `json:"balance,omitempty"`
	CanPayFees bool    `json:"canPayFees"`
}

type approvalView struct {
	Multisig       string           `json:"multisig"`
	Index          uint64           `json:"index"`
	State          string           `json:"state"`
	Threshold      uint16           `json:"threshold"`
	TotalApprovals int              `json:"totalApprovals"`
	TotalRejects   int              `json:"totalRejects"`
	IsComplete     bool             `json:"isComplete"`
	Members        []approvalMember `json:"members"`
}

func newApprovalView(v model.ApprovalView) approvalView {
	r := approvalView{
		Multisig:       v.Multisig.String(),
		Index:          v.Index,
		State:          v.State.String(),
		Threshold:      v.Threshold,
		TotalApprovals: v.TotalApprovals,
		TotalRejects:   v.TotalRejects,
		IsComplete:     v.IsComplete,
		Members:        make([]approvalMember, len(v.Members)),
	}
	for i, m := range v.Members {
		r.Members[i] = approvalMember{
			Key:         m.Key.String(),
			HasApproved: m.HasApproved,
			HasRejected: m.HasRejected,
			IsConnected: m.IsConnected,
			CanPayFees:  m.CanPayFees,
		}
		if m.Balance != nil {
			balance := strconv.FormatUint(*m.Balance, 10)
			r.Members[i].Balance = &balance
		}
	}
	return r
}

type tokenHolding struct {
	Mint     string  `json:"mint"`
	Account  string  `json:"account"`
	Amount   string  `json:"amount"`
	USDValue *string `json:"usdValue,omitempty"`
}

type vaultHolding struct {
	Index    uint8          `json:"index"`
	Address  string         `json:"address"`
	SOL      string         `json:"sol"`
	USDValue *string        `json:"usdValue,omitempty"`
	Tokens   []tokenHolding `json:"tokens"`
	Error    string         `json:"error,omitempty"`
}

type portfolio struct {
	Multisig string         `json:"multisig"`
	Vaults   []vaultHolding `json:"vaults"`
	TotalSOL string         `json:"totalSol"`
	TotalUSD *string        `json:"totalUsd,omitempty"`
	Failed   []int          `json:"failedVaults,omitempty"`
}

func newPortfolio(p model.Portfolio) portfolio {
	r := portfolio{
		Multisig: p.Multisig.String(),
		Vaults:   make([]vaultHolding, 0, len(p.Vaults)),
	}
	for _, index := range p.FailedVaults() {
		r.Failed = append(r.Failed, int(index))
	}
	total := model.VaultBalance{Lamports: p.TotalLamports()}
	r.TotalSOL = total.SOL().String()
	if p.Valued {
		usd := p.TotalUSD().StringFixed(2)
		r.TotalUSD = &usd
	}

	for _, v := range p.Vaults {
		if v.IsEmpty() && v.Err == nil {
			continue
		}
		holding := vaultHolding{
			Index:   v.Index,
			Address: v.Address.String(),
			SOL:     v.SOL().String(),
			Tokens:  make([]tokenHolding, len(v.Tokens)),
		}
		if v.Err != nil {
			holding.Error = v.Err.Error()
		}
		if p.Valued {
			usd := v.USDValue().StringFixed(2)
			holding.USDValue = &usd
		}
		for i, t := range v.Tokens {
			holding.Tokens[i] = tokenHolding{
				Mint:    t.Mint.String(),
				Account: t.Account.String(),
				Amount:  t.UIAmount().String(),
			}
			if t.USDValue != nil {
				usd := t.USDValue.StringFixed(2)
				holding.Tokens[i].USDValue = &usd
			}
		}
		r.Vaults = append(r.Vaults, holding)
	}
	return r
}

type preparedTransaction struct {
	Action      string   `json:"action"`
	Multisig    string   `json:"multisig"`
	Index       uint64   `json:"index"`
	Steps       []string `json:"steps"`
	Transaction string   `json:"transaction"`
}

func newPreparedTransaction(p app.Prepared) preparedTransaction {
	return preparedTransaction{
		Action:      string(p.Action),
		Multisig:    p.Multisig.String(),
		Index:       p.Index,
		Steps:       p.Steps,
		Transaction: p.Transaction,
	}
}

func keyStrings(keys []solana.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
