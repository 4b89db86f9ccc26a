package model

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const nativeDecimals = 9

type TokenBalance struct {
	Mint     solana.PublicKey
	Account  solana.PublicKey
	Amount   uint64
	Decimals uint8

	// USDValue stays nil when no price is known.
	USDValue *decimal.Decimal
}

func (t TokenBalance) UIAmount() decimal.Decimal {
	return decimal.NewFromBigInt(newBigUint(t.Amount), -int32(t.Decimals))
}

type VaultBalance struct {
	Index   uint8
	Address solana.PublicKey

	Lamports uint64
	Tokens   []TokenBalance

	NativeUSDValue *decimal.Decimal

	// Err records a failed read; the vault is then reported empty.
	Err error
}

func (v VaultBalance) SOL() decimal.Decimal {
	return decimal.NewFromBigInt(newBigUint(v.Lamports), -nativeDecimals)
}

func (v VaultBalance) IsEmpty() bool {
	return v.Lamports == 0 && len(v.Tokens) == 0
}

// USDValue sums the known valuations of the vault.
func (v VaultBalance) USDValue() decimal.Decimal {
	total := decimal.Zero
	if v.NativeUSDValue != nil {
		total = total.Add(*v.NativeUSDValue)
	}
	for _, t := range v.Tokens {
		if t.USDValue != nil {
			total = total.Add(*t.USDValue)
		}
	}
	return total
}

type Portfolio struct {
	Multisig solana.PublicKey
	Vaults   []VaultBalance

	// Valued is false when the price enrichment failed or timed out.
	Valued bool
}

func (p Portfolio) TotalLamports() uint64 {
	var total uint64
	for _, v := range p.Vaults {
		total += v.Lamports
	}
	return total
}

func (p Portfolio) TotalUSD() decimal.Decimal {
	total := decimal.Zero
	for _, v := range p.Vaults {
		total = total.Add(v.USDValue())
	}
	return total
}

// FailedVaults lists the indices whose reads failed.
func (p Portfolio) FailedVaults() []uint8 {
	var failed []uint8
	for _, v := range p.Vaults {
		if v.Err != nil {
			failed = append(failed, v.Index)
		}
	}
	return failed
}

func newBigUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
