package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Keypair signs with a key held in memory, as loaded from a solana-keygen file.
type Keypair struct {
	key solana.PrivateKey
}

func NewKeypair(key solana.PrivateKey) *Keypair {
	return &Keypair{key: key}
}

func LoadKeypair(path string) (*Keypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.New("failed to load the keypair: " + err.Error())
	}
	return NewKeypair(key), nil
}

// GenerateKey creates a throwaway key, used as the create key of a new multisig.
func GenerateKey() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, errors.New("failed to generate the key: " + err.Error())
	}
	return key, nil
}

func (k *Keypair) PublicKey() (solana.PublicKey, bool) {
	if k == nil || len(k.key) == 0 {
		return solana.PublicKey{}, false
	}
	return k.key.PublicKey(), true
}

func (k *Keypair) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := k.PublicKey(); !ok {
		return ErrRejected
	}
	return PartialSign(tx, k.key)
}

// PartialSign fills the signature slots of keys, leaving the others untouched.
func PartialSign(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	_, err := tx.PartialSign(func(pub solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pub) {
				return &keys[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
