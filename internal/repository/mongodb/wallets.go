package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"multisig-dashboard/internal/model"
)

const (
	walletsCollection = "wallets"
)

// storedWallet maps a wallet to the multisig the dashboard opens for it.
type storedWallet struct {
	Wallet    string    `bson:"_id" json:"wallet"`
	Multisig  string    `bson:"multisig" json:"multisig"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// GetWalletMultisig returns model.ErrNotFound when nothing is stored for wallet.
func (b Repository) GetWalletMultisig(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, error) {
	filter := bson.M{
		"_id": wallet.String(),
	}

	var stored storedWallet
	err := b.collection(walletsCollection).FindOne(ctx, filter).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return solana.PublicKey{}, model.ErrNotFound
	}
	if err != nil {
		return solana.PublicKey{}, errors.New("failed to find the wallet multisig: " + err.Error())
	}

	multisig, err := solana.PublicKeyFromBase58(stored.Multisig)
	if err != nil {
		b.logger.Error("invalid multisig stored", zap.String("wallet", stored.Wallet), zap.String("multisig", stored.Multisig))
		return solana.PublicKey{}, errors.New("invalid multisig stored for the wallet: " + err.Error())
	}
	return multisig, nil
}

// SetWalletMultisig replaces the multisig stored for wallet.
func (b Repository) SetWalletMultisig(ctx context.Context, wallet, multisig solana.PublicKey) error {
	stored := storedWallet{
		Wallet:    wallet.String(),
		Multisig:  multisig.String(),
		UpdatedAt: time.Now().UTC(),
	}

	filter := bson.M{
		"_id": stored.Wallet,
	}
	result, err := b.collection(walletsCollection).ReplaceOne(ctx, filter, stored, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.New("failed to store the wallet multisig: " + err.Error())
	}

	if result.UpsertedCount == 0 && result.ModifiedCount == 0 {
		b.logger.Debug("wallet multisig unchanged", zap.String("wallet", stored.Wallet))
	}
	return nil
}
