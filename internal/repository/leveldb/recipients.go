package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	recipientsPrefix = "recipients:"
	// MaxRecipients is how many recipients are remembered per wallet.
	MaxRecipients = 10
)

// RecipientStore keeps, per wallet, the recipients it last proposed transfers to,
// most recent first.
type RecipientStore struct {
	mu sync.Mutex
	db *leveldb.DB
}

func NewRecipientStore(path string) (*RecipientStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipients storage: %w", err)
	}
	return &RecipientStore{db: db}, nil
}

func (s *RecipientStore) Close() error {
	return s.db.Close()
}

func recipientsKey(wallet solana.PublicKey) []byte {
	return []byte(recipientsPrefix + wallet.String())
}

func (s *RecipientStore) load(wallet solana.PublicKey) ([]string, error) {
	bz, err := s.db.Get(recipientsKey(wallet), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recipients: %w", err)
	}

	var recipients []string
	if err := json.Unmarshal(bz, &recipients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
	}
	return recipients, nil
}

// AddRecipient moves recipient to the front of the wallet's list.
func (s *RecipientStore) AddRecipient(wallet, recipient solana.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients, err := s.load(wallet)
	if err != nil {
		return err
	}

	updated := []string{recipient.String()}
	for _, r := range recipients {
		if r != recipient.String() && len(updated) < MaxRecipients {
			updated = append(updated, r)
		}
	}

	bz, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}
	if err := s.db.Put(recipientsKey(wallet), bz, nil); err != nil {
		return fmt.Errorf("failed to put recipients: %w", err)
	}
	return nil
}

func (s *RecipientStore) Recipients(wallet solana.PublicKey) ([]solana.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipients, err := s.load(wallet)
	if err != nil {
		return nil, err
	}

	keys := make([]solana.PublicKey, 0, len(recipients))
	for _, r := range recipients {
		key, err := solana.PublicKeyFromBase58(r)
		if err != nil {
			return nil, fmt.Errorf("invalid stored recipient %q: %w", r, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
