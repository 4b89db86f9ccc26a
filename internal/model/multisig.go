package model

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/multierr"
)

const (
	PermissionPropose uint8 = 1 << 0
	PermissionVote    uint8 = 1 << 1
	PermissionExecute uint8 = 1 << 2
	PermissionFull          = PermissionPropose | PermissionVote | PermissionExecute
)

type Member struct {
	Key         solana.PublicKey
	Permissions uint8
}

type Multisig struct {
	Address               solana.PublicKey
	Threshold             uint16
	TimeLock              uint32
	TransactionIndex      uint64
	StaleTransactionIndex uint64
	Members               []Member
}

func (m Multisig) IsMember(key solana.PublicKey) bool {
	_, ok := m.Member(key)
	return ok
}

func (m Multisig) Member(key solana.PublicKey) (Member, bool) {
	for _, member := range m.Members {
		if member.Key.Equals(key) {
			return member, true
		}
	}
	return Member{}, false
}

// NextTransactionIndex is the index a new proposal will be created at.
func (m Multisig) NextTransactionIndex() uint64 {
	return m.TransactionIndex + 1
}

func (m Multisig) Validate() error {
	return ValidateMembership(m.Members, m.Threshold)
}

// ValidateMembership checks the member list and threshold a multisig can be created or left with.
func ValidateMembership(members []Member, threshold uint16) error {
	var err error

	if len(members) == 0 {
		err = multierr.Append(err, errors.New("at least one member is required"))
	}

	seen := make(map[solana.PublicKey]bool, len(members))
	voters := 0
	for _, m := range members {
		if seen[m.Key] {
			err = multierr.Append(err, fmt.Errorf("duplicate member %s", m.Key))
		}
		seen[m.Key] = true

		if m.Permissions > PermissionFull {
			err = multierr.Append(err, fmt.Errorf("member %s: unknown permission bits %d", m.Key, m.Permissions))
		}
		if m.Permissions&PermissionVote != 0 {
			voters++
		}
	}

	if threshold == 0 {
		err = multierr.Append(err, errors.New("threshold must be at least 1"))
	} else if int(threshold) > voters {
		err = multierr.Append(err, fmt.Errorf("threshold %d exceeds the number of voting members %d", threshold, voters))
	}

	return err
}

// FullMember grants all permissions, as every member added from this dashboard gets.
func FullMember(key solana.PublicKey) Member {
	return Member{Key: key, Permissions: PermissionFull}
}
