package squads

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"multisig-dashboard/internal/model"
)

type configActionKind uint8

// variant order of the program's ConfigAction enum
const (
	configAddMember configActionKind = iota
	configRemoveMember
	configChangeThreshold
	configSetTimeLock
)

// ConfigAction is one change to the multisig settings carried by a config transaction.
type ConfigAction struct {
	kind      configActionKind
	member    model.Member
	threshold uint16
	timeLock  uint32
}

func AddMember(m model.Member) ConfigAction {
	return ConfigAction{kind: configAddMember, member: m}
}

func RemoveMember(key solana.PublicKey) ConfigAction {
	return ConfigAction{kind: configRemoveMember, member: model.Member{Key: key}}
}

func ChangeThreshold(threshold uint16) ConfigAction {
	return ConfigAction{kind: configChangeThreshold, threshold: threshold}
}

func SetTimeLock(seconds uint32) ConfigAction {
	return ConfigAction{kind: configSetTimeLock, timeLock: seconds}
}

func (a ConfigAction) String() string {
	switch a.kind {
	case configAddMember:
		return fmt.Sprintf("add member %s", a.member.Key)
	case configRemoveMember:
		return fmt.Sprintf("remove member %s", a.member.Key)
	case configChangeThreshold:
		return fmt.Sprintf("change threshold to %d", a.threshold)
	case configSetTimeLock:
		return fmt.Sprintf("set time lock to %ds", a.timeLock)
	}
	return "unknown config action"
}

func (a ConfigAction) validate() error {
	switch a.kind {
	case configAddMember:
		if a.member.Key.IsZero() {
			return fmt.Errorf("%w: add member without key", ErrInvalidParams)
		}
		if a.member.Permissions == 0 || a.member.Permissions > model.PermissionFull {
			return fmt.Errorf("%w: permissions %d", ErrInvalidParams, a.member.Permissions)
		}
	case configRemoveMember:
		if a.member.Key.IsZero() {
			return fmt.Errorf("%w: remove member without key", ErrInvalidParams)
		}
	case configChangeThreshold:
		if a.threshold == 0 {
			return fmt.Errorf("%w: threshold must be at least 1", ErrInvalidParams)
		}
	case configSetTimeLock:
	default:
		return fmt.Errorf("%w: unknown config action %d", ErrInvalidParams, a.kind)
	}
	return nil
}

func (a ConfigAction) encode(w *argsWriter) {
	w.u8(uint8(a.kind))
	switch a.kind {
	case configAddMember:
		w.key(a.member.Key)
		w.u8(a.member.Permissions)
	case configRemoveMember:
		w.key(a.member.Key)
	case configChangeThreshold:
		w.u16(a.threshold)
	case configSetTimeLock:
		w.u32(a.timeLock)
	}
}

// Apply returns the membership and threshold left after the action runs.
// Removing a key that is not a member fails.
func (a ConfigAction) Apply(members []model.Member, threshold uint16) ([]model.Member, uint16, error) {
	switch a.kind {
	case configAddMember:
		return append(append([]model.Member(nil), members...), a.member), threshold, nil
	case configRemoveMember:
		kept := make([]model.Member, 0, len(members))
		for _, m := range members {
			if !m.Key.Equals(a.member.Key) {
				kept = append(kept, m)
			}
		}
		if len(kept) == len(members) {
			return members, threshold, fmt.Errorf("%w: %s is not a member", ErrInvalidParams, a.member.Key)
		}
		return kept, threshold, nil
	case configChangeThreshold:
		return members, a.threshold, nil
	}
	return members, threshold, nil
}
