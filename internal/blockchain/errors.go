package blockchain

import (
	"errors"
	"fmt"
	"strings"

	"multisig-dashboard/internal/blockchain/squads"
)

var (
	ErrReadNotFound        = errors.New("account not found")
	ErrSimulationFailed    = errors.New("simulation failed")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
)

// SimulationError carries the decoded reason a transaction would fail.
type SimulationError struct {
	Message string
	// Program is set when the failure is a known multisig program error.
	Program *squads.ProgramError
	Logs    []string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSimulationFailed, e.Message)
}

func (e *SimulationError) Unwrap() error {
	return ErrSimulationFailed
}

// LogTail returns the last n program log lines.
func (e *SimulationError) LogTail(n int) string {
	logs := e.Logs
	if len(logs) > n {
		logs = logs[len(logs)-n:]
	}
	return strings.Join(logs, "\n")
}

// SubmissionError wraps the network or wallet error verbatim.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSubmissionFailed, e.Err)
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}
