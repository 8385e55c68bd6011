package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrTransient      = errors.New("transient ledger error")
	ErrMalformedReply = errors.New("malformed ledger reply")
	ErrNotAvailable   = errors.New("record not yet available")
	ErrAlreadyVoted   = errors.New("already voted on this dispute")
	ErrSuperseded     = errors.New("reconciliation pass superseded")

	// ErrStateViolation coincide con todo *StateViolation vía errors.Is.
	ErrStateViolation = errors.New("state violation")
)

// StateViolation rechaza una operación que el estado actual del mercado no
// permite. Reason se muestra al usuario tal cual.
type StateViolation struct {
	Op     string
	Reason string
}

func (e *StateViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *StateViolation) Is(target error) bool {
	return target == ErrStateViolation
}

func violation(op, format string, args ...any) error {
	return &StateViolation{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsRetryable indica si err es un fallo transitorio que merece otro intento
// (rate limit, red o timeout por llamada). La cancelación del ctx del
// caller nunca se reintenta.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
