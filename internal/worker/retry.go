package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rehostd/rehostd/internal/media"
	"github.com/rehostd/rehostd/internal/storage"
)

// Classify maps an execution error to an outcome class. The mapping is total:
// anything not recognized is treated as recoverable and left to the attempt
// limit, so a novel failure mode degrades to bounded retries rather than an
// immediate terminal failure.
func Classify(stage Stage, err error) OutcomeClass {
	if err == nil {
		return OutcomeSuccess
	}

	// Permanent properties of the source can never be fixed by retrying.
	if errors.Is(err, media.ErrInvalidSource) ||
		errors.Is(err, media.ErrUnsupportedSource) ||
		errors.Is(err, media.ErrTooLarge) {
		return OutcomeNonRecoverable
	}

	// Storage-side auth and quota conditions are operational: credentials get
	// rotated and quota gets raised, so a later attempt may succeed.
	if errors.Is(err, storage.ErrUnauthorized) || errors.Is(err, storage.ErrQuotaExceeded) {
		return OutcomeRecoverable
	}

	// Stage deadline hit, or a network-level timeout underneath it.
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeRecoverable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeRecoverable
	}

	return OutcomeRecoverable
}

// Action is the durable transition the loop must apply after an attempt.
type Action string

// Possible transition actions.
const (
	ActionComplete Action = "complete"
	ActionRequeue  Action = "requeue"
	ActionFail     Action = "fail"
)

// Transition is the retry policy's decision for one finished attempt.
type Transition struct {
	Action      Action
	Delay       time.Duration
	ErrorDetail string
}

// RetryPolicy bounds retries and spaces them out exponentially.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Backoff returns the delay before the next attempt is eligible, doubling
// with each completed attempt: base, 2*base, 4*base, ...
func (p RetryPolicy) Backoff(attemptCount int) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}
	shift := uint(attemptCount - 1)
	if shift > 32 {
		shift = 32
	}
	return p.BaseDelay << shift
}

// Decide turns an attempt outcome into the transition to persist.
// attemptCount is the count including the attempt that just finished.
func (p RetryPolicy) Decide(outcome Outcome, attemptCount int) Transition {
	switch outcome.Class {
	case OutcomeSuccess:
		return Transition{Action: ActionComplete}
	case OutcomeNonRecoverable:
		return Transition{Action: ActionFail, ErrorDetail: detail(outcome)}
	default:
		if attemptCount >= p.MaxAttempts {
			return Transition{
				Action:      ActionFail,
				ErrorDetail: fmt.Sprintf("retries exhausted after %d attempts: %s", attemptCount, detail(outcome)),
			}
		}
		return Transition{
			Action:      ActionRequeue,
			Delay:       p.Backoff(attemptCount),
			ErrorDetail: detail(outcome),
		}
	}
}

func detail(outcome Outcome) string {
	if outcome.Err == nil {
		return ""
	}
	if outcome.Stage != "" {
		return fmt.Sprintf("%s: %s", outcome.Stage, outcome.Err.Error())
	}
	return outcome.Err.Error()
}
