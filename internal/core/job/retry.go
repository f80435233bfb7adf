// Package job contains the pure retry policy for async jobs: error
// classification and the exponential backoff schedule. Decoupled from the
// job table so the policy can be unit-tested without wall-clock sleeps.
package job

import (
	"errors"
	"time"

	"github.com/example/warden/internal/models"
)

// ErrorClass partitions job failures for the retry policy.
type ErrorClass int

const (
	// Retryable failures requeue with backoff until maxAttempts.
	Retryable ErrorClass = iota
	// Fatal failures dead-letter immediately, attempts notwithstanding.
	Fatal
)

// Classify maps an execution error to its retry class. Validation and
// business-rule rejections are fatal; everything else (timeouts, transient
// network errors, unclassified failures) is retryable. Unknown errors lean
// retryable so a missed classification delays work instead of dropping it.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrExecutionFatal),
		errors.Is(err, models.ErrBranchingDeadEnd):
		return Fatal
	default:
		return Retryable
	}
}

// Backoff returns the delay before the next attempt: base * 2^attempts,
// capped at maxDelay. attempts is the count of completed attempts.
func Backoff(base time.Duration, attempts int, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// ShouldRetry reports whether a job that just failed its attempts-th attempt
// gets another one. A job reaches DEAD_LETTER at attempts == maxAttempts,
// never beyond.
func ShouldRetry(class ErrorClass, attempts, maxAttempts int) bool {
	if class == Fatal {
		return false
	}
	return attempts < maxAttempts
}

// NextAttemptAt computes the scheduled time of the next attempt.
func NextAttemptAt(now time.Time, base time.Duration, attempts int, maxDelay time.Duration) time.Time {
	return now.Add(Backoff(base, attempts, maxDelay))
}
