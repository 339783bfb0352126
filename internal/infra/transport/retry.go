package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/jobpoll/internal/core/domain"
)

// RetryConfig defines retry behavior for idempotent transport calls.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle a transport error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFatal
)

// ClassifyError determines the action for a given transport error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	var te *Error
	if !errors.As(err, &te) {
		return ActionRetry
	}
	switch te.Code {
	case domain.CodeConnectionError, domain.CodeIOError:
		return ActionRetry
	case domain.CodeHTTPError:
		// Server side and throttling problems are worth another try.
		if te.Status >= 500 || te.Status == 429 {
			return ActionRetry
		}
		return ActionFatal
	default:
		return ActionFatal
	}
}

// CallWithRetry executes fn with exponential backoff.
func CallWithRetry(
	ctx context.Context,
	config RetryConfig,
	fn func(ctx context.Context) (string, error),
) (string, error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		body, err := fn(ctx)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if ClassifyError(err) == ActionFatal {
			return "", err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, config)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	multiple := config.BackoffMultiple
	if multiple <= 0 {
		multiple = 1
	}
	delay := float64(config.InitialDelay) * math.Pow(multiple, float64(attempt))
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
