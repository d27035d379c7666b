package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds how often an outbound call is attempted. Attempts is
// the total number of tries including the first; Delay is the fixed pause
// between them.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// retryable classifies an outbound failure. Telegram reports logical
// failures (bad chat id, message not found, ...) as 4xx API errors; those
// are permanent. Everything else, including network errors, 429 and 5xx,
// is worth retrying.
func retryable(err error) bool {
	var tgErr *gotgbot.TelegramError
	if errors.As(err, &tgErr) {
		if tgErr.Code == 429 {
			return true
		}
		return tgErr.Code < 400 || tgErr.Code >= 500
	}
	return true
}

// executeWithRetry runs one remote call under the policy. Each attempt is a
// fresh invocation of call, so file uploads can reopen their payload stream.
// The returned error is the last attempt's error, wrapped with the operation
// name and attempt count; executeWithRetry never panics.
func executeWithRetry[T any](ctx context.Context, log zerolog.Logger, policy RetryPolicy, op string, call func() (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := call()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Err(err).
			Msg("outbound call failed")

		if attempt == attempts {
			break
		}
		select {
		case <-time.After(policy.Delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return zero, fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, attempts, lastErr)
}
