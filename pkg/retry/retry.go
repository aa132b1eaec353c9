// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides a bounded-retry combinator with pluggable error
// classification.
//
// Every pipeline stage that talks to an unreliable provider (text
// generation, routing, geocoding) retries through this package instead of
// carrying its own loop counters. A Classifier decides per error whether
// another attempt is worth spending; the combinator owns attempt counting,
// exponential backoff, and context cancellation.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Decision is a Classifier verdict for a failed attempt.
type Decision int

const (
	// Fail stops retrying and returns the error unchanged.
	Fail Decision = iota

	// Retry spends another attempt if the budget allows.
	Retry
)

// Classifier inspects an attempt's error and decides whether to retry.
type Classifier func(err error) Decision

// Always treats every error as retryable.
func Always(error) Decision { return Retry }

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of operation invocations (not just
	// retries). Values < 1 default to 3.
	MaxAttempts int

	// InitialDelay is the sleep before the second attempt; each subsequent
	// delay doubles. Zero disables backoff entirely, which is what
	// format-repair loops (LLM output retries) want.
	InitialDelay time.Duration

	// MaxDelay caps the doubled delay. Zero means uncapped.
	MaxDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	return c
}

// Operation is one attempt of the retried work. attempt is 1-based so the
// operation can adjust its behavior on later attempts (stricter prompts,
// wider search radii).
type Operation func(ctx context.Context, attempt int) error

// Do runs op up to cfg.MaxAttempts times.
//
// A nil error ends the loop immediately. A non-nil error is classified:
// Fail returns it unchanged; Retry sleeps the current backoff delay (unless
// it is the final attempt) and tries again. Context cancellation during
// backoff returns ctx.Err(). Exhausting the budget wraps the last error so
// callers can still unwrap the underlying cause.
func Do(ctx context.Context, cfg Config, classify Classifier, op Operation) error {
	cfg = cfg.withDefaults()
	if classify == nil {
		classify = Always
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 && delay > 0 {
			slog.Debug("Retrying operation",
				"attempt", attempt,
				"delay", delay,
				"lastError", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fail {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoValue is Do for operations that produce a value. The zero value of T is
// returned alongside any error.
func DoValue[T any](
	ctx context.Context,
	cfg Config,
	classify Classifier,
	op func(ctx context.Context, attempt int) (T, error),
) (T, error) {
	var result T
	err := Do(ctx, cfg, classify, func(ctx context.Context, attempt int) error {
		value, opErr := op(ctx, attempt)
		if opErr != nil {
			return opErr
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
