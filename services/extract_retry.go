package services

import (
	"context"
	"fmt"
	"time"

	"bestsellers-etl/utils"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 5 * time.Second

	// MaxRetryInterval caps a single wait however many attempts are allowed.
	MaxRetryInterval = time.Hour
)

// RetryPolicy bounds the attempts made for one date. The delay before
// attempt n (n >= 2) is InitialDelay * 2^(n-2).
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy returns 3 attempts spaced 5s and 10s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, InitialDelay: DefaultInitialDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = p.maxInterval()
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// maxInterval is the wait before the last attempt, capped at MaxRetryInterval.
func (p RetryPolicy) maxInterval() time.Duration {
	interval := p.InitialDelay
	if interval >= MaxRetryInterval {
		return interval
	}
	for n := 2; n < p.MaxAttempts; n++ {
		if interval >= MaxRetryInterval/2 {
			return MaxRetryInterval
		}
		interval *= 2
	}
	return interval
}

// RetryingExtractor retries a wrapped Extractor with exponential backoff.
type RetryingExtractor struct {
	next   Extractor
	policy RetryPolicy
	logger *zap.Logger

	// timer is nil outside tests; backoff then uses a real timer.
	timer backoff.Timer
}

// NewRetryingExtractor wraps next with policy.
func NewRetryingExtractor(next Extractor, policy RetryPolicy, logger *zap.Logger) *RetryingExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingExtractor{next: next, policy: policy.normalized(), logger: logger}
}

// Extract returns the first response carrying results data, or an error
// wrapping ErrNoData once every attempt has failed.
func (r *RetryingExtractor) Extract(ctx context.Context, date time.Time) (*RawResponse, error) {
	day := utils.FormatDate(date)
	attempt := 0

	var raw *RawResponse
	operation := func() error {
		attempt++
		r.logger.Info("extraction attempt",
			zap.String("published_date", day),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts))

		resp, err := r.next.Extract(ctx, date)
		if err != nil {
			return err
		}
		if resp == nil || resp.Results.Empty() {
			return fmt.Errorf("%w: no results in api response", ErrValidation)
		}
		raw = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("extraction attempt failed, retrying",
			zap.String("published_date", day),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotifyWithTimer(operation, r.policy.backOff(ctx), notify, r.timer); err != nil {
		r.logger.Error("all extraction attempts failed",
			zap.String("published_date", day),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return nil, fmt.Errorf("%w for %s after %d attempts: %w", ErrNoData, day, attempt, err)
	}
	return raw, nil
}
