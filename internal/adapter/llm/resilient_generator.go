package llm

import (
	"context"
	"errors"
	"time"

	"quiz-deck/internal/domain"
	"quiz-deck/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Policy bounds a single logical generation call.
type Policy struct {
	// Timeout bounds one attempt.
	Timeout time.Duration
	// TotalTimeout bounds the whole call including admission wait, attempts and backoff. Zero disables it.
	TotalTimeout time.Duration
	// Retries is the number of extra attempts after the first transient failure.
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxConcurrent caps in-flight calls across all callers.
	MaxConcurrent int64
}

// ResilientGenerator adds timeout, retry and admission control to a backend.
type ResilientGenerator struct {
	next   domain.TextGenerator
	policy Policy
	sem    *semaphore.Weighted
}

var _ domain.TextGenerator = (*ResilientGenerator)(nil)

// NewResilientGenerator creates a new ResilientGenerator.
func NewResilientGenerator(next domain.TextGenerator, policy Policy) *ResilientGenerator {
	if policy.MaxConcurrent <= 0 {
		policy.MaxConcurrent = 1
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	return &ResilientGenerator{
		next:   next,
		policy: policy,
		sem:    semaphore.NewWeighted(policy.MaxConcurrent),
	}
}

// Generate returns the backend's raw reply unmodified.
//
// Failures are classified as:
//   - GENERATION_REJECTED: the backend answered 4xx. Never retried.
//   - GENERATION_UNAVAILABLE: every attempt failed transiently (5xx, network, attempt timeout).
//   - GENERATION_TIMEOUT: the total deadline passed or the caller gave up.
func (g *ResilientGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.policy.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.policy.TotalTimeout)
		defer cancel()
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		logger.Get().Warn("Generation call not admitted before deadline", zap.Error(err))
		return "", domain.NewGenerationTimeoutError(err)
	}
	defer g.sem.Release(1)

	var (
		reply    string
		attempts int
		lastErr  error
	)
	operation := func() error {
		attempts++
		out, err := g.attempt(ctx, prompt)
		if err == nil {
			reply = out
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if isClientError(err) {
			return backoff.Permanent(domain.NewGenerationRejectedError(err).WithContext("status", statusCode(err)))
		}
		logger.Get().Warn("Transient generation failure",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", g.policy.Retries+1),
			zap.Error(err),
		)
		return err
	}

	err := backoff.Retry(operation, g.backoffPolicy(ctx))
	switch {
	case err == nil:
		return reply, nil
	case domain.HasCode(err, domain.CodeGenerationRejected):
		logger.Get().Error("Generation request rejected", zap.Error(err))
		return "", err
	case ctx.Err() != nil:
		logger.Get().Error("Generation timed out", zap.Int("attempts", attempts), zap.Error(ctx.Err()))
		return "", domain.NewGenerationTimeoutError(errors.Join(ctx.Err(), lastErr))
	default:
		logger.Get().Error("Generation retries exhausted", zap.Int("attempts", attempts), zap.Error(lastErr))
		return "", domain.NewGenerationUnavailableError(attempts, lastErr)
	}
}

func (g *ResilientGenerator) attempt(ctx context.Context, prompt string) (string, error) {
	if g.policy.Timeout <= 0 {
		return g.next.Generate(ctx, prompt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
	defer cancel()
	return g.next.Generate(attemptCtx, prompt)
}

func (g *ResilientGenerator) backoffPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if g.policy.InitialBackoff > 0 {
		b.InitialInterval = g.policy.InitialBackoff
	}
	if g.policy.MaxBackoff > 0 {
		b.MaxInterval = g.policy.MaxBackoff
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.policy.Retries)), ctx)
}
