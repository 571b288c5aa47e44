// Package retry wraps every remote call with the same attempt, backoff and
// throttling behavior, regardless of which external system is on the other
// end.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"

	"jerseysync/internal/metrics"
)

// DefaultRetryStatusCodes are the HTTP statuses worth another attempt.
var DefaultRetryStatusCodes = []int{429, 500, 502, 503, 504}

// Config carries the tunable knobs for a Policy.
type Config struct {
	MaxRetries            int           `yaml:"max_retries"`
	BaseDelay             time.Duration `yaml:"base_delay"`
	MaxDelay              time.Duration `yaml:"max_delay"`
	APICallDelay          time.Duration `yaml:"api_call_delay"`
	UseExponentialBackoff *bool         `yaml:"use_exponential_backoff"`
	RetryStatusCodes      []int         `yaml:"retry_status_codes"`
}

// Policy retries transient remote failures with exponential backoff and
// enforces a minimum spacing between calls. The spacing floor is owned by
// the instance, so one Policy shared across the sheets and mail adapters
// throttles the whole remote surface uniformly, and independent test
// instances never interfere.
type Policy struct {
	maxRetries  int
	baseDelay   time.Duration
	maxDelay    time.Duration
	exponential bool
	statusCodes map[int]bool

	limiter *rate.Limiter
	logger  *zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand

	sleep func(context.Context, time.Duration) error
}

// NewPolicy builds a Policy from config, filling defaults for zero values.
func NewPolicy(cfg Config, logger *zerolog.Logger) *Policy {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Minute
	}
	if cfg.APICallDelay < 0 {
		cfg.APICallDelay = 0
	}
	exponential := true
	if cfg.UseExponentialBackoff != nil {
		exponential = *cfg.UseExponentialBackoff
	}
	codes := cfg.RetryStatusCodes
	if len(codes) == 0 {
		codes = DefaultRetryStatusCodes
	}
	codeSet := make(map[int]bool, len(codes))
	for _, c := range codes {
		codeSet[c] = true
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.APICallDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.APICallDelay), 1)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Policy{
		maxRetries:  cfg.MaxRetries,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		exponential: exponential,
		statusCodes: codeSet,
		limiter:     limiter,
		logger:      logger,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepCtx,
	}
}

// MaxRetries returns the configured retry count (attempts are MaxRetries+1).
func (p *Policy) MaxRetries() int { return p.maxRetries }

// Do runs fn until it succeeds, the error is not retryable, or attempts
// are exhausted. The terminal error is returned unmodified, except that
// exhaustion on a 429 yields ErrRateLimitExceeded wrapping the cause.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		metrics.IncRemoteCall(op)
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				p.logger.Info().Str("op", op).Int("attempt", attempt+1).Msg("remote call succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= p.maxRetries || !p.ShouldRetry(err) {
			break
		}

		delay := p.Delay(attempt)
		p.logger.Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Int("max_attempts", p.maxRetries+1).
			Dur("delay", delay).
			Err(err).
			Msg("remote call failed, retrying")
		metrics.IncRetry(op)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	if StatusCode(lastErr) == 429 {
		return &RateLimitError{Attempts: p.maxRetries + 1, Err: lastErr}
	}
	return lastErr
}

// ShouldRetry classifies an error as worth another attempt: either it
// carries a retryable HTTP status or it looks like a transient network
// failure.
func (p *Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return p.statusCodes[code]
	}
	return isTransient(err)
}

// Delay computes the backoff for a zero-based attempt, with 10% jitter on
// top of the exponential curve.
func (p *Policy) Delay(attempt int) time.Duration {
	if !p.exponential {
		return p.baseDelay
	}
	d := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	d = math.Min(d, float64(p.maxDelay))

	p.mu.Lock()
	jitter := p.rnd.Float64() * 0.1 * d
	p.mu.Unlock()

	return time.Duration(d + jitter)
}

// StatusCode extracts an HTTP-like status from an error chain, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return 0
}

func isTransient(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
