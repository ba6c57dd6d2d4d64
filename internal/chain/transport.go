package chain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"archon/internal/metrics"
)

// ErrRateLimited is returned once every retry of a throttled request failed.
var ErrRateLimited = errors.New("rpc rate limited")

// retryTransport throttles outgoing RPC calls and retries throttled ones
// with exponential backoff plus jitter.
type retryTransport struct {
	base       http.RoundTripper
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	jitter     func() float64
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &retryTransport{
		base:       base,
		limiter:    limiter,
		maxRetries: max(cfg.MaxRetries, 1),
		baseDelay:  time.Second,
		jitter:     rand.Float64,
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// backoff is 2^attempt base delays plus up to one base delay of jitter.
func (t *retryTransport) backoff(attempt int) time.Duration {
	d := float64(t.baseDelay) * (math.Pow(2, float64(attempt)) + t.jitter())
	return time.Duration(d)
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to buffer rpc request: %w", err)
		}
		body = b
	}

	ctx := req.Context()
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		r := req.Clone(ctx)
		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}

		resp, err := t.base.RoundTrip(r)
		if err != nil {
			metrics.RPCRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.RPCRequests.WithLabelValues(strconv.Itoa(resp.StatusCode/100) + "xx").Inc()
		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		delay := t.backoff(attempt)
		metrics.RPCRetries.Inc()
		log.Warn().
			Int("status", resp.StatusCode).
			Dur("delay", delay).
			Int("attempt", attempt+1).
			Int("max", t.maxRetries).
			Msg("⚠️ rpc throttled, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, t.maxRetries)
}
