// Package catalog is the gateway to the external movie catalog
// (TMDb-compatible). Every call either yields a Response or a *Failure;
// nothing is retried here.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"movierec/internal/metrics"
	"movierec/pkg/logger"
)

// Fetcher is implemented by Client and CachedClient.
type Fetcher interface {
	Fetch(ctx context.Context, op Op, params url.Values) (*Response, error)
}

type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables the limiter
	Burst         int
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*Response]
	log     *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With("component", "CatalogClient"),
	}

	c.cb = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx and undecodable bodies mean the upstream is alive
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			f, ok := AsFailure(err)
			if !ok {
				return false
			}
			switch f.Reason {
			case ReasonDecode:
				return true
			case ReasonUpstreamStatus:
				return f.Status < 500
			default:
				return false
			}
		},
		// a caller that went away says nothing about the upstream
		IsExcluded: func(err error) bool {
			return errors.Is(err, errCallerAborted)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			c.log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("catalog").Set(0)

	return c
}

// WithHTTPClient swaps the transport, keeping the configured timeout when
// the replacement has none.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h.Timeout == 0 {
		h.Timeout = c.http.Timeout
	}
	c.http = h
	return c
}

func (c *Client) Fetch(ctx context.Context, op Op, params url.Values) (*Response, error) {
	if !op.Valid() {
		return nil, &Failure{Op: op, Reason: ReasonTransport, Err: ErrUnknownOperation}
	}

	start := time.Now()
	var resp *Response
	err := c.limiter.Wait(ctx)
	if err != nil {
		err = &Failure{Op: op, Reason: ReasonTransport, Err: fmt.Errorf("rate limit wait: %w", err)}
	} else {
		resp, err = c.cb.Execute(func() (*Response, error) {
			return c.do(ctx, op, op.normalize(params))
		})
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &Failure{Op: op, Reason: ReasonTransport, Err: err}
		}
		if _, ok := AsFailure(err); !ok {
			err = &Failure{Op: op, Reason: ReasonTransport, Err: err}
		}
	}

	metrics.CatalogRequestDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	metrics.CatalogRequests.WithLabelValues(string(op), outcome(err)).Inc()

	if err != nil {
		c.log.Warn("catalog request failed", "op", op, "error", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, op Op, params url.Values) (*Response, error) {
	path, query := op.request(params)
	query.Set("api_key", c.apiKey)
	endpoint := c.baseURL + "/" + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Failure{Op: op, Reason: ReasonTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		// url.Error embeds the full URL, api key included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, transportFailure(ctx, op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, &Failure{Op: op, Reason: ReasonUpstreamStatus, Status: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, transportFailure(ctx, op, fmt.Errorf("read body: %w", err))
	}

	c.log.Debug("catalog request ok", "op", op, "path", path, "bytes", len(body))
	return newResponse(op, body)
}

// transportFailure marks err as caused by the caller when ctx is done.
// The client's own timeout leaves ctx untouched and stays a plain
// transport failure.
func transportFailure(ctx context.Context, op Op, err error) *Failure {
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", errCallerAborted, err)
	}
	return &Failure{Op: op, Reason: ReasonTransport, Err: err}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
