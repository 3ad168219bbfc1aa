package catalog

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/singleflight"

	"movierec/internal/cache"
	"movierec/internal/metrics"
	"movierec/pkg/logger"
)

// CachedClient fronts a Fetcher with a response cache. Only successful
// responses are stored, each for its operation's TTL.
type CachedClient struct {
	next  Fetcher
	store cache.Store
	group singleflight.Group
	log   *logger.Logger
}

func NewCachedClient(next Fetcher, store cache.Store, log *logger.Logger) *CachedClient {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedClient{
		next:  next,
		store: store,
		log:   log.With("component", "CachedCatalog"),
	}
}

func (c *CachedClient) Fetch(ctx context.Context, op Op, params url.Values) (*Response, error) {
	if !op.Valid() {
		return nil, &Failure{Op: op, Reason: ReasonTransport, Err: ErrUnknownOperation}
	}

	params = op.normalize(params)
	key := cache.Key(string(op), params)

	if body, ok := c.store.Get(ctx, key); ok {
		if resp, err := newResponse(op, body); err == nil {
			metrics.CacheLookups.WithLabelValues(string(op), "hit").Inc()
			return resp, nil
		}
		c.log.Warn("discarding unreadable cache entry", "key", key)
	}
	metrics.CacheLookups.WithLabelValues(string(op), "miss").Inc()

	// The shared fetch outlives any single caller; the client timeout
	// still bounds it.
	ch := c.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		resp, err := c.next.Fetch(fctx, op, params)
		if err != nil {
			return nil, err
		}
		c.store.Put(fctx, key, resp.Body, op.TTL())
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, &Failure{Op: op, Reason: ReasonTransport, Err: fmt.Errorf("%w: %w", errCallerAborted, ctx.Err())}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response), nil
	}
}
