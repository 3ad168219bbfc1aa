package catalog

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"movierec/internal/cache"
)

type stubFetcher struct {
	calls int32
	body  string
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context, op Op, params url.Values) (*Response, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Op: op, Body: []byte(s.body)}, nil
}

func TestCachedClientServesRepeatCallsFromCache(t *testing.T) {
	stub := &stubFetcher{body: `{"page":1,"results":[]}`}
	c := NewCachedClient(stub, cache.NewMemory(), nil)
	ctx := context.Background()

	a := url.Values{}
	a.Set("query", "alien")
	a.Set("page", "1")
	b := url.Values{}
	b.Set("page", "1")
	b.Set("query", "alien")

	if _, err := c.Fetch(ctx, OpSearch, a); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	resp, err := c.Fetch(ctx, OpSearch, b)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if string(resp.Body) != stub.body {
		t.Fatalf("body = %s", resp.Body)
	}
	if stub.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", stub.calls)
	}
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	stub := &stubFetcher{err: &Failure{Op: OpPopular, Reason: ReasonUpstreamStatus, Status: 503}}
	store := cache.NewMemory()
	c := NewCachedClient(stub, store, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(ctx, OpPopular, nil); err == nil {
			t.Fatal("expected failure")
		}
	}
	if stub.calls != 2 {
		t.Fatalf("upstream calls = %d, want 2", stub.calls)
	}
	if store.Len() != 0 {
		t.Fatal("failure was cached")
	}
}

func TestCachedClientDefaultsShareKey(t *testing.T) {
	stub := &stubFetcher{body: `{"page":1,"results":[]}`}
	c := NewCachedClient(stub, cache.NewMemory(), nil)
	ctx := context.Background()

	c.Fetch(ctx, OpTrending, nil)
	c.Fetch(ctx, OpTrending, url.Values{ParamTimeWindow: {"week"}})
	if stub.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", stub.calls)
	}

	c.Fetch(ctx, OpTrending, url.Values{ParamTimeWindow: {"day"}})
	if stub.calls != 2 {
		t.Fatalf("different window must miss, calls = %d", stub.calls)
	}
}

func TestCachedClientConcurrentCallsSucceed(t *testing.T) {
	stub := &stubFetcher{body: `{"genres":[{"id":18,"name":"Drama"}]}`}
	c := NewCachedClient(stub, cache.NewMemory(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Fetch(context.Background(), OpGenreList, nil)
			if err != nil {
				t.Errorf("Fetch: %v", err)
				return
			}
			genres, err := resp.Genres()
			if err != nil || len(genres) != 1 {
				t.Errorf("genres = %v, %v", genres, err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&stub.calls); n < 1 || n > 16 {
		t.Fatalf("calls = %d", n)
	}
}

type gatedFetcher struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context, op Op, params url.Values) (*Response, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.started)
	}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, &Failure{Op: op, Reason: ReasonTransport, Err: err}
	}
	return &Response{Op: op, Body: []byte(`{"page":1,"results":[]}`)}, nil
}

func TestCachedClientLeavingCallerDoesNotFailOthers(t *testing.T) {
	g := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCachedClient(g, cache.NewMemory(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, OpPopular, nil)
		firstErr <- err
	}()
	<-g.started

	secondErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), OpPopular, nil)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}
	close(g.release)

	if err := <-secondErr; err != nil {
		t.Fatalf("second caller inherited the first one's cancellation: %v", err)
	}
	if n := atomic.LoadInt32(&g.calls); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}
}
