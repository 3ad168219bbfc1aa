package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeServer struct {
	mu        sync.Mutex
	listenErr error
	stop      chan struct{}
	shutdowns int
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	close(f.stop)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer(nil)
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if srv.shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", srv.shutdowns)
	}
}

func TestHTTPServiceReportsListenFailure(t *testing.T) {
	svc := NewHTTPService(newFakeServer(errors.New("address already in use")), time.Second)
	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

type countingService struct {
	started chan struct{}
	once    sync.Once
}

func (c *countingService) Serve(ctx context.Context) error {
	c.once.Do(func() { close(c.started) })
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeRunsServicesInBothLayers(t *testing.T) {
	tree := NewTree(nil, TreeConfig{ShutdownTimeout: time.Second})
	api := &countingService{started: make(chan struct{})}
	job := &countingService{started: make(chan struct{})}
	tree.AddAPIService(api)
	tree.AddJobService(job)

	ctx, cancel := context.WithCancel(context.Background())
	errc := tree.ServeBackground(ctx)
	for _, s := range []*countingService{api, job} {
		select {
		case <-s.started:
		case <-time.After(2 * time.Second):
			t.Fatal("service not started")
		}
	}
	cancel()
	select {
	case <-errc:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}
