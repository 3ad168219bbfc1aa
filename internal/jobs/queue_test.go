package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"movierec/pkg/database/dbtest"
	"movierec/pkg/models"
)

func newTestQueue(t *testing.T) (*Queue, *time.Time) {
	t.Helper()
	q := NewQueue(dbtest.Open(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	q.Now = func() time.Time { return now }
	return q, &now
}

func TestQueueClaimRetryAndFail(t *testing.T) {
	q, now := newTestQueue(t)
	ctx := context.Background()

	run, err := q.Enqueue(ctx, "flaky", Args{"movie_id": "550"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.State != models.JobQueued || run.Args["movie_id"] != "550" {
		t.Fatalf("enqueued run = %+v", run)
	}

	claimed, err := q.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v, %v", claimed, err)
	}
	if claimed.State != models.JobRunning || claimed.Attempts != 1 {
		t.Fatalf("claimed = %+v", claimed)
	}
	if again, _ := q.ClaimNext(ctx); again != nil {
		t.Fatalf("claimed twice: %+v", again)
	}

	done, err := q.Complete(ctx, claimed, Result{Status: "Failed to sync genres"}, 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if done.State != models.JobQueued || !done.RunAfter.Equal(now.Add(time.Minute)) {
		t.Fatalf("retry = %+v", done)
	}
	if early, _ := q.ClaimNext(ctx); early != nil {
		t.Fatal("retry claimed before its delay")
	}

	*now = now.Add(2 * time.Minute)
	claimed, _ = q.ClaimNext(ctx)
	if claimed == nil || claimed.Attempts != 2 {
		t.Fatalf("second claim = %+v", claimed)
	}
	done, err = q.Complete(ctx, claimed, Result{Status: "Failed to sync genres"}, 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if done.State != models.JobFailed || done.LastError != "Failed to sync genres" {
		t.Fatalf("final = %+v", done)
	}
}

func TestQueueRequeueStale(t *testing.T) {
	q, now := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "slow", nil); err != nil {
		t.Fatal(err)
	}
	if run, _ := q.ClaimNext(ctx); run == nil {
		t.Fatal("nothing claimed")
	}

	if n, _ := q.RequeueStale(ctx, time.Hour); n != 0 {
		t.Fatalf("fresh run requeued: %d", n)
	}
	*now = now.Add(2 * time.Hour)
	if n, _ := q.RequeueStale(ctx, time.Hour); n != 1 {
		t.Fatalf("requeued = %d, want 1", n)
	}
	queued, err := q.List(ctx, models.JobQueued, 10, 0)
	if err != nil || len(queued) != 1 {
		t.Fatalf("queued = %v, %v", queued, err)
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, d := range []Definition{
		{Name: "ok", Run: func(context.Context, Args) Result { return Result{Status: "done", OK: true} }},
		{Name: "flaky", MaxAttempts: 2, Run: func(context.Context, Args) Result { return Result{Status: "nope"} }},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func TestWorkerProcessesRunsToCompletion(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	w := NewWorker(1, q, testRegistry(t), nil, WorkerConfig{}, nil)

	if w.ProcessNext(ctx) {
		t.Fatal("processed a run from an empty queue")
	}

	okRun, _ := q.Enqueue(ctx, "ok", nil)
	flaky, _ := q.Enqueue(ctx, "flaky", nil)
	unknown, _ := q.Enqueue(ctx, "missing", nil)

	// flaky retries immediately (zero delay) and fails on its second attempt
	for i := 0; i < 4; i++ {
		if !w.ProcessNext(ctx) {
			t.Fatalf("pass %d: nothing processed", i)
		}
	}
	if w.ProcessNext(ctx) {
		t.Fatal("queue should be drained")
	}

	for _, tc := range []struct {
		id       string
		state    string
		attempts int
		status   string
	}{
		{okRun.ID, models.JobSucceeded, 1, "done"},
		{flaky.ID, models.JobFailed, 2, "nope"},
		{unknown.ID, models.JobFailed, 1, "Error: unknown job: missing"},
	} {
		got, err := q.Get(ctx, tc.id)
		if err != nil || got == nil {
			t.Fatalf("Get(%s): %v", tc.id, err)
		}
		if got.State != tc.state || got.Attempts != tc.attempts || got.Status != tc.status {
			t.Fatalf("run %s = %+v, want %s/%d/%q", tc.id, got, tc.state, tc.attempts, tc.status)
		}
	}
}

func TestWorkerServeStopsOnCancel(t *testing.T) {
	q, _ := newTestQueue(t)
	w := NewWorker(1, q, testRegistry(t), nil, WorkerConfig{PollInterval: 5 * time.Millisecond}, nil)
	run, _ := q.Enqueue(context.Background(), "ok", nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := q.Get(context.Background(), run.ID); got != nil && got.State == models.JobSucceeded {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
	if got, _ := q.Get(context.Background(), run.ID); got.State != models.JobSucceeded {
		t.Fatalf("run state = %s", got.State)
	}
}

func TestWorkerServeLeavesStaleRunsAlone(t *testing.T) {
	q, now := newTestQueue(t)
	run, _ := q.Enqueue(context.Background(), "ok", nil)
	if claimed, _ := q.ClaimNext(context.Background()); claimed == nil || claimed.ID != run.ID {
		t.Fatal("nothing claimed")
	}
	*now = now.Add(2 * StaleRunning)

	w := NewWorker(2, q, testRegistry(t), nil, WorkerConfig{PollInterval: 5 * time.Millisecond}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Serve(ctx)

	got, _ := q.Get(context.Background(), run.ID)
	if got.State != models.JobRunning || got.Attempts != 1 {
		t.Fatalf("run = %+v, want still running on its first attempt", got)
	}
}

func TestSchedulerFireEnqueues(t *testing.T) {
	q, _ := newTestQueue(t)
	s := NewScheduler(q, nil, nil, nil)
	s.Fire(context.Background(), Schedule{Job: DailyFullSync})

	runs, err := q.List(context.Background(), "", 10, 0)
	if err != nil || len(runs) != 1 || runs[0].Name != DailyFullSync {
		t.Fatalf("runs = %+v, %v", runs, err)
	}
}

func TestHandlerEnqueueAndGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	q, _ := newTestQueue(t)
	r := gin.New()
	NewHandler(q, testRegistry(t), nil).RegisterRoutes(r.Group("/admin"))

	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/ok?user_id=q", strings.NewReader(`{"args":{"user_id":"u-1"}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("enqueue status = %d, body = %s", w.Code, w.Body.String())
	}
	var run models.JobRun
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.Args["user_id"] != "u-1" {
		t.Fatalf("body args should win over query: %+v", run.Args)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/jobs/runs/"+run.ID, nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"state":"queued"`) {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/jobs/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/jobs?state=queued", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":1`) {
		t.Fatalf("list status = %d, body = %s", w.Code, w.Body.String())
	}
}
