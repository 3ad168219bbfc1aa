package activity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"movierec/internal/auth"
	"movierec/pkg/database/dbtest"
	"movierec/pkg/models"
)

func newTestRepo(t *testing.T) (*Repo, *time.Time) {
	t.Helper()
	r := NewRepo(dbtest.Open(t))
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }
	return r, &now
}

func TestRecordAndListNewestFirst(t *testing.T) {
	r, now := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.Record(ctx, models.Activity{UserID: "u-1", Type: models.ActivitySearch, Metadata: map[string]any{"query": "alien"}}); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Minute)
	if _, err := r.Record(ctx, models.Activity{UserID: "u-1", Type: models.ActivityViewMovie, MovieID: 550}); err != nil {
		t.Fatal(err)
	}
	r.Record(ctx, models.Activity{UserID: "u-2", Type: models.ActivitySearch})

	got, err := r.ListForUser(ctx, "u-1", "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Type != models.ActivityViewMovie || got[0].MovieID != 550 {
		t.Fatalf("activity = %+v", got)
	}
	if got[1].MovieID != 0 || got[1].Metadata["query"] != "alien" {
		t.Fatalf("search activity = %+v", got[1])
	}

	searches, _ := r.ListForUser(ctx, "u-1", models.ActivitySearch, 10, 0)
	if len(searches) != 1 {
		t.Fatalf("filtered = %d, want 1", len(searches))
	}
}

func TestRecordRequiresUserAndType(t *testing.T) {
	r, _ := newTestRepo(t)
	if _, err := r.Record(context.Background(), models.Activity{Type: models.ActivitySearch}); err == nil {
		t.Fatal("expected error without user id")
	}
	if _, err := r.Record(context.Background(), models.Activity{UserID: "u-1"}); err == nil {
		t.Fatal("expected error without type")
	}
}

var testTokens = auth.TokenService{Secret: []byte("s"), Issuer: "movierec"}

func TestTrackerSkipsAnonymousAndServesHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, _ := newTestRepo(t)
	tracker := NewTracker(r, nil)

	router := gin.New()
	router.Use(auth.OptionalIdentity(testTokens))
	router.GET("/movies/:id", func(c *gin.Context) {
		tracker.Track(c, models.ActivityViewMovie, 550, nil)
		c.Status(http.StatusNoContent)
	})
	NewHandler(r).RegisterRoutes(router.Group("/users/me", auth.RequireIdentity()))

	tok, _, _ := testTokens.Sign("u-1", false)
	for _, token := range []string{"", tok} {
		req := httptest.NewRequest(http.MethodGet, "/movies/550", nil)
		req.Header.Set("User-Agent", "movierec-test")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	var n int
	r.DB.QueryRow(`SELECT COUNT(*) FROM user_activity`).Scan(&n)
	if n != 1 {
		t.Fatalf("rows = %d, want 1 (anonymous view must not be tracked)", n)
	}

	req := httptest.NewRequest(http.MethodGet, "/users/me/activity", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"activity_type":"view_movie"`) {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "movierec-test") {
		t.Fatal("user agent leaked into the listing")
	}
}

func TestNilTrackerIsNoop(t *testing.T) {
	var tracker *Tracker
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	tracker.Track(c, models.ActivitySearch, 0, nil)
}
