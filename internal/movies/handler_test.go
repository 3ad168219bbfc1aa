package movies

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"movierec/pkg/database/dbtest"
	"movierec/pkg/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := NewRepo(dbtest.Open(t), nil)
	r := gin.New()
	NewHandler(repo).RegisterRoutes(r.Group(""))
	return r, repo
}

func TestHandlerGetMovie(t *testing.T) {
	router, repo := newTestRouter(t)
	if _, err := repo.UpsertMovie(context.Background(), models.CatalogRecord{ID: 550, Title: "Fight Club", PosterPath: "/p.jpg"}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movies/550", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"poster_url":"https://image.tmdb.org/t/p/w500/p.jpg"`) {
		t.Fatalf("body = %s", w.Body.String())
	}

	for path, want := range map[string]int{
		"/movies/551": http.StatusNotFound,
		"/movies/abc": http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("%s: status = %d, want %d", path, w.Code, want)
		}
	}
}

func TestHandlerListMovies(t *testing.T) {
	router, repo := newTestRouter(t)
	repo.UpsertMovies(context.Background(), []models.CatalogRecord{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movies?limit=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total":2`) || !strings.Contains(w.Body.String(), `"limit":1`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}
