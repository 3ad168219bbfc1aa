package movies

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"movierec/internal/activity"
	"movierec/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Tracker *activity.Tracker // optional; records views by signed-in callers
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/movies", h.list)             // GET /movies
	rg.GET("/movies/:tmdb_id", h.getByID) // GET /movies/550
	rg.GET("/genres", h.genres)           // GET /genres
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:       c.Query("q"),
		GenreID: int64(ParseInt(c.Query("genre"), 0)),
		Adult:   c.Query("include_adult") == "true",
		Sort:    c.Query("sort"),
		Limit:   ParseInt(c.Query("limit"), 20),
		Offset:  ParseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("tmdb_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tmdb id"})
		return
	}
	m, err := h.Repo.GetByExternalID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.Tracker.Track(c, models.ActivityViewMovie, m.TMDBID, nil)
	c.JSON(http.StatusOK, gin.H{
		"movie":        m,
		"poster_url":   m.PosterURL(),
		"backdrop_url": m.BackdropURL(),
	})
}

func (h *Handler) genres(c *gin.Context) {
	items, err := h.Repo.ListGenres(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ParseInt returns def for empty or unparsable input.
func ParseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
