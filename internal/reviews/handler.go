package reviews

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"movierec/internal/activity"
	"movierec/internal/auth"
	"movierec/pkg/models"
)

type Handler struct {
	Repo    *Repo
	Tracker *activity.Tracker
}

func NewHandler(repo *Repo, tracker *activity.Tracker) *Handler {
	return &Handler{Repo: repo, Tracker: tracker}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/movies/:tmdb_id/ratings", h.listByMovie)
}

// RegisterProtectedRoutes expects rg to already require an identity.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/ratings", h.listMine)            // GET /users/me/ratings
	rg.POST("/ratings", h.upsert)             // POST /users/me/ratings {"movie_id":1,"rating":4.5}
	rg.GET("/ratings/:movie_id", h.getOne)    // GET /users/me/ratings/1
	rg.DELETE("/ratings/:movie_id", h.delete) // DELETE /users/me/ratings/1
}

type upsertReq struct {
	MovieID int64   `json:"movie_id"`
	Rating  float64 `json:"rating"`
	Review  string  `json:"review"`
}

func (h *Handler) upsert(c *gin.Context) {
	var req upsertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.MovieID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "movie_id required"})
		return
	}

	ident := auth.IdentityFrom(c)
	rating, created, err := h.Repo.Upsert(c.Request.Context(), ident.UserID, req.MovieID, req.Rating, strings.TrimSpace(req.Review))
	if err != nil {
		switch {
		case errors.Is(err, ErrRatingRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrUnknownMovie):
			c.JSON(http.StatusBadRequest, gin.H{"error": "movie not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		}
		return
	}

	h.Tracker.Track(c, models.ActivityRateMovie, rating.Movie.TMDBID, map[string]any{"rating": rating.Rating})
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, rating)
}

func (h *Handler) listMine(c *gin.Context) {
	ident := auth.IdentityFrom(c)
	ctx := c.Request.Context()
	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.ListForUser(ctx, ident.UserID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	summary, err := h.Repo.SummaryForUser(ctx, ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":          total,
		"limit":          limit,
		"offset":         offset,
		"average_rating": summary.Average,
		"items":          items,
	})
}

func (h *Handler) listByMovie(c *gin.Context) {
	tmdbID, err := strconv.ParseInt(c.Param("tmdb_id"), 10, 64)
	if err != nil || tmdbID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tmdb id"})
		return
	}
	limit := parseInt(c.Query("limit"), 20)
	offset := parseInt(c.Query("offset"), 0)

	items, total, err := h.Repo.ListForMovie(c.Request.Context(), tmdbID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) getOne(c *gin.Context) {
	movieID, ok := movieParam(c)
	if !ok {
		return
	}
	ident := auth.IdentityFrom(c)
	x, err := h.Repo.Get(c.Request.Context(), ident.UserID, movieID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if x == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, x)
}

func (h *Handler) delete(c *gin.Context) {
	movieID, ok := movieParam(c)
	if !ok {
		return
	}
	ident := auth.IdentityFrom(c)
	ctx := c.Request.Context()

	x, err := h.Repo.Get(ctx, ident.UserID, movieID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if x == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if _, err := h.Repo.Delete(ctx, ident.UserID, movieID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.Tracker.Track(c, models.ActivityRemoveRating, x.Movie.TMDBID, nil)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func movieParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("movie_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
		return 0, false
	}
	return id, true
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
