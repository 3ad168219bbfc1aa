package library

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

var listActivity = map[string]struct{ add, remove string }{
	models.ListFavorites: {models.ActivityAddFavorite, models.ActivityRemoveFavorite},
	models.ListWatchlist: {models.ActivityAddWatchlist, models.ActivityRemoveWatchlist},
}

// RegisterRoutes expects rg to already require an identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/library", h.counts) // GET /users/me/library
	for _, list := range []string{models.ListFavorites, models.ListWatchlist} {
		rg.GET("/"+list, h.list(list))                   // GET /users/me/favorites
		rg.POST("/"+list, h.add(list))                   // POST /users/me/favorites {"movie_id":1}
		rg.DELETE("/"+list+"/:movie_id", h.remove(list)) // DELETE /users/me/favorites/1
	}
}

type addReq struct {
	MovieID int64 `json:"movie_id"`
}

func (h *Handler) add(list string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.MovieID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "movie_id required"})
			return
		}

		ident := auth.IdentityFrom(c)
		entry, created, err := h.Repo.Add(c.Request.Context(), ident.UserID, list, req.MovieID)
		if err != nil {
			if errors.Is(err, ErrUnknownMovie) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "movie not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}

		if !created {
			c.JSON(http.StatusOK, entry)
			return
		}
		h.Tracker.Track(c, listActivity[list].add, entry.Movie.TMDBID, nil)
		c.JSON(http.StatusCreated, entry)
	}
}

func (h *Handler) list(list string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := auth.IdentityFrom(c)
		limit := parseInt(c.Query("limit"), 20)
		offset := parseInt(c.Query("offset"), 0)

		items, total, err := h.Repo.List(c.Request.Context(), ident.UserID, list, limit, offset)
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
}

func (h *Handler) remove(list string) gin.HandlerFunc {
	return func(c *gin.Context) {
		movieID, err := strconv.ParseInt(c.Param("movie_id"), 10, 64)
		if err != nil || movieID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid movie id"})
			return
		}

		ident := auth.IdentityFrom(c)
		ctx := c.Request.Context()
		entry, err := h.Repo.Get(ctx, ident.UserID, list, movieID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
			return
		}
		if entry == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if _, err := h.Repo.Remove(ctx, ident.UserID, list, movieID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
			return
		}

		h.Tracker.Track(c, listActivity[list].remove, entry.Movie.TMDBID, nil)
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	}
}

func (h *Handler) counts(c *gin.Context) {
	ident := auth.IdentityFrom(c)
	counts, err := h.Repo.Counts(c.Request.Context(), ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"favorites_count": counts[models.ListFavorites],
		"watchlist_count": counts[models.ListWatchlist],
	})
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
