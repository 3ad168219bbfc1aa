package profiles

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"movierec/internal/auth"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes expects rg to already require an identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", h.get)              // GET /users/me/profile
	rg.PUT("/profile/genres", h.setGenres) // PUT /users/me/profile/genres
}

func (h *Handler) get(c *gin.Context) {
	ident := auth.IdentityFrom(c)
	p, err := h.Repo.EnsureProfile(c.Request.Context(), ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get profile failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

type setGenresReq struct {
	GenreIDs []int64 `json:"genre_ids"`
}

func (h *Handler) setGenres(c *gin.Context) {
	var req setGenresReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ident := auth.IdentityFrom(c)
	ctx := c.Request.Context()
	if _, err := h.Repo.EnsureProfile(ctx, ident.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update profile failed"})
		return
	}
	if err := h.Repo.SetFavoriteGenres(ctx, ident.UserID, req.GenreIDs); err != nil {
		if errors.Is(err, ErrUnknownGenre) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update profile failed"})
		return
	}

	p, err := h.Repo.Get(ctx, ident.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get profile failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}
