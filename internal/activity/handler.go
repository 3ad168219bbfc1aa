package activity

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"movierec/internal/auth"
	"movierec/pkg/logger"
	"movierec/pkg/models"
)

// Tracker appends activity for the identity on a request. It skips
// anonymous callers and never fails the request; a nil Tracker does
// nothing.
type Tracker struct {
	Repo *Repo
	log  *logger.Logger
}

func NewTracker(repo *Repo, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{Repo: repo, log: log.With("component", "ActivityTracker")}
}

func (t *Tracker) Track(c *gin.Context, typ string, tmdbID int64, meta map[string]any) {
	if t == nil {
		return
	}
	ident := auth.IdentityFrom(c)
	if !ident.Authenticated {
		return
	}
	_, err := t.Repo.Record(c.Request.Context(), models.Activity{
		UserID:    ident.UserID,
		Type:      typ,
		MovieID:   tmdbID,
		Metadata:  meta,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		t.log.Warn("record activity failed", "type", typ, "user_id", ident.UserID, "error", err)
	}
}

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes expects rg to already require an identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activity", h.list) // GET /users/me/activity?type=search
}

func (h *Handler) list(c *gin.Context) {
	ident := auth.IdentityFrom(c)
	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)

	items, err := h.Repo.ListForUser(c.Request.Context(), ident.UserID, c.Query("type"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
