package recommend

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"movierec/internal/activity"
	"movierec/internal/auth"
	"movierec/internal/movies"
	"movierec/pkg/models"
)

type Handler struct {
	Service      *Service
	Attributions *AttributionRepo
	Tracker      *activity.Tracker // optional; records searches by signed-in callers
}

func NewHandler(svc *Service, attr *AttributionRepo) *Handler {
	return &Handler{Service: svc, Attributions: attr}
}

// RegisterRoutes expects auth.OptionalIdentity to run on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/recommendations", h.recommend)
	rg.GET("/recommendations/genres", h.genreBased)
	rg.GET("/recommendations/similar", h.similar)
	rg.POST("/recommendations/:id/click", auth.RequireIdentity(), h.click)
	rg.GET("/lists/:list", h.browse)
	rg.POST("/movies/search", h.search)
	rg.GET("/users/me/recommendations", auth.RequireIdentity(), h.history)
	rg.POST("/admin/genres/sync", auth.RequireStaff(), h.syncGenres)
}

func (h *Handler) recommend(c *gin.Context) {
	strategy := c.DefaultQuery("type", StrategyPopular)
	if strategy != StrategyTrending && strategy != StrategyPopular {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be trending or popular"})
		return
	}
	h.run(c, Request{
		Strategy:   strategy,
		Page:       movies.ParseInt(c.Query("page"), 1),
		TimeWindow: c.Query("time_window"),
	})
}

func (h *Handler) genreBased(c *gin.Context) {
	ids, ok := parseIDs(c.Query("ids"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be a comma separated list of genre ids"})
		return
	}
	h.run(c, Request{
		Strategy: StrategyGenreBased,
		Page:     movies.ParseInt(c.Query("page"), 1),
		GenreIDs: ids,
	})
}

func (h *Handler) similar(c *gin.Context) {
	h.run(c, Request{
		Strategy: StrategySimilar,
		Page:     movies.ParseInt(c.Query("page"), 1),
		MovieID:  int64(movies.ParseInt(c.Query("movie_id"), 0)),
	})
}

func (h *Handler) run(c *gin.Context, req Request) {
	ident := auth.IdentityFrom(c)
	req.Identity = &ident

	items, err := h.Service.Recommend(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recommendation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":  req.Strategy,
		"count": len(items),
		"items": items,
	})
}

func (h *Handler) browse(c *gin.Context) {
	list := c.Param("list")
	items, err := h.Service.Browse(c.Request.Context(), list, movies.ParseInt(c.Query("page"), 1))
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "browse failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"list":  list,
		"count": len(items),
		"items": items,
	})
}

type searchReq struct {
	Query        string `json:"query"`
	Page         int    `json:"page"`
	IncludeAdult bool   `json:"include_adult"`
	Year         int    `json:"year"`
}

func (h *Handler) search(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Service.Search(c.Request.Context(), SearchQuery{
		Query:        req.Query,
		Page:         req.Page,
		IncludeAdult: req.IncludeAdult,
		Year:         req.Year,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	h.Tracker.Track(c, models.ActivitySearch, 0, map[string]any{
		"query":   strings.TrimSpace(req.Query),
		"results": res.TotalResults,
	})
	c.JSON(http.StatusOK, res)
}

func (h *Handler) click(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ok, err := h.Attributions.MarkClicked(c.Request.Context(), id, auth.IdentityFrom(c).UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) history(c *gin.Context) {
	strategy := models.Strategy(c.Query("type"))
	if strategy != "" && !strategy.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type"})
		return
	}
	limit := movies.ParseInt(c.Query("limit"), 20)
	offset := movies.ParseInt(c.Query("offset"), 0)

	items, err := h.Attributions.ListForUser(c.Request.Context(), auth.IdentityFrom(c).UserID, strategy, limit, offset)
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

func (h *Handler) syncGenres(c *gin.Context) {
	if !h.Service.SyncCategories(c.Request.Context()) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sync genres"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Genres synced successfully"})
}

// parseIDs accepts "18,28" and rejects empty lists or non numeric parts.
func parseIDs(s string) ([]int64, bool) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, false
		}
		out = append(out, id)
	}
	return out, len(out) > 0
}
