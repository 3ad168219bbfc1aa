package jobs

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"movierec/internal/events"
)

type Handler struct {
	Queue    *Queue
	Registry *Registry
	Hub      *events.Hub
}

func NewHandler(q *Queue, reg *Registry, hub *events.Hub) *Handler {
	return &Handler{Queue: q, Registry: reg, Hub: hub}
}

// RegisterRoutes expects staff-only middleware on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/definitions", h.definitions)
	rg.POST("/jobs/:name", h.enqueue)
	rg.GET("/jobs/runs/:id", h.get)
}

type enqueueReq struct {
	Args Args `json:"args"`
}

func (h *Handler) enqueue(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.Registry.Get(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job", "job": name})
		return
	}

	var req enqueueReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}
	args := Args{}
	for k, v := range req.Args {
		args[k] = v
	}
	// query parameters fill in anything the body left out
	for k, v := range c.Request.URL.Query() {
		if _, set := args[k]; !set && len(v) > 0 {
			args[k] = v[0]
		}
	}

	run, err := h.Queue.Enqueue(c.Request.Context(), name, args)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}
	h.Hub.Publish(events.JobEvent{Type: events.JobQueued, Job: run})
	c.JSON(http.StatusAccepted, run)
}

func (h *Handler) get(c *gin.Context) {
	run, err := h.Queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, err := h.Queue.List(c.Request.Context(), c.Query("state"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list job runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs, "count": len(runs)})
}

func (h *Handler) definitions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.Registry.Names()})
}
