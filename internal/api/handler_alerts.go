package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/lifecycle"
	"shopfloor-ops-backend/internal/model"
)

type alertListQuery struct {
	listQuery
	Status    string `form:"status"`
	Priority  string `form:"priority"`
	MachineID uint   `form:"machineId"`
	Search    string `form:"search"`
}

type createAlertRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description" binding:"required"`
	MachineID   uint                `json:"machineId" binding:"required"`
	Priority    model.AlertPriority `json:"priority"`
	Photos      []string            `json:"photos"`
}

type updateAlertRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *model.AlertPriority `json:"priority"`
	Status      *model.AlertStatus   `json:"status"`
	AssignedTo  *uint                `json:"assignedTo"`
}

// ListAlerts handles GET /api/alerts. The listing is scoped to what the
// caller's role may see.
func (h *Handler) ListAlerts(c *gin.Context) {
	var q alertListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.alerts.List(c.Request.Context(), actor(c), lifecycle.ListQuery{
		Status:    q.Status,
		Priority:  q.Priority,
		MachineID: q.MachineID,
		Search:    q.Search,
		Page:      q.Page(),
		Limit:     q.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, "alerts", page)
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	a, err := h.alerts.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.alerts.Create(c.Request.Context(), actor(c), lifecycle.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		MachineID:   req.MachineID,
		Priority:    req.Priority,
		Photos:      req.Photos,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateAlert(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.alerts.Update(c.Request.Context(), actor(c), id, lifecycle.Patch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// AssignAlert handles PUT /api/alerts/:id/assign, taking the alert for the caller.
func (h *Handler) AssignAlert(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	a, err := h.alerts.AssignToSelf(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAlert(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.alerts.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert removed"})
}
