package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/maintenance"
	"shopfloor-ops-backend/internal/model"
)

type maintenanceListQuery struct {
	listQuery
	MachineID uint   `form:"machineId"`
	Status    string `form:"status"`
}

type createMaintenanceRequest struct {
	Title               string                    `json:"title" binding:"required"`
	MachineID           uint                      `json:"machineId" binding:"required"`
	Type                model.MaintenanceType     `json:"maintenanceType"`
	Description         string                    `json:"description" binding:"required"`
	ScheduledDate       time.Time                 `json:"scheduledDate" binding:"required"`
	EstimatedDuration   float64                   `json:"estimatedDuration" binding:"required"`
	RequiredParts       []string                  `json:"requiredParts"`
	AssignedTechnicians []uint                    `json:"assignedTechnicians"`
	Priority            model.MaintenancePriority `json:"priority"`
	Notes               string                    `json:"notes"`
	Cost                float64                   `json:"cost"`
}

type updateMaintenanceRequest struct {
	Title               *string                    `json:"title"`
	Type                *model.MaintenanceType     `json:"maintenanceType"`
	Description         *string                    `json:"description"`
	ScheduledDate       *time.Time                 `json:"scheduledDate"`
	EstimatedDuration   *float64                   `json:"estimatedDuration"`
	RequiredParts       *[]string                  `json:"requiredParts"`
	AssignedTechnicians *[]uint                    `json:"assignedTechnicians"`
	Status              *model.MaintenanceStatus   `json:"status"`
	Priority            *model.MaintenancePriority `json:"priority"`
	Notes               *string                    `json:"notes"`
	Cost                *float64                   `json:"cost"`
}

type completeMaintenanceRequest struct {
	CompletedDate  *time.Time `json:"completedDate"`
	ActualDuration *float64   `json:"actualDuration"`
	Notes          *string    `json:"notes"`
}

func (h *Handler) ListMaintenance(c *gin.Context) {
	var q maintenanceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.maintenance.List(c.Request.Context(), actor(c), maintenance.ListQuery{
		MachineID: q.MachineID,
		Status:    q.Status,
		Page:      q.Page(),
		Limit:     q.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, "maintenance", page)
}

func (h *Handler) GetMaintenance(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := h.maintenance.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateMaintenance(c *gin.Context) {
	var req createMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.maintenance.Create(c.Request.Context(), actor(c), maintenance.CreateInput{
		Title:               req.Title,
		MachineID:           req.MachineID,
		Type:                req.Type,
		Description:         req.Description,
		ScheduledDate:       req.ScheduledDate,
		EstimatedDuration:   req.EstimatedDuration,
		RequiredParts:       req.RequiredParts,
		AssignedTechnicians: req.AssignedTechnicians,
		Priority:            req.Priority,
		Notes:               req.Notes,
		Cost:                req.Cost,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateMaintenance(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.maintenance.Update(c.Request.Context(), actor(c), id, maintenance.Patch{
		Title:               req.Title,
		Type:                req.Type,
		Description:         req.Description,
		ScheduledDate:       req.ScheduledDate,
		EstimatedDuration:   req.EstimatedDuration,
		RequiredParts:       req.RequiredParts,
		AssignedTechnicians: req.AssignedTechnicians,
		Status:              req.Status,
		Priority:            req.Priority,
		Notes:               req.Notes,
		Cost:                req.Cost,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CompleteMaintenance(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req completeMaintenanceRequest
	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	m, err := h.maintenance.Complete(c.Request.Context(), actor(c), id, maintenance.CompleteInput{
		CompletedDate:  req.CompletedDate,
		ActualDuration: req.ActualDuration,
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMaintenance(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.maintenance.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "maintenance record removed"})
}
