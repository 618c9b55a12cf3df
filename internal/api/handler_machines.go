package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/machines"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/schedule"
)

type machineListQuery struct {
	listQuery
	Status   string `form:"status"`
	Location string `form:"location"`
	Search   string `form:"search"`
}

type createMachineRequest struct {
	Name                string              `json:"name" binding:"required"`
	Model               string              `json:"model" binding:"required"`
	SerialNumber        string              `json:"serialNumber" binding:"required"`
	Location            string              `json:"location" binding:"required"`
	Description         string              `json:"description"`
	Manufacturer        string              `json:"manufacturer"`
	Notes               string              `json:"notes"`
	Status              model.MachineStatus `json:"status"`
	InstallationDate    *time.Time          `json:"installationDate"`
	MaintenanceInterval intervalDays        `json:"maintenanceInterval"`
}

type updateMachineRequest struct {
	Name                *string       `json:"name"`
	Model               *string       `json:"model"`
	SerialNumber        *string       `json:"serialNumber"`
	Location            *string       `json:"location"`
	Description         *string       `json:"description"`
	Manufacturer        *string       `json:"manufacturer"`
	Notes               *string       `json:"notes"`
	InstallationDate    *time.Time    `json:"installationDate"`
	MaintenanceInterval *intervalDays `json:"maintenanceInterval"`
}

// intervalDays is a maintenance interval sent either as a JSON number or as
// a string.
type intervalDays string

func (d *intervalDays) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*d = intervalDays(s)
		return nil
	}
	*d = intervalDays(strings.TrimSpace(string(raw)))
	return nil
}

// orDefault is the interval in days, or the default when it is missing or
// not numeric.
func (d intervalDays) orDefault() int {
	return schedule.ParseInterval(string(d))
}

// strict is the interval in days. Non numeric values are rejected.
func (d intervalDays) strict() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(d)))
	if err != nil {
		return 0, apperr.Validation("maintenanceInterval must be a whole number of days")
	}
	return n, nil
}

type machineStatusRequest struct {
	Status model.MachineStatus `json:"status" binding:"required"`
}

type machineMetricsRequest struct {
	Performance  *float64 `json:"performance"`
	Availability *float64 `json:"availability"`
	Quality      *float64 `json:"quality"`
}

func (h *Handler) ListMachines(c *gin.Context) {
	var q machineListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.machines.List(c.Request.Context(), actor(c), machines.ListQuery{
		Status:   q.Status,
		Location: q.Location,
		Search:   q.Search,
		Page:     q.Page(),
		Limit:    q.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, "machines", page)
}

func (h *Handler) GetMachine(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := h.machines.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateMachine(c *gin.Context) {
	var req createMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.machines.Create(c.Request.Context(), actor(c), machines.CreateInput{
		Name:                req.Name,
		Model:               req.Model,
		SerialNumber:        req.SerialNumber,
		Location:            req.Location,
		Description:         req.Description,
		Manufacturer:        req.Manufacturer,
		Notes:               req.Notes,
		Status:              req.Status,
		InstallationDate:    req.InstallationDate,
		MaintenanceInterval: req.MaintenanceInterval.orDefault(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateMachine(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var interval *int
	if req.MaintenanceInterval != nil {
		days, err := req.MaintenanceInterval.strict()
		if err != nil {
			writeError(c, err)
			return
		}
		interval = &days
	}
	m, err := h.machines.Update(c.Request.Context(), actor(c), id, machines.Patch{
		Name:                req.Name,
		Model:               req.Model,
		SerialNumber:        req.SerialNumber,
		Location:            req.Location,
		Description:         req.Description,
		Manufacturer:        req.Manufacturer,
		Notes:               req.Notes,
		InstallationDate:    req.InstallationDate,
		MaintenanceInterval: interval,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMachine(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.machines.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "machine removed"})
}

func (h *Handler) UpdateMachineStatus(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req machineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := h.machines.UpdateStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) UpdateMachineMetrics(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req machineMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.machines.UpdateMetrics(c.Request.Context(), actor(c), id, machines.MetricsPatch{
		Performance:  req.Performance,
		Availability: req.Availability,
		Quality:      req.Quality,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": m})
}
