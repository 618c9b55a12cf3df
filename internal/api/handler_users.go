package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/users"
)

type userListQuery struct {
	listQuery
	Role     string `form:"role"`
	IsActive *bool  `form:"isActive"`
	Search   string `form:"search"`
}

type createUserRequest struct {
	Name          string     `json:"name" binding:"required"`
	Email         string     `json:"email" binding:"required,email"`
	Password      string     `json:"password" binding:"required"`
	Role          model.Role `json:"role"`
	Department    string     `json:"department"`
	ContactNumber string     `json:"contactNumber"`
	IsActive      *bool      `json:"isActive"`
}

type updateUserRequest struct {
	Name          *string     `json:"name"`
	Email         *string     `json:"email" binding:"omitempty,email"`
	Password      *string     `json:"password"`
	Role          *model.Role `json:"role"`
	Department    *string     `json:"department"`
	ContactNumber *string     `json:"contactNumber"`
	IsActive      *bool       `json:"isActive"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	var q userListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page, err := h.users.List(c.Request.Context(), actor(c), users.ListQuery{
		Role:     q.Role,
		IsActive: q.IsActive,
		Search:   q.Search,
		Page:     q.Page(),
		Limit:    q.Limit(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writePage(c, "users", page)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	u, err := h.users.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Create(c.Request.Context(), actor(c), users.CreateInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Department:    req.Department,
		ContactNumber: req.ContactNumber,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Update(c.Request.Context(), actor(c), id, users.Patch{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Department:    req.Department,
		ContactNumber: req.ContactNumber,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.users.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user removed"})
}
