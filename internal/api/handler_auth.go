package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/users"
)

type registerRequest struct {
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required"`
	Role     model.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name          *string `json:"name"`
	Password      *string `json:"password"`
	Department    *string `json:"department"`
	ContactNumber *string `json:"contactNumber"`
}

// sessionResponse is the account with its access token alongside.
type sessionResponse struct {
	*model.User
	Token string `json:"token"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.users.Register(c.Request.Context(), users.RegisterInput{
		Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{User: sess.User, Token: sess.Token})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{User: sess.User, Token: sess.Token})
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.users.Me(c.Request.Context(), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), actor(c), users.ProfilePatch{
		Name:          req.Name,
		Password:      req.Password,
		Department:    req.Department,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
