package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/auth"
	"shopfloor-ops-backend/internal/lifecycle"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/machines"
	"shopfloor-ops-backend/internal/maintenance"
	"shopfloor-ops-backend/internal/policy"
	"shopfloor-ops-backend/internal/store"
	"shopfloor-ops-backend/internal/users"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	alerts      *lifecycle.Engine
	machines    *machines.Service
	users       *users.Service
	maintenance *maintenance.Service
	webpush     *webpush.Options
}

// Services bundles the domain services the handlers delegate to.
type Services struct {
	Alerts      *lifecycle.Engine
	Machines    *machines.Service
	Users       *users.Service
	Maintenance *maintenance.Service
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc Services, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:       s,
		alerts:      svc.Alerts,
		machines:    svc.Machines,
		users:       svc.Users,
		maintenance: svc.Maintenance,
		webpush:     webpushOptions,
	}
}

// listQuery is the pagination part shared by every listing. Values that are
// not positive integers fall back to the defaults instead of failing.
type listQuery struct {
	RawPage  string `form:"page"`
	RawLimit string `form:"limit"`
}

func (q listQuery) Page() int  { return positiveOr(q.RawPage, store.DefaultPage) }
func (q listQuery) Limit() int { return positiveOr(q.RawLimit, store.DefaultLimit) }

func positiveOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func writePage[T any](c *gin.Context, key string, page *store.Page[T]) {
	c.JSON(http.StatusOK, gin.H{
		key: page.Items,
		"pagination": pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages,
		},
	})
}

// writeError maps a service error to its status code. Errors without a kind
// are logged and reported as a generic internal error.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.KindInternal {
		logger := logging.GetLoggerFromContext(c.Request.Context())
		logger.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": msg, "code": kind})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, apperr.Validation("invalid request: %v", err))
}

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid id %q", c.Param("id"))
	}
	return uint(id), nil
}

// actor returns the authenticated caller. Routes using it sit behind
// auth.Middleware, so a missing actor is a wiring bug.
func actor(c *gin.Context) policy.Actor {
	a, ok := auth.ActorFrom(c)
	if !ok {
		panic(fmt.Sprintf("no actor on %s %s", c.Request.Method, c.FullPath()))
	}
	return a
}
