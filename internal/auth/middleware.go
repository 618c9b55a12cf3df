package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/policy"
)

const (
	actorKey = "actor"
	userKey  = "user"
)

// UserLookup loads the account a token refers to.
type UserLookup interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
}

// Middleware resolves the bearer token to an actor. The account must still
// exist and be active; its current role wins over the one in the token.
func Middleware(issuer *Issuer, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, apperr.Unauthorized("authorization header required"))
			return
		}

		claims, err := issuer.Parse(strings.TrimSpace(raw))
		if err != nil {
			abort(c, err)
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				err = apperr.Unauthorized("user no longer exists")
			}
			abort(c, err)
			return
		}
		if !user.IsActive {
			abort(c, apperr.Unauthorized("account is deactivated"))
			return
		}

		c.Set(userKey, user)
		c.Set(actorKey, policy.Actor{ID: user.ID, Role: user.Role})
		c.Next()
	}
}

// Require rejects callers whose role may not perform op. Record level grants
// are left to the services.
func Require(op policy.Op) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, apperr.Unauthorized("authentication required"))
			return
		}
		if err := policy.Evaluate(actor, op, nil); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor set by Middleware.
func ActorFrom(c *gin.Context) (policy.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return policy.Actor{}, false
	}
	actor, ok := v.(policy.Actor)
	return actor, ok
}

// UserFrom returns the account set by Middleware.
func UserFrom(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}

func abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.KindInternal {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": msg, "code": kind})
}
