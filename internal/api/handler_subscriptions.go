package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shopfloor-ops-backend/internal/apperr"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/policy"
)

type putSubscriptionRequest struct {
	Endpoint           string `json:"endpoint" binding:"required"`
	P256DH             string `json:"p256dh" binding:"required"`
	Auth               string `json:"auth" binding:"required"`
	SubscribedMachines []uint `json:"subscribed_machines"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller := actor(c)
	ctx := c.Request.Context()
	if err := h.checkSubscriptionOwner(c, caller, req.Endpoint, true); err != nil {
		writeError(c, err)
		return
	}

	subscription := &model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		UserID:   caller.ID,
	}
	if err := h.store.PutSubscription(ctx, subscription, req.SubscribedMachines); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.checkSubscriptionOwner(c, actor(c), req.Endpoint, false); err != nil {
		writeError(c, err)
		return
	}
	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads key without URL decoding. Push endpoints are URLs and
// clients send them unescaped.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		writeError(c, apperr.Validation("endpoint is required"))
		return
	}

	if err := h.checkSubscriptionOwner(c, actor(c), raw, false); err != nil {
		writeError(c, err)
		return
	}
	subscription, err := h.store.GetSubscription(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}

	machineIDs := make([]uint, len(subscription.Machines))
	for i, machine := range subscription.Machines {
		machineIDs[i] = machine.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_machines": machineIDs})
}

// checkSubscriptionOwner allows the owner of an existing subscription and
// admins. A missing one is NotFound unless allowMissing is set.
func (h *Handler) checkSubscriptionOwner(c *gin.Context, caller policy.Actor, endpoint string, allowMissing bool) error {
	existing, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if errors.Is(err, apperr.ErrNotFound) && allowMissing {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.UserID != caller.ID && caller.Role != model.RoleAdmin {
		return apperr.Forbidden("subscription belongs to another user")
	}
	return nil
}
