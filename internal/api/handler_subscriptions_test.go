package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/store/storetest"
)

const testEndpoint = "https://push.example.com/send/abc123"

func TestPutSubscription(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.login("alice", model.RoleUser)

	code, body := ts.do(http.MethodPut, "/api/subscriptions", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["code"])

	code, _ = ts.do(http.MethodPut, "/api/subscriptions", token, gin.H{"endpoint": testEndpoint})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodPut, "/api/subscriptions", "", gin.H{"endpoint": testEndpoint, "p256dh": "key", "auth": "secret"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSubscriptionRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.login("alice", model.RoleUser)
	m1 := storetest.Machine(t, ts.store, "CNC-1", model.MachineOperational)
	m2 := storetest.Machine(t, ts.store, "CNC-2", model.MachineOperational)

	code, _ := ts.do(http.MethodPut, "/api/subscriptions", token, gin.H{
		"endpoint": testEndpoint, "p256dh": "key", "auth": "secret",
		"subscribed_machines": []uint{m1.ID, m2.ID},
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := ts.do(http.MethodGet, "/api/subscriptions?endpoint="+testEndpoint, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []any{float64(m1.ID), float64(m2.ID)}, body["subscribed_machines"])

	// replacing narrows the machine set
	code, _ = ts.do(http.MethodPut, "/api/subscriptions", token, gin.H{
		"endpoint": testEndpoint, "p256dh": "key", "auth": "secret",
		"subscribed_machines": []uint{m2.ID},
	})
	require.Equal(t, http.StatusCreated, code)
	_, body = ts.do(http.MethodGet, "/api/subscriptions?endpoint="+testEndpoint, token, nil)
	assert.Equal(t, []any{float64(m2.ID)}, body["subscribed_machines"])

	code, _ = ts.do(http.MethodDelete, "/api/subscriptions", token, gin.H{"endpoint": testEndpoint})
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = ts.do(http.MethodGet, "/api/subscriptions?endpoint="+testEndpoint, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSubscriptionOwnership(t *testing.T) {
	ts := newTestServer(t)
	aliceTok, _ := ts.login("alice", model.RoleUser)
	bobTok, _ := ts.login("bob", model.RoleUser)
	adminTok, _ := ts.login("admin", model.RoleAdmin)

	code, _ := ts.do(http.MethodPut, "/api/subscriptions", aliceTok, gin.H{
		"endpoint": testEndpoint, "p256dh": "key", "auth": "secret",
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := ts.do(http.MethodGet, "/api/subscriptions?endpoint="+testEndpoint, bobTok, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["code"])

	code, _ = ts.do(http.MethodPut, "/api/subscriptions", bobTok, gin.H{
		"endpoint": testEndpoint, "p256dh": "key", "auth": "secret",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(http.MethodDelete, "/api/subscriptions", bobTok, gin.H{"endpoint": testEndpoint})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(http.MethodGet, "/api/subscriptions", aliceTok, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodDelete, "/api/subscriptions", adminTok, gin.H{"endpoint": testEndpoint})
	assert.Equal(t, http.StatusNoContent, code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(http.MethodGet, "/api/vapid_public_key", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BPublicKey", body["public_key"])

	h := NewHandler(ts.store, Services{}, nil)
	r := gin.New()
	r.GET("/vapid", h.GetVAPIDPublicKey)
	w := serve(r, http.MethodGet, "/vapid")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
