package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/api"
	"agrolink/api/internal/auth"
	"agrolink/api/internal/config"
	"agrolink/api/internal/models"
)

const routerSecret = "router-test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JwtSecret:           routerSecret,
		AllowedOrigins:      []string{"https://app.agrolink.example.com"},
		RateLimitBucketSize: 100,
		RateLimitRefillRate: 100,
	}
	return api.SetupRouter(cfg, api.Services{})
}

func serve(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRouter_Ping(t *testing.T) {
	r := newRouter()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	w, _ := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newRouter()

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/contracts"},
		{http.MethodPost, "/api/v1/contracts/request"},
		{http.MethodPost, "/api/v1/payments/create"},
		{http.MethodGet, "/api/v1/notifications"},
		{http.MethodGet, "/api/v1/chat/unread"},
		{http.MethodPost, "/api/v1/auth/changePassword"},
	} {
		req, _ := http.NewRequest(route.method, route.path, nil)
		w, body := serve(r, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
		assert.Equal(t, false, body["success"], route.path)
		assert.Equal(t, "Authorization header required", body["message"], route.path)
	}
}

func TestRouter_AdminRoutesRejectNonAdmins(t *testing.T) {
	r := newRouter()

	token, err := auth.GenerateJWT(primitive.NewObjectID(), models.RoleCustomer, routerSecret, time.Hour)
	require.NoError(t, err)

	for _, route := range []struct{ method, path string }{
		{http.MethodPut, "/api/v1/payments/" + primitive.NewObjectID().Hex() + "/disburse"},
		{http.MethodPost, "/api/v1/notifications"},
		{http.MethodPut, "/api/v1/admin/email-templates/otp_code"},
		{http.MethodGet, "/api/v1/admin/payments"},
	} {
		req, _ := http.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w, body := serve(r, req)

		assert.Equal(t, http.StatusForbidden, w.Code, route.path)
		assert.Equal(t, "Administrator privileges required", body["message"], route.path)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newRouter()

	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/contracts", nil)
	req.Header.Set("Origin", "https://app.agrolink.example.com")
	w, _ := serve(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.agrolink.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_NoWebsocketWithoutHub(t *testing.T) {
	r := newRouter()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	w, _ := serve(r, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
