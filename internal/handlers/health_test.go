package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/mentorhub/internal/handlers"
	"github.com/charlesng35/mentorhub/internal/handlers/testutil"
	"github.com/charlesng35/mentorhub/internal/monitoring"
)

func TestHealthEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		require.True(t, testutil.DecodeResponse(t, w).Success, path)
	}

	w := env.Request(http.MethodGet, "/health/ready", nil, "")
	var report monitoring.HealthReport
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &report)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Len(t, report.Checks, 1)
}

func TestHealthReadinessReportsDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("broken", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "unreachable"}
	}))
	handler := handlers.NewHealthHandler(manager, 0)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	handler.Readiness(c)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Success bool                    `json:"success"`
		Data    monitoring.HealthReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, monitoring.StatusDown, body.Data.Status)
}
