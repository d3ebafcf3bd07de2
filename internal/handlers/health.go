package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/monitoring"
	"github.com/charlesng35/mentorhub/pkg/response"
)

const defaultHealthTimeout = 3 * time.Second

// HealthHandler renders liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
	timeout time.Duration
}

// NewHealthHandler constructs a health handler. A nil manager reports every probe as up.
func NewHealthHandler(manager *monitoring.HealthManager, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &HealthHandler{manager: manager, timeout: timeout}
}

// Health returns a simple status payload.
func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": monitoring.StatusUp})
}

// Liveness evaluates the liveness checks.
func (h *HealthHandler) Liveness(c *gin.Context) {
	h.render(c, func(ctx context.Context) monitoring.HealthReport {
		return h.manager.EvaluateLiveness(ctx)
	})
}

// Readiness evaluates the readiness checks.
func (h *HealthHandler) Readiness(c *gin.Context) {
	h.render(c, func(ctx context.Context) monitoring.HealthReport {
		return h.manager.EvaluateReadiness(ctx)
	})
}

func (h *HealthHandler) render(c *gin.Context, evaluate func(context.Context) monitoring.HealthReport) {
	if h.manager == nil {
		response.Success(c, http.StatusOK, gin.H{"status": monitoring.StatusUp})
		return
	}

	ctx, cancel := context.WithTimeout(requestContext(c), h.timeout)
	defer cancel()

	report := evaluate(ctx)
	status := http.StatusOK
	if report.Status == monitoring.StatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response.Response{Success: report.Status != monitoring.StatusDown, Data: report})
}
