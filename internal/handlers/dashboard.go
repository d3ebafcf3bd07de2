package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// DashboardHandler serves the per-role mentorship summary.
type DashboardHandler struct {
	engine *services.MatchingEngine
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(engine *services.MatchingEngine) *DashboardHandler {
	return &DashboardHandler{engine: engine}
}

// Get returns the caller's dashboard.
func (h *DashboardHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	dto, err := h.engine.Dashboard(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
