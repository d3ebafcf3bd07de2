package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// ConnectionHandler exposes mentorship connection APIs.
type ConnectionHandler struct {
	engine *services.MatchingEngine
}

// NewConnectionHandler constructs a handler using the provided engine.
func NewConnectionHandler(engine *services.MatchingEngine) *ConnectionHandler {
	return &ConnectionHandler{engine: engine}
}

type detachPayload struct {
	Reason *string `json:"reason"`
}

// List returns the caller's connections. Counterpart contact details are only included for
// active connections.
func (h *ConnectionHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.engine.ListConnections(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// Complete marks an active connection as completed and frees the mentor's slot.
func (h *ConnectionHandler) Complete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	dto, err := h.engine.CompleteConnection(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Detach ends an active connection. The JSON body with a reason is optional.
func (h *ConnectionHandler) Detach(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body detachPayload
	if c.Request != nil && c.Request.ContentLength != 0 {
		if !bindAndValidate(c, &body) {
			return
		}
	}

	dto, err := h.engine.DetachConnection(requestContext(c), userID, strings.TrimSpace(c.Param("id")), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
