package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// RequestHandler exposes the mentorship request endpoints.
type RequestHandler struct {
	engine *services.MatchingEngine
}

// NewRequestHandler constructs a request handler backed by the matching engine.
func NewRequestHandler(engine *services.MatchingEngine) *RequestHandler {
	return &RequestHandler{engine: engine}
}

type createRequestPayload struct {
	MentorID string `json:"mentor_id" validate:"required,notblank"`
	Message  string `json:"message"`
}

// Create sends a mentorship request from the calling mentee.
func (h *RequestHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body createRequestPayload
	if !bindAndValidate(c, &body) {
		return
	}

	dto, err := h.engine.CreateRequest(requestContext(c), userID, services.CreateRequestInput{
		MentorID: strings.TrimSpace(body.MentorID),
		Message:  body.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// Incoming lists requests addressed to the calling mentor.
func (h *RequestHandler) Incoming(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.engine.ListIncoming(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// Outgoing lists requests sent by the calling mentee.
func (h *RequestHandler) Outgoing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.engine.ListOutgoing(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// Accept accepts a request and returns the mentee's contact details. Repeating the call on an
// accepted request returns the same result.
func (h *RequestHandler) Accept(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	result, err := h.engine.AcceptRequest(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Reject declines a pending request.
func (h *RequestHandler) Reject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	dto, err := h.engine.RejectRequest(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
