package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// ProfileHandler exposes the caller's delivery preferences.
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler configures a profile handler.
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type notificationSettingsPayload struct {
	EmailEnabled *bool `json:"email_enabled" validate:"required"`
}

// NotificationSettings returns the caller's settings, defaulting to email enabled.
func (h *ProfileHandler) NotificationSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	settings, err := h.profiles.NotificationSettings(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, settings)
}

// UpdateNotificationSettings stores the caller's email preference.
func (h *ProfileHandler) UpdateNotificationSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body notificationSettingsPayload
	if !bindAndValidate(c, &body) {
		return
	}

	settings, err := h.profiles.UpdateNotificationSettings(requestContext(c), userID, *body.EmailEnabled)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, settings)
}
