package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/realtime"
	"github.com/charlesng35/mentorhub/pkg/errors"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// RealtimeHandler upgrades authenticated HTTP connections into WebSocket streams.
type RealtimeHandler struct {
	hub            *realtime.Hub
	allowedStreams map[string]struct{}
}

// NewRealtimeHandler constructs a realtime handler restricted to streams. With no streams the
// known mentorship streams are allowed.
func NewRealtimeHandler(hub *realtime.Hub, streams ...string) *RealtimeHandler {
	allowed := make(map[string]struct{}, len(streams))
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if stream == "" {
			continue
		}
		allowed[stream] = struct{}{}
	}
	if len(allowed) == 0 {
		allowed = realtime.KnownStreams()
	}

	return &RealtimeHandler{hub: hub, allowedStreams: allowed}
}

// Stream subscribes the caller to the requested streams, defaulting to notifications.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	streams := gatherStreams(c)
	if len(streams) == 0 {
		streams = []string{realtime.StreamNotifications}
	}

	for _, stream := range streams {
		if _, ok := h.allowedStreams[stream]; !ok {
			response.Error(c, errors.ErrNotFound.WithMessage(fmt.Sprintf("unknown stream %q", stream)))
			return
		}
	}

	h.hub.Serve(userID, streams, h.allowedStreams, c.Writer, c.Request)
}

func gatherStreams(c *gin.Context) []string {
	var streams []string

	if pathStream := normalizeStream(c.Param("stream")); pathStream != "" {
		streams = append(streams, pathStream)
	}

	for _, queryStream := range c.QueryArray("stream") {
		if normalized := normalizeStream(queryStream); normalized != "" {
			streams = append(streams, normalized)
		}
	}

	raw := c.Query("streams")
	if raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if normalized := normalizeStream(part); normalized != "" {
				streams = append(streams, normalized)
			}
		}
	}

	return uniqueStreams(streams)
}

func normalizeStream(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func uniqueStreams(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
