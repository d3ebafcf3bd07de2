package realtime

// Named realtime streams.
const (
	// StreamNotifications carries in-app notification create/read/delete events.
	StreamNotifications = "notifications"
	// StreamMentorship carries request and connection lifecycle changes for participants.
	StreamMentorship = "mentorship"
)

// KnownStreams lists every stream a client may subscribe to.
func KnownStreams() map[string]struct{} {
	return map[string]struct{}{
		StreamNotifications: {},
		StreamMentorship:    {},
	}
}
