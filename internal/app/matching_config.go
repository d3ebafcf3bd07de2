package app

import (
	"time"

	"github.com/charlesng35/mentorhub/internal/services"
)

// Limits converts MatchingConfig into engine input bounds.
func (c MatchingConfig) Limits() services.MatchingLimits {
	return services.MatchingLimits{
		MessageMin: c.MessageMin,
		MessageMax: c.MessageMax,
		ReasonMax:  c.ReasonMax,
	}
}

// Retention reports how long read notifications are kept. Zero disables pruning.
func (c NotificationConfig) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
