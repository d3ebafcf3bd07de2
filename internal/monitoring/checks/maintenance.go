package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/mentorhub/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// Maintenance reports down when a job keeps failing and degraded when its last run is older
// than maxAge.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if tracker == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs yet"}
		}

		status := monitoring.StatusUp
		var problems []string
		now := time.Now()
		for _, job := range jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.StatusDown
				problems = append(problems, job.Job+": "+job.LastError)
				continue
			}
			if now.Sub(job.LastRunAt) > maxAge {
				if status == monitoring.StatusUp {
					status = monitoring.StatusDegraded
				}
				problems = append(problems, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
