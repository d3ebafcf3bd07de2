package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlesng35/mentorhub/pkg/metrics"
)

// JobSummary reports the recent history of one maintenance job.
type JobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastError           string        `json:"last_error,omitempty"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastDuration        time.Duration `json:"last_duration"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	TotalRuns           uint64        `json:"total_runs"`
}

// JobTracker records maintenance job outcomes for health probes and metrics.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobSummary
	now  func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobSummary), now: time.Now}
}

// Record stores one run. A nil err counts as success.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	job = strings.TrimSpace(job)
	if job == "" {
		job = "unknown"
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}
	entry.LastStatus = result
	entry.LastRunAt = now
	entry.LastDuration = max(duration, 0)
	entry.TotalRuns++
	if err != nil {
		entry.LastError = err.Error()
		entry.ConsecutiveFailures++
		return
	}
	entry.LastError = ""
	entry.LastSuccessAt = now
	entry.ConsecutiveFailures = 0
}

// Snapshot returns job summaries sorted by name.
func (t *JobTracker) Snapshot() []JobSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, entry := range t.jobs {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
