package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/monitoring"
	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/pkg/logger"
	"github.com/charlesng35/mentorhub/pkg/metrics"
)

const (
	JobNotificationRetention = "notification_retention"
	JobActiveMentorships     = "active_mentorships"

	defaultRetention  = 30 * 24 * time.Hour
	defaultPruneSpec  = "@daily"
	defaultGaugeSpec  = "@every 5m"
	defaultJobTimeout = 2 * time.Minute
)

// Cleaner coordinates background maintenance: pruning read notifications past the retention
// window and resynchronising the active mentorship gauge with the database.
type Cleaner struct {
	db            *gorm.DB
	notifications *services.NotificationService
	connections   services.ConnectionLifecycle
	tracker       *monitoring.JobTracker
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger
	retention     time.Duration
	timeout       time.Duration

	pruneSchedule string
	gaugeSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetention adjusts how long read notifications are kept. Zero disables pruning.
func WithRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention >= 0 {
			cleaner.retention = retention
		}
	}
}

// WithPruneSchedule overrides the cron specification for notification pruning.
func WithPruneSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.pruneSchedule = spec
		}
	}
}

// WithGaugeSchedule overrides the cron specification for the gauge refresh.
func WithGaugeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.gaugeSchedule = spec
		}
	}
}

// WithTracker records every job run on tracker.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil notification service skips
// pruning and a nil db skips the gauge refresh.
func NewCleaner(db *gorm.DB, notifications *services.NotificationService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:            db,
		notifications: notifications,
		now:           time.Now,
		retention:     defaultRetention,
		timeout:       defaultJobTimeout,
		pruneSchedule: defaultPruneSpec,
		gaugeSchedule: defaultGaugeSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	cleaner.connections = services.NewConnectionLifecycle(cleaner.now)

	return cleaner
}

func (c *Cleaner) pruneEnabled() bool {
	return c.notifications != nil && c.retention > 0
}

// Start registers the enabled jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if !c.pruneEnabled() && c.db == nil {
		return nil
	}

	if c.pruneEnabled() {
		if _, err := c.cron.AddFunc(c.pruneSchedule, func() {
			c.runScheduled(JobNotificationRetention, c.pruneNotifications)
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.gaugeSchedule, func() {
			c.runScheduled(JobActiveMentorships, c.refreshGauge)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every enabled job sequentially and combines their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.pruneEnabled() {
		errs = multierr.Append(errs, c.run(ctx, JobNotificationRetention, c.pruneNotifications))
	}
	if c.db != nil {
		errs = multierr.Append(errs, c.run(ctx, JobActiveMentorships, c.refreshGauge))
	}
	return errs
}

func (c *Cleaner) runScheduled(job string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.run(ctx, job, fn); err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
	}
}

func (c *Cleaner) run(ctx context.Context, job string, fn func(context.Context) error) error {
	started := time.Now()
	err := fn(ctx)
	if c.tracker != nil {
		c.tracker.Record(job, err, time.Since(started))
	}
	return err
}

func (c *Cleaner) pruneNotifications(ctx context.Context) error {
	cutoff := c.now().Add(-c.retention)
	removed, err := c.notifications.PruneRead(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Info("pruned read notifications", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return nil
}

func (c *Cleaner) refreshGauge(ctx context.Context) error {
	_, err := RefreshActiveMentorships(ctx, c.db, c.connections)
	return err
}

// RefreshActiveMentorships sets the active mentorship gauge to the number of connections that
// currently hold a capacity slot and returns that number.
func RefreshActiveMentorships(ctx context.Context, db *gorm.DB, connections services.ConnectionLifecycle) (int64, error) {
	if db == nil {
		return 0, errors.New("refresh active mentorships: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	count, err := connections.CountActiveTotal(db.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	metrics.ActiveMentorships.Set(float64(count))
	return count, nil
}
