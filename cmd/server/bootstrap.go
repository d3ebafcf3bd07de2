package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/api"
	"github.com/charlesng35/mentorhub/internal/app"
	"github.com/charlesng35/mentorhub/internal/app/maintenance"
	iauth "github.com/charlesng35/mentorhub/internal/auth"
	"github.com/charlesng35/mentorhub/internal/database"
	"github.com/charlesng35/mentorhub/internal/monitoring"
	"github.com/charlesng35/mentorhub/internal/monitoring/checks"
	"github.com/charlesng35/mentorhub/internal/notifications"
	"github.com/charlesng35/mentorhub/internal/realtime"
	"github.com/charlesng35/mentorhub/internal/services"
	"github.com/charlesng35/mentorhub/internal/tracing"
	"github.com/charlesng35/mentorhub/pkg/logger"
	"github.com/charlesng35/mentorhub/pkg/mail"
)

const maintenanceStaleAfter = 26 * time.Hour

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB            *gorm.DB
	Hub           *realtime.Hub
	Profiles      *services.ProfileService
	Notifications *services.NotificationService
	Dispatcher    *services.NotificationDispatcher
	Engine        *services.MatchingEngine
	Tracker       *monitoring.JobTracker
	Health        *monitoring.HealthManager
	Cleaner       *maintenance.Cleaner
	Router        *gin.Engine

	shutdownTracing tracing.ShutdownFunc
}

// bootstrapRuntime initialises tracing, the database, the mentorship services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.shutdownTracing, err = tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initialise tracing: %w", err)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Hub = realtime.NewHub()

	stack.Profiles, err = services.NewProfileService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise profile service: %w", err)
	}

	stack.Notifications, err = services.NewNotificationService(stack.DB, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	engineOpts := []services.MatchingOption{services.WithMatchingLimits(cfg.Matching.Limits())}
	if cfg.Notifications.Enabled {
		stack.Dispatcher, err = newDispatcher(cfg, stack, log)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, services.WithEventDispatcher(stack.Dispatcher))
	} else {
		log.Info("lifecycle notifications disabled")
	}

	stack.Engine, err = services.NewMatchingEngine(stack.DB, stack.Profiles, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise matching engine: %w", err)
	}

	stack.Tracker = monitoring.NewJobTracker()
	stack.Health = monitoring.NewHealthManager()
	stack.Health.RegisterReadiness(checks.Database(stack.DB, cfg.Monitoring.Health.Timeout))
	stack.Health.RegisterReadiness(checks.Maintenance(stack.Tracker, maintenanceStaleAfter))

	retention := cfg.Notifications.Retention()
	if !cfg.Notifications.Enabled {
		retention = 0
	}
	stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Notifications,
		maintenance.WithRetention(retention),
		maintenance.WithPruneSchedule(cfg.Notifications.CleanupSchedule),
		maintenance.WithGaugeSchedule(cfg.Notifications.GaugeSchedule),
		maintenance.WithTracker(stack.Tracker),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:            stack.DB,
		JWT:           jwtSvc,
		Config:        cfg,
		Engine:        stack.Engine,
		Profiles:      stack.Profiles,
		Notifications: stack.Notifications,
		Hub:           stack.Hub,
		Health:        stack.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// newDispatcher wires in-app, realtime and (when SMTP is enabled) email delivery of lifecycle events.
func newDispatcher(cfg *app.Config, stack *runtimeStack, log *zap.Logger) (*services.NotificationDispatcher, error) {
	opts := []services.DispatcherOption{
		services.WithDispatchHub(stack.Hub),
		services.WithDispatchBaseURL(cfg.Matching.PublicURL),
		services.WithDispatchTimeout(cfg.Matching.DispatchTimeout),
	}

	smtp := cfg.Email.SMTPSettings()
	if smtp.Enabled {
		mailer, err := mail.NewSMTPMailer(smtp)
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		sender, err := notifications.NewEmailSender(mailer, "MentorHub")
		if err != nil {
			return nil, fmt.Errorf("initialise email sender: %w", err)
		}
		opts = append(opts, services.WithDispatchEmail(sender))
		log.Info("email notifications enabled", zap.String("host", smtp.Host))
	}

	dispatcher, err := services.NewNotificationDispatcher(stack.Profiles, stack.Notifications, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise notification dispatcher: %w", err)
	}
	return dispatcher, nil
}

// Shutdown stops background jobs, drains pending notifications and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Dispatcher != nil {
		s.Dispatcher.Wait()
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("prepare database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}
