package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database returns a readiness probe that pings the configured database handle.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}

	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ResultFromError("database", errors.New("database not configured"), time.Since(start))
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return monitoring.ResultFromError("database", sqlDB.PingContext(probeCtx), time.Since(start))
	})
}
