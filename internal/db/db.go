package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"planahead/internal/auth"
	"planahead/internal/jobs"
	"planahead/internal/place"
	"planahead/internal/plan"
)

const connectAttempts = 5

func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		err = sqlDB.PingContext(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
		}
		wait := time.Duration(attempt) * 200 * time.Millisecond
		logger.Warn("database ping failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	logger.Info("database connected")
	return gdb, nil
}

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&auth.User{},
		&auth.WhitelistEntry{},
		&place.Place{},
		&plan.Tag{},
		&plan.Plan{},
		&plan.PlanTag{},
		&jobs.Job{},
	}
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_plans_user_date on plans(user_id, date);`,
		`create index if not exists idx_plan_tags_tag on plan_tags(tag_id);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		`create index if not exists idx_jobs_plan_reminder on jobs(user_id, ((payload->>'plan_id')::bigint)) where type = 'PLAN_REMINDER';`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
