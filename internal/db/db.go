package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nurpe/marketplace-settlement/internal/config"
)

func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	database, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{
		Logger:                 newGormLogger(log),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	if lifetime, err := time.ParseDuration(cfg.DB.ConnMaxLifetime); err == nil {
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	if cfg.DB.AutoMigrate {
		if err := runMigrations(database); err != nil {
			return nil, err
		}
		log.Info().Int("statements", len(migrationStatements)).Msg("migrations applied")
	}
	if cfg.DB.Seed {
		if err := Seed(context.Background(), database); err != nil {
			return nil, err
		}
		log.Info().Msg("reference data seeded")
	}

	return database, nil
}

// gormLogger forwards GORM diagnostics to zerolog. Slow queries and errors other
// than record-not-found are logged; successful statements only at trace level.
type gormLogger struct {
	log           zerolog.Logger
	slowThreshold time.Duration
}

func newGormLogger(log zerolog.Logger) gormlogger.Interface {
	return &gormLogger{log: log.With().Str("component", "gorm").Logger(), slowThreshold: 200 * time.Millisecond}
}

func (l *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.log.Info().Msgf(msg, args...)
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.log.Warn().Msgf(msg, args...)
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.log.Error().Msgf(msg, args...)
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && err != gorm.ErrRecordNotFound:
		sql, rows := fc()
		l.log.Debug().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > l.slowThreshold:
		sql, rows := fc()
		l.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	default:
		if l.log.GetLevel() <= zerolog.TraceLevel {
			sql, rows := fc()
			l.log.Trace().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
		}
	}
}
