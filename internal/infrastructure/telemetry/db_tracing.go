package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // Include bound variables in spans; never in production
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type queryStartKey struct{}

type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterDBTracing installs the otelgorm plugin plus callbacks that flag
// slow statements and record errors on the active span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSpan(tx, cfg.SlowQueryThresh) }

	// After-hooks run ahead of otelgorm's own after-hook, which ends the span
	cb := db.Callback()
	hooks := []struct {
		register gormRegister
		name     string
		fn       func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "before_create", before},
		{cb.Query().Before("gorm:query"), "before_query", before},
		{cb.Update().Before("gorm:update"), "before_update", before},
		{cb.Delete().Before("gorm:delete"), "before_delete", before},
		{cb.Row().Before("gorm:row"), "before_row", before},
		{cb.Raw().Before("gorm:raw"), "before_raw", before},
		{cb.Create().After("gorm:create").Before("otel:after:create"), "after_create", after},
		{cb.Query().After("gorm:query").Before("otel:after:query"), "after_query", after},
		{cb.Update().After("gorm:update").Before("otel:after:update"), "after_update", after},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), "after_delete", after},
		{cb.Row().After("gorm:row").Before("otel:after:row"), "after_row", after},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), "after_raw", after},
	}
	for _, h := range hooks {
		if err := h.register.Register("souq_timing:"+h.name, h.fn); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func annotateSpan(tx *gorm.DB, slowThreshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))

	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}

	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > slowThreshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
