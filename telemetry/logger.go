package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for governance operations

func (l *Logger) LogEvaluationStart(ctx context.Context, connection string, dbType string, policies int) {
	l.WithContext(ctx).Info().
		Str("connection", connection).
		Str("db_type", dbType).
		Int("applicable_policies", policies).
		Msg("starting connection evaluation")
}

func (l *Logger) LogEvaluationComplete(ctx context.Context, connection string, findings, violations int) {
	l.WithContext(ctx).Info().
		Str("connection", connection).
		Int("findings", findings).
		Int("violations", violations).
		Msg("connection evaluation complete")
}

func (l *Logger) LogConnectorUnavailable(ctx context.Context, connection string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("connection", connection).
		Msg("connector unavailable, marking connection error")
}

func (l *Logger) LogStorageError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("storage operation failed")
}

func (l *Logger) LogViolationUpsert(ctx context.Context, fingerprint string, outcome string) {
	l.WithContext(ctx).Debug().
		Str("fingerprint", fingerprint).
		Str("outcome", outcome).
		Msg("violation upserted")
}
