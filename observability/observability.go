package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ranganaths/swarmctl/config"
)

// Stack bundles the orchestrator's logger, tracer, and metrics collector so
// the facade constructor takes one value instead of three. There is no
// package-level singleton here (see Collector's doc comment): the caller
// owns the Stack and passes it explicitly into every component.
type Stack struct {
	Logger  Logger
	Tracer  *Tracer
	Metrics *Collector
}

// New builds a Stack from the loaded configuration.
func New(cfg *config.Config) (*Stack, error) {
	output := os.Stdout
	if cfg.Observability.Logging.Output == "stderr" {
		output = os.Stderr
	}
	logger := NewLogger(&LoggerConfig{
		Level:      LogLevel(cfg.App.LogLevel),
		JSONOutput: cfg.Observability.Logging.Format == "json",
		Output:     output,
		WithCaller: true,
	})

	tracer, err := NewTracer(TracingConfig{
		Enabled:       cfg.Observability.Tracing.Enabled,
		ServiceName:   cfg.Observability.Tracing.ServiceName,
		Environment:   cfg.App.Env,
		SamplingRatio: cfg.Observability.Tracing.SamplingRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}

	metrics := NewCollector(&MetricsConfig{
		Enabled: cfg.Observability.Metrics.Enabled,
		Port:    cfg.Observability.Metrics.Port,
		Path:    cfg.Observability.Metrics.Path,
	})

	return &Stack{Logger: logger, Tracer: tracer, Metrics: metrics}, nil
}

// Close shuts down the parts of the stack that hold resources (the tracer's exporter).
func (s *Stack) Close(ctx context.Context) error {
	if err := s.Tracer.Close(ctx); err != nil {
		s.Logger.Error("failed to shut down tracer", Err(err))
		return err
	}
	return nil
}

// ObservePhase wraps one orchestrator pipeline phase with a span, a log pair, and a duration metric.
func (s *Stack) ObservePhase(ctx context.Context, commanderID, phase string, fn func(ctx context.Context) error) error {
	ctx, span := s.Tracer.StartPhaseSpan(ctx, commanderID, phase)
	defer span.End()

	logger := s.Logger.WithContext(ctx)
	logger.Info("phase started", String("phase", phase))

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		logger.Error("phase failed", String("phase", phase), Duration("duration", duration), Err(err))
		s.Tracer.RecordError(span, err, "phase_error")
	} else {
		logger.Info("phase completed", String("phase", phase), Duration("duration", duration))
	}

	return err
}
