// Package lifecycle runs a process's start and stop hooks behind a small
// state machine and aggregates its health checks. The BFF uses it to warm
// the key cache on start, to close the Redis pool and HTTP server on stop,
// and to answer its readiness probe.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

const tracerName = "github.com/tallerpinturas/tallerpinturas-core/pkg/lifecycle"

// Hook runs during Start or Stop.
type Hook func(ctx context.Context) error

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// StateChangeHandler observes transitions. It runs with the state lock
// held and must not call back into the Service.
type StateChangeHandler func(old, new State)

type namedCheck struct {
	name  string
	check HealthCheck
}

// Info is a snapshot of a Service, shaped for a JSON status endpoint.
type Info struct {
	Name      string        `json:"name"`
	Version   string        `json:"version"`
	State     State         `json:"state"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
}

// Service is a process-level lifecycle. Build one with [NewBuilder]. It is
// safe for concurrent use.
type Service struct {
	name    string
	version string

	mu        sync.RWMutex
	state     State
	startedAt *time.Time

	tracer trace.Tracer
	logger *slog.Logger

	onStart       []Hook
	onStop        []Hook
	checks        []namedCheck
	stateHandlers []StateChangeHandler
}

func (s *Service) Name() string    { return s.name }
func (s *Service) Version() string { return s.version }

// State returns the current state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info returns a snapshot. StartedAt and Uptime are only set while running.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{Name: s.name, Version: s.version, State: s.state}
	if s.startedAt != nil && s.state == StateRunning {
		t := *s.startedAt
		info.StartedAt = &t
		info.Uptime = time.Since(t)
	}
	return info
}

func (s *Service) setState(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.state
	if !ValidTransition(old, next) {
		return sserr.Newf(sserr.CodeInternal,
			"lifecycle: invalid state transition from %q to %q", old, next)
	}
	s.state = next

	for _, h := range s.stateHandlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("lifecycle: state change handler panicked",
						"panic", r,
						"service", s.name,
						"old_state", string(old),
						"new_state", string(next),
					)
				}
			}()
			h(old, next)
		}()
	}
	return nil
}

// Start runs the start hooks in registration order and moves the service
// to running. The first failing hook leaves it failed.
func (s *Service) Start(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Start")
	defer func() { endSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeTimeout, "lifecycle: start canceled before execution")
	}
	if err := s.setState(StateStarting); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: starting", "service", s.name, "version", s.version)

	for _, hook := range s.onStart {
		if err := hook(ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: start hook failed", "service", s.name, "error", err)
			_ = s.setState(StateFailed)
			return sserr.Wrap(err, sserr.CodeInternal, "lifecycle: start hook failed")
		}
	}

	if err := s.setState(StateRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "lifecycle: started", "service", s.name)
	return nil
}

// Stop runs every stop hook in reverse registration order, even after one
// fails, and returns the first failure. Stopping a stopped or failed
// service is a no-op.
func (s *Service) Stop(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "lifecycle.Stop")
	defer func() { endSpan(span, err) }()

	if s.State().IsTerminal() {
		return nil
	}
	if err := s.setState(StateStopping); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: stopping", "service", s.name)

	var first error
	for i := len(s.onStop) - 1; i >= 0; i-- {
		if err := s.onStop[i](ctx); err != nil {
			s.logger.ErrorContext(ctx, "lifecycle: stop hook failed", "service", s.name, "error", err)
			if first == nil {
				first = err
			}
		}
	}

	s.mu.Lock()
	s.startedAt = nil
	s.mu.Unlock()

	if first != nil {
		_ = s.setState(StateFailed)
		return sserr.Wrap(first, sserr.CodeInternal, "lifecycle: stop hook failed")
	}
	if err := s.setState(StateStopped); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "lifecycle: stopped", "service", s.name)
	return nil
}

// Health returns nil when the service is running and every health check
// passes. A failing check is reported as an unavailable dependency with
// the check's name in the "check" detail.
func (s *Service) Health(ctx context.Context) error {
	if state := s.State(); state != StateRunning {
		return sserr.Newf(sserr.CodeUnavailable,
			"lifecycle: %s is not running, current state is %q", s.name, state)
	}
	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			return sserr.Wrapf(err, sserr.CodeUnavailableDependency,
				"lifecycle: health check %q failed", c.name).
				WithDetail("check", c.name)
		}
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.name", s.name),
			attribute.String("service.version", s.version),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// Builder assembles a Service.
//
//	svc, err := lifecycle.NewBuilder("bff", version).
//	    WithOnStart(warmKeys).
//	    WithOnStop(closeRedis).
//	    WithHealthCheck("redis", client.Health).
//	    Build()
type Builder struct {
	name          string
	version       string
	logger        *slog.Logger
	tracer        trace.Tracer
	onStart       []Hook
	onStop        []Hook
	checks        []namedCheck
	stateHandlers []StateChangeHandler
}

func NewBuilder(name, version string) *Builder {
	return &Builder{name: name, version: version}
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp.Tracer(tracerName)
	return b
}

// WithOnStart appends a start hook. Hooks run in the order added.
func (b *Builder) WithOnStart(h Hook) *Builder {
	b.onStart = append(b.onStart, h)
	return b
}

// WithOnStop appends a stop hook. Stop hooks run in reverse order, so
// resources acquired first are released last.
func (b *Builder) WithOnStop(h Hook) *Builder {
	b.onStop = append(b.onStop, h)
	return b
}

func (b *Builder) WithHealthCheck(name string, check HealthCheck) *Builder {
	b.checks = append(b.checks, namedCheck{name: name, check: check})
	return b
}

func (b *Builder) OnStateChange(h StateChangeHandler) *Builder {
	b.stateHandlers = append(b.stateHandlers, h)
	return b
}

// Build validates the builder and returns a Service in StateUnknown.
func (b *Builder) Build() (*Service, error) {
	if b.name == "" {
		return nil, sserr.New(sserr.CodeValidation, "lifecycle: service name must not be empty")
	}
	if b.version == "" {
		return nil, sserr.New(sserr.CodeValidation, "lifecycle: service version must not be empty")
	}
	for _, c := range b.checks {
		if c.name == "" || c.check == nil {
			return nil, sserr.New(sserr.CodeValidation, "lifecycle: health checks need a name and a function")
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		name:          b.name,
		version:       b.version,
		state:         StateUnknown,
		tracer:        tracer,
		logger:        logger,
		onStart:       append([]Hook(nil), b.onStart...),
		onStop:        append([]Hook(nil), b.onStop...),
		checks:        append([]namedCheck(nil), b.checks...),
		stateHandlers: append([]StateChangeHandler(nil), b.stateHandlers...),
	}, nil
}
