package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil"
	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

func mustBuild(t *testing.T, b *Builder) *Service {
	t.Helper()
	svc, err := b.Build()
	require.NoError(t, err)
	return svc
}

func TestValidTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUnknown, StateStarting, true},
		{StateStarting, StateRunning, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateStopped, StateStarting, true},
		{StateFailed, StateStarting, true},
		{StateRunning, StateRunning, false},
		{StateUnknown, StateRunning, false},
		{StateStopped, StateRunning, false},
		{State("bogus"), StateStarting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, StateStopped.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
}

func TestBuilder_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewBuilder("", "1.0.0").Build()
	testutil.RequireErrorCode(t, err, sserr.CodeValidation)
	_, err = NewBuilder("bff", "").Build()
	testutil.RequireErrorCode(t, err, sserr.CodeValidation)
	_, err = NewBuilder("bff", "1.0.0").WithHealthCheck("", nil).Build()
	testutil.RequireErrorCode(t, err, sserr.CodeValidation)
}

func TestService_StartStop(t *testing.T) {
	t.Parallel()
	var order []string
	var transitions []string
	svc := mustBuild(t, NewBuilder("bff", "1.2.3").
		WithOnStart(func(context.Context) error { order = append(order, "start-a"); return nil }).
		WithOnStart(func(context.Context) error { order = append(order, "start-b"); return nil }).
		WithOnStop(func(context.Context) error { order = append(order, "stop-a"); return nil }).
		WithOnStop(func(context.Context) error { order = append(order, "stop-b"); return nil }).
		OnStateChange(func(old, new State) { transitions = append(transitions, old.String()+">"+new.String()) }))

	assert.Equal(t, "bff", svc.Name())
	assert.Equal(t, "1.2.3", svc.Version())
	assert.Equal(t, StateUnknown, svc.State())

	require.NoError(t, svc.Start(context.Background()))
	info := svc.Info()
	assert.Equal(t, StateRunning, info.State)
	require.NotNil(t, info.StartedAt)

	require.NoError(t, svc.Stop(context.Background()))
	assert.Equal(t, StateStopped, svc.State())
	assert.Nil(t, svc.Info().StartedAt)
	require.NoError(t, svc.Stop(context.Background()), "second stop is a no-op")

	assert.Equal(t, []string{"start-a", "start-b", "stop-b", "stop-a"}, order)
	assert.Equal(t, []string{
		"unknown>starting", "starting>running", "running>stopping", "stopping>stopped",
	}, transitions)
}

func TestService_StartHookFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	ran := false
	svc := mustBuild(t, NewBuilder("bff", "1").
		WithOnStart(func(context.Context) error { return boom }).
		WithOnStart(func(context.Context) error { ran = true; return nil }))

	err := svc.Start(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.Equal(t, StateFailed, svc.State())

	// A failed service can be started again.
	svc.onStart = nil
	require.NoError(t, svc.Start(context.Background()))
}

func TestService_StopRunsEveryHook(t *testing.T) {
	t.Parallel()
	boom := errors.New("close failed")
	closed := false
	svc := mustBuild(t, NewBuilder("bff", "1").
		WithOnStop(func(context.Context) error { closed = true; return nil }).
		WithOnStop(func(context.Context) error { return boom }))
	require.NoError(t, svc.Start(context.Background()))

	err := svc.Stop(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, closed)
	assert.Equal(t, StateFailed, svc.State())
}

func TestService_StartCanceled(t *testing.T) {
	t.Parallel()
	svc := mustBuild(t, NewBuilder("bff", "1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Start(ctx)
	assert.True(t, sserr.IsTimeout(err))
	assert.Equal(t, StateUnknown, svc.State())
}

func TestService_InvalidTransition(t *testing.T) {
	t.Parallel()
	svc := mustBuild(t, NewBuilder("bff", "1"))
	require.NoError(t, svc.Start(context.Background()))

	err := svc.Start(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeInternal)
	assert.Equal(t, StateRunning, svc.State())
}

func TestService_Health(t *testing.T) {
	t.Parallel()
	var redisErr error
	svc := mustBuild(t, NewBuilder("bff", "1").
		WithHealthCheck("jwks", func(context.Context) error { return nil }).
		WithHealthCheck("redis", func(context.Context) error { return redisErr }))

	err := svc.Health(context.Background())
	assert.True(t, sserr.IsUnavailable(err), "not running yet")

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Health(context.Background()))

	redisErr = errors.New("connection refused")
	err = svc.Health(context.Background())
	testutil.RequireErrorCode(t, err, sserr.CodeUnavailableDependency)
	ssErr, _ := sserr.AsError(err)
	assert.Equal(t, "redis", ssErr.Details["check"])
}

func TestService_HandlerPanicIsContained(t *testing.T) {
	t.Parallel()
	svc := mustBuild(t, NewBuilder("bff", "1").
		OnStateChange(func(State, State) { panic("handler bug") }))

	require.NotPanics(t, func() {
		require.NoError(t, svc.Start(context.Background()))
	})
	assert.Equal(t, StateRunning, svc.State())
}

func TestService_Spans(t *testing.T) {
	t.Parallel()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	svc := mustBuild(t, NewBuilder("bff", "1").WithTracerProvider(tp))

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop(context.Background()))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "lifecycle.Start", spans[0].Name())
	assert.Equal(t, "lifecycle.Stop", spans[1].Name())
}

func TestInfo_JSON(t *testing.T) {
	t.Parallel()
	svc := mustBuild(t, NewBuilder("bff", "1.0.0"))
	require.NoError(t, svc.Start(context.Background()))

	data, err := json.Marshal(svc.Info())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "bff", decoded["name"])
	assert.Equal(t, "running", decoded["state"])
	assert.Contains(t, decoded, "started_at")
}
