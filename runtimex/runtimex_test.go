package runtimex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.eggybyte.com/scf/configx"
	scferrors "go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/testingx"
	"go.eggybyte.com/scf/typex"
)

// mockService is a mock implementation of the Service interface.
type mockService struct {
	startCalled atomic.Bool
	stopCalled  atomic.Bool
	startErr    error
	stopErr     error
}

func (m *mockService) Start(ctx context.Context) error {
	m.startCalled.Store(true)
	return m.startErr
}

func (m *mockService) Stop(ctx context.Context) error {
	m.stopCalled.Store(true)
	return m.stopErr
}

func TestRun_RequiresLogger(t *testing.T) {
	err := Run(context.Background(), nil, Options{})
	if err == nil || err.Error() != "logger is required" {
		t.Errorf("Run() error = %v, want logger is required", err)
	}
}

func TestRun_RequiresMetricsHandler(t *testing.T) {
	err := Run(context.Background(), nil, Options{
		Logger:  testingx.NewMockLogger(t),
		Metrics: &Endpoint{Addr: "127.0.0.1:0"},
	})
	if err == nil {
		t.Fatal("Run() should reject a metrics endpoint without handler")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	logger := testingx.NewMockLogger(t)
	svc := &mockService{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Service{svc}, Options{Logger: logger, ShutdownTimeout: time.Second})
	}()

	testingx.Eventually(t, 5*time.Second, svc.startCalled.Load, "service started")
	cancel()

	select {
	case err := <-done:
		testingx.AssertNoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if !svc.stopCalled.Load() {
		t.Error("service should be stopped")
	}
	logger.AssertLogged("INFO", "runtime stopped")
}

func TestRun_StartFailure(t *testing.T) {
	svc := &mockService{startErr: errors.New("boom")}
	err := Run(context.Background(), []Service{svc}, Options{Logger: testingx.NewMockLogger(t)})
	if err == nil || !strings.Contains(err.Error(), "runtime start failed") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRun_StopFailure(t *testing.T) {
	svc := &mockService{stopErr: errors.New("stuck")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, []Service{svc}, Options{Logger: testingx.NewMockLogger(t)})
	if err == nil || !strings.Contains(err.Error(), "runtime stop failed") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestHealthHandler(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	handler := HealthHandler(
		HealthCheckerFunc("always", func(context.Context) error { return nil }),
		HealthCheckerFunc("sources", func(context.Context) error {
			if healthy.Load() {
				return nil
			}
			return errors.New("circuit open")
		}),
		nil,
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthy: %d %q", rec.Code, rec.Body.String())
	}

	healthy.Store(false)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sources: circuit open") {
		t.Errorf("unhealthy body = %q", rec.Body.String())
	}
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(ExecutorOptions{Workers: -1})
	testingx.AssertError(t, err, scferrors.CodeInvalidArgument)
	_, err = NewExecutor(ExecutorOptions{QueueSize: -1})
	testingx.AssertError(t, err, scferrors.CodeInvalidArgument)
}

func TestExecutor_InlineWhenStopped(t *testing.T) {
	exec, err := NewExecutor(ExecutorOptions{Logger: testingx.NewMockLogger(t)})
	testingx.AssertNoError(t, err)

	ran := false
	exec.Run(func() { ran = true })
	if !ran {
		t.Error("a stopped executor should run tasks on the caller")
	}
	exec.Run(nil)
}

func TestExecutor_Lifecycle(t *testing.T) {
	logger := testingx.NewMockLogger(t)
	exec, err := NewExecutor(ExecutorOptions{Workers: 2, QueueSize: 8, Logger: logger})
	testingx.AssertNoError(t, err)

	ctx := context.Background()
	testingx.AssertNoError(t, exec.Start(ctx))
	testingx.AssertError(t, exec.Start(ctx), scferrors.CodeInvalidArgument)
	if !exec.Running() {
		t.Fatal("executor should be running")
	}

	rec := testingx.NewRecorder[int]()
	exec.Run(func() { panic("task bug") })
	for i := 0; i < 20; i++ {
		i := i
		exec.Run(func() { rec.Record(i) })
	}

	testingx.AssertNoError(t, exec.Stop(ctx))
	if rec.Len() != 20 {
		t.Errorf("Stop should drain queued tasks, ran %d of 20", rec.Len())
	}
	logger.AssertLogged("ERROR", "task failed")

	ran := false
	exec.Run(func() { ran = true })
	if !ran {
		t.Error("tasks after Stop should run inline")
	}
	testingx.AssertNoError(t, exec.Stop(ctx))
	testingx.AssertNoError(t, exec.Start(ctx))
	testingx.AssertNoError(t, exec.Stop(ctx))
}

func TestExecutor_StartCancelled(t *testing.T) {
	exec, _ := NewExecutor(ExecutorOptions{Logger: testingx.NewMockLogger(t)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	testingx.AssertError(t, exec.Start(ctx), scferrors.CodeUnavailable)
}

func TestExecutor_StopTimeout(t *testing.T) {
	exec, _ := NewExecutor(ExecutorOptions{Workers: 1, Logger: testingx.NewMockLogger(t)})
	testingx.AssertNoError(t, exec.Start(context.Background()))

	release := make(chan struct{})
	started := make(chan struct{})
	exec.Run(func() {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	testingx.AssertError(t, exec.Stop(ctx), scferrors.CodeUnavailable)
	close(release)
}

func TestExecutor_AsManagerTaskExecutor(t *testing.T) {
	exec, _ := NewExecutor(ExecutorOptions{Workers: 2, Logger: testingx.NewMockLogger(t)})
	testingx.AssertNoError(t, exec.Start(context.Background()))
	t.Cleanup(func() { _ = exec.Stop(context.Background()) })

	mem := sourcex.NewMemorySource(sourcex.MustConfig("mem"), testingx.NewMockLogger(t))
	mem.Set("n", "1")
	m, err := configx.NewManager(configx.ManagerConfig{
		Name:         "async",
		Sources:      []configx.PrioritizedSource{{Priority: 1, Source: mem}},
		TaskExecutor: exec,
		Logger:       testingx.NewMockLogger(t),
	})
	testingx.AssertNoError(t, err)

	p, err := configx.GetProperty(m, configx.MustPropertyConfig(configx.PropertySpec[string, int]{
		Key:             "n",
		ValueConverters: []typex.Converter{typex.StringToInt},
	}))
	testingx.AssertNoError(t, err)

	events := testingx.NewRecorder[configx.ChangeEvent]()
	testingx.AssertNoError(t, m.AddChangeListener(events.Record))

	mem.Set("n", "2")
	if p.Value() != 2 {
		t.Errorf("value should be installed synchronously, got %d", p.Value())
	}
	if !events.WaitFor(1, 5*time.Second) {
		t.Fatal("manager listener was not notified through the executor")
	}
}
