package process

import (
	"context"
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) add(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *lineRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{
		Name:   "udevadm",
		Binary: "/usr/bin/udevadm",
		Args:   []string{"monitor"},
	})

	if m.config.Name != "udevadm" {
		t.Errorf("Name = %q, want %q", m.config.Name, "udevadm")
	}
	if m.config.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, 5*time.Second)
	}
	if m.config.MaxRestartDelay != 5*time.Minute {
		t.Errorf("MaxRestartDelay = %v, want %v", m.config.MaxRestartDelay, 5*time.Minute)
	}
	if m.config.StableThreshold != 2*time.Minute {
		t.Errorf("StableThreshold = %v, want %v", m.config.StableThreshold, 2*time.Minute)
	}
	if m.config.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, 10*time.Second)
	}
}

func TestNewManager_CustomConfig(t *testing.T) {
	m := NewManager(Config{
		Name:               "custom",
		Binary:             "/opt/bin/daemon",
		RestartDelay:       10 * time.Second,
		MaxRestartDelay:    10 * time.Minute,
		StableThreshold:    5 * time.Minute,
		GracefulTimeout:    30 * time.Second,
		MaxRestartAttempts: 20,
	})

	if m.config.RestartDelay != 10*time.Second {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, 10*time.Second)
	}
	if m.config.MaxRestartDelay != 10*time.Minute {
		t.Errorf("MaxRestartDelay = %v, want %v", m.config.MaxRestartDelay, 10*time.Minute)
	}
	if m.config.StableThreshold != 5*time.Minute {
		t.Errorf("StableThreshold = %v, want %v", m.config.StableThreshold, 5*time.Minute)
	}
	if m.config.MaxRestartAttempts != 20 {
		t.Errorf("MaxRestartAttempts = %d, want 20", m.config.MaxRestartAttempts)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("udevadm", "/usr/bin/udevadm", []string{"monitor"})

	if cfg.Binary != "/usr/bin/udevadm" {
		t.Errorf("Binary = %q, want %q", cfg.Binary, "/usr/bin/udevadm")
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "monitor" {
		t.Errorf("Args = %v, want [monitor]", cfg.Args)
	}
	if !cfg.RestartOnFailure {
		t.Error("RestartOnFailure = false, want true")
	}
	if cfg.MaxRestartAttempts != 10 {
		t.Errorf("MaxRestartAttempts = %d, want 10", cfg.MaxRestartAttempts)
	}
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Config{Name: "test", Binary: "/bin/true"})

	if m.Status() != StatusStopped {
		t.Errorf("initial Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if m.PID() != 0 {
		t.Errorf("PID() = %d, want 0", m.PID())
	}
	if m.Uptime() != 0 {
		t.Errorf("Uptime() = %v, want 0", m.Uptime())
	}
	if m.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", m.LastError())
	}

	stats := m.Stats()
	if stats.Name != "test" || stats.Status != StatusStopped || stats.LastError != "" {
		t.Errorf("Stats() = %+v, want stopped with no error", stats)
	}
}

func TestManager_StopWhenNotRunning(t *testing.T) {
	m := NewManager(Config{Name: "test", Binary: "/bin/true"})

	if err := m.Stop(); err != nil {
		t.Errorf("Stop() on stopped process error = %v, want nil", err)
	}
}

func TestManager_StartAlreadyRunning(t *testing.T) {
	m := NewManager(Config{
		Name:            "test",
		Binary:          "/bin/sleep",
		Args:            []string{"10"},
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	defer m.Stop()

	if err := m.Start(ctx); err == nil {
		t.Error("second Start() expected error, got nil")
	}
}

func TestManager_StartAndStop(t *testing.T) {
	stopped := make(chan error, 1)
	m := NewManager(Config{
		Name:            "test-sleep",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
		OnStop:          func(err error) { stopped <- err },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}
	if m.PID() == 0 {
		t.Error("PID() = 0 after Start()")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("OnStop(%v), want nil for requested stop", err)
		}
	case <-time.After(time.Second):
		t.Error("OnStop not called")
	}
}

func TestManager_StartWithInvalidBinary(t *testing.T) {
	m := NewManager(Config{Name: "bad-binary", Binary: "/nonexistent/binary"})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid binary expected error, got nil")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestManager_OnLine(t *testing.T) {
	rec := &lineRecorder{}
	m := NewManager(Config{
		Name:   "printer",
		Binary: "/bin/sh",
		Args:   []string{"-c", "printf 'KERNEL[1.0] change /devices/drm/card0 (drm)\\nUDEV [1.1] change /devices/drm/card0 (drm)\\n'"},
		OnLine: rec.add,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.all()) == 2 }) {
		t.Fatalf("lines = %q, want 2 lines", rec.all())
	}
	lines := rec.all()
	if lines[0] != "KERNEL[1.0] change /devices/drm/card0 (drm)" {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if !waitFor(t, 2*time.Second, func() bool { return m.Status() == StatusFailed }) {
		t.Errorf("Status() = %q after exit without restart, want %q", m.Status(), StatusFailed)
	}
}

func TestManager_RestartsUntilMaxAttempts(t *testing.T) {
	rec := &lineRecorder{}
	var mu sync.Mutex
	var attempts []int

	m := NewManager(Config{
		Name:               "flaky",
		Binary:             "/bin/sh",
		Args:               []string{"-c", "echo up; exit 1"},
		RestartOnFailure:   true,
		RestartDelay:       10 * time.Millisecond,
		MaxRestartDelay:    20 * time.Millisecond,
		StableThreshold:    time.Hour,
		MaxRestartAttempts: 2,
		OnLine:             rec.add,
		OnRestart: func(attempt int) {
			mu.Lock()
			attempts = append(attempts, attempt)
			mu.Unlock()
		},
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return m.RestartCount() == 3 }) {
		t.Fatalf("RestartCount() = %d, want 3", m.RestartCount())
	}
	if got := len(rec.all()); got != 3 {
		t.Errorf("process ran %d times, want 3", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRestart attempts = %v, want [1 2]", attempts)
	}
	if m.LastError() == nil {
		t.Error("LastError() = nil after failing exits")
	}
}

func TestManager_OnStartCallback(t *testing.T) {
	started := false
	m := NewManager(Config{
		Name:            "callback-test",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		OnStart:         func() { started = true },
		GracefulTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	if !started {
		t.Error("OnStart callback was not called")
	}
}

func TestCalculateBackoffDelay(t *testing.T) {
	m := NewManager(Config{
		Name:            "test",
		Binary:          "/bin/true",
		RestartDelay:    1 * time.Second,
		MaxRestartDelay: 30 * time.Second,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // capped
		{7, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := m.calculateBackoffDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

type testRecoverableError struct {
	recoverable bool
}

func (e *testRecoverableError) Error() string       { return "test error" }
func (e *testRecoverableError) IsRecoverable() bool { return e.recoverable }

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: true},
		{name: "plain error", err: context.DeadlineExceeded, want: true},
		{name: "recoverable", err: &testRecoverableError{recoverable: true}, want: true},
		{name: "not recoverable", err: &testRecoverableError{recoverable: false}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable() = %v, want %v", got, tt.want)
			}
		})
	}
}
