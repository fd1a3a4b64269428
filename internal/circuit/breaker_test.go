package circuit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold uint32) (*CircuitBreaker, *testClock) {
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := Config{FailureThreshold: threshold, Timeout: 10 * time.Second, now: clock.Now}
	return NewCircuitBreaker("www.example.com", cfg), clock
}

var (
	unavailable = errors.NewError(errors.ErrCodeHTTPStatus, "503 Service Unavailable").WithRetryable(true)
	notFound    = errors.NewError(errors.ErrCodeHTTPStatus, "404 Not Found").WithRetryable(false)
)

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func ok(context.Context) error { return nil }

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", Config{})

	if cb.Name() != "test" {
		t.Errorf("name = %q, want %q", cb.Name(), "test")
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want %v", cb.State(), StateClosed)
	}
	if cb.config.FailureThreshold != 5 {
		t.Errorf("default FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.MaxRequests != 1 {
		t.Errorf("default MaxRequests = %d, want 1", cb.config.MaxRequests)
	}
	if cb.config.Timeout != 30*time.Second {
		t.Errorf("default Timeout = %v, want 30s", cb.config.Timeout)
	}
}

func TestDefaultIsSuccessful(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"server error", unavailable, false},
		{"timeout", errors.NewError(errors.ErrCodeConnectionTimeout, "timeout"), false},
		{"client error", notFound, true},
		{"canceled", context.Canceled, true},
		{"plain error", fmt.Errorf("parse"), true},
	}

	for _, tt := range tests {
		if got := defaultIsSuccessful(tt.err); got != tt.want {
			t.Errorf("%s: defaultIsSuccessful() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(3)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(unavailable))
	_ = cb.Execute(ctx, fail(unavailable))
	_ = cb.Execute(ctx, ok) // resets the streak
	_ = cb.Execute(ctx, fail(unavailable))
	_ = cb.Execute(ctx, fail(unavailable))
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want CLOSED after interrupted streak", cb.State())
	}

	_ = cb.Execute(ctx, fail(unavailable))
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Error("open breaker should not call fn")
	}
	if !errors.HasCode(err, errors.ErrCodeCircuitOpen) {
		t.Errorf("err = %v, want CIRCUIT_OPEN", err)
	}
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(2)
	for i := 0; i < 5; i++ {
		if err := cb.Execute(context.Background(), fail(notFound)); err != notFound {
			t.Fatalf("Execute() = %v, want passthrough of fn error", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want CLOSED", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	var transitions []string
	cb, clock := newTestBreaker(1)
	cb.config.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(unavailable))
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}

	clock.Advance(10 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want HALF_OPEN after timeout", cb.State())
	}

	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want CLOSED after successful probe", cb.State())
	}

	want := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if fmt.Sprint(transitions) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(unavailable))
	clock.Advance(10 * time.Second)

	_ = cb.Execute(ctx, fail(unavailable))
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want OPEN after failed probe", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()

	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(unavailable))
	clock.Advance(10 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.Execute(ctx, ok)
	if !errors.HasCode(err, errors.ErrCodeCircuitOpen) {
		t.Errorf("second probe err = %v, want CIRCUIT_OPEN", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first probe err = %v", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb, _ := newTestBreaker(1)
	_ = cb.Execute(context.Background(), fail(unavailable))

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want CLOSED", cb.State())
	}
	if cb.Counts() != (Counts{}) {
		t.Errorf("counts = %+v, want zero", cb.Counts())
	}
}

func TestManager_PerHostBreakers(t *testing.T) {
	t.Parallel()

	m := NewManager(Config{FailureThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = m.Execute(ctx, "down.example.com", fail(unavailable))

	if err := m.Execute(ctx, "up.example.com", ok); err != nil {
		t.Errorf("healthy host rejected: %v", err)
	}
	if err := m.Execute(ctx, "down.example.com", ok); !errors.HasCode(err, errors.ErrCodeCircuitOpen) {
		t.Errorf("failing host err = %v, want CIRCUIT_OPEN", err)
	}
	if m.Breaker("up.example.com") != m.Breaker("up.example.com") {
		t.Error("Breaker() should return the same instance per host")
	}

	stats := m.Stats()
	if len(stats) != 2 || stats[0].Name != "down.example.com" || stats[0].State != "OPEN" {
		t.Errorf("Stats() = %+v", stats)
	}

	m.ResetAll()
	if m.Breaker("down.example.com").State() != StateClosed {
		t.Error("ResetAll() should close every breaker")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			host := fmt.Sprintf("host-%d", i%5)
			_ = m.Execute(context.Background(), host, ok)
		}(i)
	}
	wg.Wait()

	if got := len(m.Stats()); got != 5 {
		t.Errorf("len(Stats()) = %d, want 5", got)
	}
}
