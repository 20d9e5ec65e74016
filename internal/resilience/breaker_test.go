package resilience

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	return New(cfg).WithClock(clk.Now), clk
}

func TestBreakerInitialState(t *testing.T) {
	b := New(Config{})
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() = %v, want nil", err)
	}
}

func TestBreakerTransitions(t *testing.T) {
	cfg := Config{Threshold: 2, ResetTimeout: time.Second, HalfOpenSuccesses: 2}

	tests := []struct {
		name  string
		steps func(b *Breaker, clk *fakeClock)
		want  State
	}{
		{"below threshold", func(b *Breaker, _ *fakeClock) { b.Failure() }, Closed},
		{"opens at threshold", func(b *Breaker, _ *fakeClock) { b.Failure(); b.Failure() }, Open},
		{"success resets count", func(b *Breaker, _ *fakeClock) { b.Failure(); b.Success(); b.Failure() }, Closed},
		{"half-open after timeout", func(b *Breaker, clk *fakeClock) {
			b.Failure()
			b.Failure()
			clk.Advance(2 * time.Second)
			_ = b.Allow()
		}, HalfOpen},
		{"closes after trial successes", func(b *Breaker, clk *fakeClock) {
			b.Failure()
			b.Failure()
			clk.Advance(2 * time.Second)
			_ = b.Allow()
			b.Success()
			b.Success()
		}, Closed},
		{"half-open failure reopens", func(b *Breaker, clk *fakeClock) {
			b.Failure()
			b.Failure()
			clk.Advance(2 * time.Second)
			_ = b.Allow()
			b.Failure()
		}, Open},
		{"reset", func(b *Breaker, _ *fakeClock) { b.Failure(); b.Failure(); b.Reset() }, Closed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clk := newTestBreaker(cfg)
			tt.steps(b, clk)
			if got := b.State(); got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBreakerRejectsUntilTimeout(t *testing.T) {
	b, clk := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 1})
	b.Failure()

	if err := b.Allow(); err != ErrOpen {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
	clk.Advance(500 * time.Millisecond)
	if err := b.Allow(); err != ErrOpen {
		t.Errorf("Allow() before timeout = %v, want ErrOpen", err)
	}
	clk.Advance(time.Second)
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after timeout = %v, want nil", err)
	}
}

func TestBreakerHook(t *testing.T) {
	b, clk := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 1})

	var got []string
	b.WithHook(func(from, to State) {
		// Must not deadlock: the hook runs outside the lock.
		_ = b.State()
		got = append(got, from.String()+">"+to.String())
	})

	b.Failure()
	clk.Advance(2 * time.Second)
	_ = b.Allow()
	b.Success()
	b.Reset()

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(got) != len(want) {
		t.Fatalf("hook calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hook[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Threshold != DefaultThreshold || cfg.ResetTimeout != DefaultResetTimeout || cfg.HalfOpenSuccesses != DefaultHalfOpenSuccesses {
		t.Errorf("withDefaults() = %+v", cfg)
	}
	d := DialogueConfig()
	if d.Threshold != DialogueThreshold || d.HalfOpenSuccesses != DialogueHalfOpenSuccesses {
		t.Errorf("DialogueConfig() = %+v", d)
	}
}

func TestBreakerConcurrent(t *testing.T) {
	b := New(Config{Threshold: 1000, ResetTimeout: time.Second, HalfOpenSuccesses: 1})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = b.Allow()
				b.Failure()
			}
		}()
	}
	wg.Wait()
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed (500 failures < 1000)", b.State())
	}
}
