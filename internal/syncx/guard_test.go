package syncx

import (
	"sync"
	"testing"
)

func TestGuardGet(t *testing.T) {
	g := NewGuard(42)
	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
}

func TestGuardSwap(t *testing.T) {
	g := NewGuard("hello")

	old := g.Swap("world")
	if old != "hello" {
		t.Errorf("Swap returned %q, want %q", old, "hello")
	}
	if got := g.Get(); got != "world" {
		t.Errorf("Get() after Swap = %q, want %q", got, "world")
	}
}

func TestGuardLoadRevision(t *testing.T) {
	g := NewGuard(0)

	if v, rev := g.Load(); v != 0 || rev != 0 {
		t.Errorf("Load() = (%d, %d), want (0, 0)", v, rev)
	}
	for i := 1; i <= 3; i++ {
		g.Swap(i * 10)
	}
	if v, rev := g.Load(); v != 30 || rev != 3 {
		t.Errorf("Load() = (%d, %d), want (30, 3)", v, rev)
	}
}

func TestView(t *testing.T) {
	type settings struct {
		name    string
		enabled bool
	}
	g := NewGuard(settings{name: "bot", enabled: true})

	if !View(g, func(s settings) bool { return s.enabled }) {
		t.Error("View() = false, want true")
	}
	if got := View(g, func(s settings) int { return len(s.name) }); got != 3 {
		t.Errorf("View() = %d, want 3", got)
	}
}

func TestGuardConcurrent(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			g.Swap(n)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = g.Load()
			_ = View(g, func(v int) bool { return v >= 0 })
		}()
	}
	wg.Wait()

	if _, rev := g.Load(); rev != 100 {
		t.Errorf("revision = %d, want 100", rev)
	}
}
