package pool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAction(t *testing.T) {
	p := New(1, 1, time.Second, nil)
	var ran atomic.Bool
	done := make(chan struct{})
	if err := p.Submit(func() {
		ran.Store(true)
		close(done)
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	if !ran.Load() {
		t.Fatal("job did not run")
	}
	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestPoolRunsMultipleActions(t *testing.T) {
	p := New(2, 2, time.Second, nil)
	defer p.Shutdown(time.Second)

	var counter atomic.Int64
	const n = 100
	for i := 0; i < n; i++ {
		if err := p.Submit(func() { counter.Add(1) }); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for counter.Load() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := counter.Load(); got != n {
		t.Fatalf("completed %d jobs, want %d", got, n)
	}
}

func TestPoolExpandsAboveFloor(t *testing.T) {
	p := New(1, 4, time.Second, nil)
	defer p.Shutdown(time.Second)

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		if err := p.Submit(func() {
			started <- struct{}{}
			<-release
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	for i := 0; i < 4; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("not all jobs started, pool did not expand")
		}
	}

	stats := p.Stats()
	if stats.Alive != 4 {
		t.Fatalf("alive = %d, want 4", stats.Alive)
	}
	if stats.Alive < stats.Min || stats.Alive > stats.Max {
		t.Fatalf("invariant violated: %+v", stats)
	}
	if stats.Active > stats.Alive {
		t.Fatalf("invariant violated: %+v", stats)
	}
	close(release)
}

func TestPoolReapsIdleWorkersAboveFloor(t *testing.T) {
	p := New(1, 2, 20*time.Millisecond, nil)
	defer p.Shutdown(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	done := make(chan struct{})
	if err := p.Submit(func() { close(done) }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-done
	close(release)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Stats().Alive == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pool did not reap back to floor: %+v", p.Stats())
}

func TestBoundedPoolReturnsBusy(t *testing.T) {
	p := NewBounded(1, 1, time.Second, 1, nil)
	defer p.Shutdown(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	// Fill the one queue slot.
	if err := p.Submit(func() {}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := p.Submit(func() {}); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
}

func TestSubmitAfterShutdownReturnsShuttingDown(t *testing.T) {
	p := New(1, 1, time.Second, nil)
	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := p.Submit(func() {}); err != ErrShuttingDown {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
	if err := p.Shutdown(time.Second); err != ErrAlreadyShutdown {
		t.Fatalf("expected ErrAlreadyShutdown, got %v", err)
	}
}
