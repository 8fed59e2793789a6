package cancel

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSignalIdempotent(t *testing.T) {
	c := New()
	var fired int32
	c.OnCancel(func() { atomic.AddInt32(&fired, 1) })

	c.Signal()
	c.Signal()
	c.Signal()

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("listener fired %d times, want 1", got)
	}
	if !c.IsCancelled() {
		t.Fatal("expected IsCancelled after Signal")
	}
}

func TestDoneChannelCloses(t *testing.T) {
	c := New()
	select {
	case <-c.Done():
		t.Fatal("Done closed before Signal")
	default:
	}
	c.Signal()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Signal")
	}
}

func TestOnCancelAfterCancelledFiresImmediately(t *testing.T) {
	c := New()
	c.Signal()
	var fired bool
	remove := c.OnCancel(func() { fired = true })
	if !fired {
		t.Fatal("listener registered after cancellation did not fire immediately")
	}
	remove() // must be a safe no-op
}

func TestRemoveListener(t *testing.T) {
	c := New()
	var fired int32
	remove := c.OnCancel(func() { atomic.AddInt32(&fired, 1) })
	remove()
	remove() // idempotent
	c.Signal()
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("removed listener fired %d times, want 0", got)
	}
}

func TestForceCancelEscalates(t *testing.T) {
	c := New()
	var fired int32
	c.OnCancel(func() { atomic.AddInt32(&fired, 1) })
	c.ForceCancel()
	if !c.IsCancelled() {
		t.Fatal("ForceCancel did not set the latch")
	}
	if !c.Forced() {
		t.Fatal("ForceCancel did not mark the run as force-cancelled")
	}
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("listener fired %d times, want 1", got)
	}
}

func TestConcurrentSignal(t *testing.T) {
	c := New()
	var fired int32
	for i := 0; i < 8; i++ {
		c.OnCancel(func() { atomic.AddInt32(&fired, 1) })
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Signal()
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&fired); got != 8 {
		t.Fatalf("listeners fired %d times total, want 8", got)
	}
}
