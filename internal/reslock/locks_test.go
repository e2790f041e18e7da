package reslock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_BasicLockUnlock(t *testing.T) {
	mgr := New()

	mgr.Lock("scene-0.png")
	mgr.Unlock("scene-0.png")

	mgr.Lock("scene-0.png")
	mgr.Unlock("scene-0.png")
}

func TestManager_SamePathBlocks(t *testing.T) {
	mgr := New()
	orderChan := make(chan int, 2)

	go func() {
		mgr.Lock("scene-0.png")
		orderChan <- 1
		time.Sleep(50 * time.Millisecond)
		mgr.Unlock("scene-0.png")
	}()

	time.Sleep(10 * time.Millisecond)

	go func() {
		mgr.Lock("scene-0.png")
		orderChan <- 2
		mgr.Unlock("scene-0.png")
	}()

	first := <-orderChan
	second := <-orderChan

	if first != 1 || second != 2 {
		t.Errorf("expected order [1, 2], got [%d, %d]", first, second)
	}
}

func TestManager_DifferentPathsConcurrent(t *testing.T) {
	mgr := New()
	var wg sync.WaitGroup
	var aLocked, bLocked atomic.Bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		mgr.Lock("a.png")
		aLocked.Store(true)
		time.Sleep(20 * time.Millisecond)
		mgr.Unlock("a.png")
	}()
	go func() {
		defer wg.Done()
		mgr.Lock("b.png")
		bLocked.Store(true)
		time.Sleep(20 * time.Millisecond)
		mgr.Unlock("b.png")
	}()

	time.Sleep(10 * time.Millisecond)
	if !aLocked.Load() || !bLocked.Load() {
		t.Error("both goroutines should have acquired their locks concurrently")
	}
	wg.Wait()
}

func TestManager_LockAllOrderingPreventsDeadlock(t *testing.T) {
	mgr := New()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		mgr.LockAll([]string{"b.png", "a.png"})
		time.Sleep(10 * time.Millisecond)
		mgr.UnlockAll([]string{"b.png", "a.png"})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		mgr.LockAll([]string{"a.png", "b.png"})
		time.Sleep(10 * time.Millisecond)
		mgr.UnlockAll([]string{"a.png", "b.png"})
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deadlock detected: LockAll did not prevent deadlock through ordering")
	}
}

func TestManager_UnlockAllReleasesAll(t *testing.T) {
	mgr := New()
	paths := []string{"a.png", "b.png", "c.png"}
	mgr.LockAll(paths)
	mgr.UnlockAll(paths)

	acquired := make(chan bool, 1)
	go func() {
		mgr.LockAll(paths)
		acquired <- true
		mgr.UnlockAll(paths)
	}()

	select {
	case <-acquired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("locks were not fully released by UnlockAll")
	}
}

func TestManager_EmptyKeys(t *testing.T) {
	mgr := New()
	mgr.LockAll([]string{})
	mgr.UnlockAll([]string{})
}
