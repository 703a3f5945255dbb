// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryLockWhileHeld(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	s := m.SlotFor(testFingerprint(1, "p"))

	held, err := m.Lock(s)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if _, err := m.TryLock(s); !errors.Is(err, ErrLocked) {
		t.Errorf("TryLock() while held error = %v, want ErrLocked", err)
	}
	if err := held.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := held.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	again, err := m.TryLock(s)
	if err != nil {
		t.Fatalf("TryLock() after release error = %v", err)
	}
	if err := again.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestLockSerializesHolders(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	s := m.SlotFor(testFingerprint(1, "p"))

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk, err := m.Lock(s)
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			if err := lk.Release(); err != nil {
				t.Errorf("Release() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if overlap.Load() {
		t.Error("two holders were inside the lock at once")
	}
}

func TestLockRemoveRetriesOnFreshFile(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	s := m.SlotFor(testFingerprint(1, "p"))

	held, err := m.Lock(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := held.Remove(); err != nil {
		t.Skipf("lock file cannot be removed while open here: %v", err)
	}
	if err := held.Release(); err != nil {
		t.Fatal(err)
	}

	next, err := m.TryLock(s)
	if err != nil {
		t.Fatalf("TryLock() after remove error = %v", err)
	}
	defer func() { _ = next.Release() }()
	if _, err := os.Stat(s.LockPath()); err != nil {
		t.Errorf("lock file not recreated: %v", err)
	}
}
