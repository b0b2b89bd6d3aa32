package vm

import "testing"

func TestLockReleaseIsIdempotent(t *testing.T) {
	sem := NewSemaphore("character-1")
	l := sem.Acquire()
	l.Release()
	l.Release()
	if sem.Counter() != 0 || l.Held() {
		t.Errorf("counter %d held %v", sem.Counter(), l.Held())
	}

	var nilLock *Lock
	nilLock.Release()
	if nilLock.Held() || nilLock.Clone() != nil {
		t.Error("nil lock should behave as released")
	}
}

func TestForceReleaseOutlivesHandles(t *testing.T) {
	sem := NewSemaphore("game")
	a := sem.Acquire()
	b := a.Clone()
	if sem.Counter() != 2 {
		t.Fatalf("counter = %d, want 2", sem.Counter())
	}
	sem.ForceRelease()
	sem.ForceRelease()
	if !sem.IsReleased() {
		t.Fatal("ForceRelease did not release")
	}

	c, ok := sem.TryAcquire()
	if !ok {
		t.Fatal("TryAcquire failed on a released semaphore")
	}
	a.Release()
	b.Release()
	if sem.Counter() != 1 {
		t.Errorf("stale handles drove the counter to %d", sem.Counter())
	}
	c.Release()
	if sem.Counter() != 0 {
		t.Errorf("counter went negative: %d", sem.Counter())
	}
}

func TestTryAcquire(t *testing.T) {
	sem := NewSemaphore("character-2")
	l, ok := sem.TryAcquire()
	if !ok || !l.Held() {
		t.Fatal("first TryAcquire should succeed")
	}
	if _, ok := sem.TryAcquire(); ok {
		t.Error("second TryAcquire should fail")
	}
}

func TestLocksRegistry(t *testing.T) {
	locks := NewLocks()
	if got := locks.SemaphoreFor(CharacterNone).Name(); got != "game" {
		t.Errorf("game semaphore name = %q", got)
	}
	one := locks.SemaphoreFor(1)
	if one.Name() != "character-1" || locks.SemaphoreFor(1) != one {
		t.Error("SemaphoreFor should return one semaphore per character")
	}
	if locks.SemaphoreByName("character-1") != one {
		t.Error("SemaphoreByName did not find character-1")
	}
	if s := locks.SemaphoreByName("character-3"); s == nil || s != locks.SemaphoreFor(3) {
		t.Error("SemaphoreByName should create character semaphores on demand")
	}
	if locks.SemaphoreByName("bogus") != nil {
		t.Error("unknown names should not resolve")
	}

	one.Acquire()
	locks.SemaphoreFor(CharacterNone).Acquire()
	locks.ReleaseAll()
	if !one.IsReleased() || !locks.SemaphoreFor(CharacterNone).IsReleased() {
		t.Error("ReleaseAll left a semaphore held")
	}
}
