package api

import (
	"sync"
	"testing"
)

func TestUserLocks_ReleasedAfterUse(t *testing.T) {
	l := newUserLocks()

	unlock := l.lock("u1")
	if got := l.size(); got != 1 {
		t.Fatalf("size() while held = %d, want 1", got)
	}
	unlock()
	if got := l.size(); got != 0 {
		t.Errorf("size() after release = %d, want 0", got)
	}
}

func TestUserLocks_SerialisesOneUser(t *testing.T) {
	l := newUserLocks()

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("u1")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if got := l.size(); got != 0 {
		t.Errorf("size() = %d, want 0", got)
	}
}

func TestUserLocks_ManyUsersDoNotAccumulate(t *testing.T) {
	l := newUserLocks()
	for _, id := range []string{"a", "b", "c", "d"} {
		l.lock(id)()
	}
	if got := l.size(); got != 0 {
		t.Errorf("size() = %d, want 0", got)
	}
}
