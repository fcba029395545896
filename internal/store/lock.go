// lock.go serializes state mutations per loop name. The lock is a simple
// in-process FIFO queue per key: each acquisition waits on the previous
// holder's release signal. It protects mutations reachable from
// asynchronous events against interleaving with each other and with
// commands; it does not protect against concurrent external processes.
package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agusx1211/loopd/internal/hexid"
)

// LockTTL is the age past which a held lock is considered stale. A stale
// lock may be force-released, but only with explicit operator confirmation.
const LockTTL = 10 * time.Minute

type lockTable struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	info  LockInfo
	queue []chan struct{} // waiters, FIFO
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[string]*lockEntry)}
}

// acquire blocks until the named lock is free. Waiters are served in
// arrival order; no fairness guarantee beyond FIFO.
func (t *lockTable) acquire(name, owner string) {
	t.mu.Lock()
	e, ok := t.held[name]
	if !ok {
		t.held[name] = &lockEntry{info: newLockInfo(owner)}
		t.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	e.queue = append(e.queue, ch)
	t.mu.Unlock()

	<-ch

	t.mu.Lock()
	if cur, ok := t.held[name]; ok {
		cur.info = newLockInfo(owner)
	}
	t.mu.Unlock()
}

// release hands the lock to the next waiter, or frees it.
func (t *lockTable) release(name string) {
	t.mu.Lock()
	e, ok := t.held[name]
	if !ok {
		t.mu.Unlock()
		return
	}
	if len(e.queue) == 0 {
		delete(t.held, name)
		t.mu.Unlock()
		return
	}
	next := e.queue[0]
	e.queue = e.queue[1:]
	t.mu.Unlock()
	close(next)
}

// holder returns the current holder's info, if the lock is held.
func (t *lockTable) holder(name string) (LockInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.held[name]
	if !ok {
		return LockInfo{}, false
	}
	return e.info, true
}

func newLockInfo(owner string) LockInfo {
	return LockInfo{Owner: owner, PID: os.Getpid(), CreatedAt: time.Now()}
}

// WithLock acquires the per-name lock, loads the state, lets fn mutate it in
// place, saves, and releases. The lock is released even when fn fails; the
// save is skipped in that case. Required for any mutation that crosses an
// asynchronous suspension point. Synchronous command handlers that never
// suspend mid-mutation may mutate without it.
func (s *Store) WithLock(name string, fn func(*LoopState) error) error {
	owner := hexid.New()
	s.locks.acquire(name, owner)
	defer s.locks.release(name)

	st, err := s.Load(name)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.Save(st)
}

// LockHolder reports the holder of a loop's lock, if any.
func (s *Store) LockHolder(name string) (LockInfo, bool) {
	return s.locks.holder(name)
}

// ForceUnlock force-releases a stale lock. The lock must be older than
// LockTTL, and confirm must be true; otherwise the call fails with an error
// naming the holder.
func (s *Store) ForceUnlock(name string, confirm bool) error {
	info, ok := s.locks.holder(name)
	if !ok {
		return nil
	}
	if info.Age() < LockTTL {
		return fmt.Errorf("lock on %q held by %s (pid %d) for %s; not stale",
			name, info.Owner, info.PID, info.Age().Round(time.Second))
	}
	if !confirm {
		return fmt.Errorf("lock on %q held by %s (pid %d) is stale; pass confirm to force release",
			name, info.Owner, info.PID)
	}
	s.locks.release(name)
	return nil
}
