package recorder

import (
	"sync"
	"sync/atomic"
)

// PauseGate is the pause/resume/stop rendezvous shared by the workers and
// the controller of one session.
//
// paused and stopped only change under mu. The atomic mirrors let workers
// poll without the lock; a poll may lag by one transition.
type PauseGate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool

	pausedSnap  atomic.Bool
	stoppedSnap atomic.Bool
}

func NewPauseGate() *PauseGate {
	g := &PauseGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Pause makes workers stop writing. It wakes no one: running workers notice
// at their next check.
func (g *PauseGate) Pause() {
	g.mu.Lock()
	g.paused = true
	g.pausedSnap.Store(true)
	g.mu.Unlock()
}

// Resume clears the pause and wakes every blocked worker.
func (g *PauseGate) Resume() {
	g.mu.Lock()
	g.paused = false
	g.pausedSnap.Store(false)
	g.mu.Unlock()
	g.cond.Broadcast()
}

// RequestStop sets stopped. Workers blocked on a pause are woken so they can
// observe it.
func (g *PauseGate) RequestStop() {
	g.mu.Lock()
	g.stopped = true
	g.stoppedSnap.Store(true)
	wasPaused := g.paused
	g.mu.Unlock()
	if wasPaused {
		g.cond.Broadcast()
	}
}

// Stopped is a lock-free snapshot of the stop flag.
func (g *PauseGate) Stopped() bool {
	return g.stoppedSnap.Load()
}

// Paused is a lock-free snapshot of the pause flag.
func (g *PauseGate) Paused() bool {
	return g.pausedSnap.Load()
}

// WaitWhilePaused blocks until the gate is not paused or a stop was
// requested. It returns false when the caller should exit.
func (g *PauseGate) WaitWhilePaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused && !g.stopped {
		g.cond.Wait()
	}
	return !g.stopped
}

// WriteIfRunning runs write with the gate locked unless the gate is paused.
// The pause check and the write form one critical section, so no write
// starts while paused and writes from different workers never overlap.
func (g *PauseGate) WriteIfRunning(write func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return false, nil
	}
	return true, write()
}
