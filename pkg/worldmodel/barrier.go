package worldmodel

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// barrier is the one-shot game-start gate. open is closed when the game
// starts and replaced with a fresh channel when it ends.
type barrier struct {
	mu      sync.Mutex
	open    chan struct{}
	started bool
	session uuid.UUID
}

func (b *barrier) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = make(chan struct{})
	b.started = false
	b.session = uuid.Nil
}

// StartGame releases every loop waiting in WaitUntilGameBegins and starts a
// new session. Calling it again before EndGame is a no-op that returns the
// current session.
func (w *World) StartGame() uuid.UUID {
	b := &w.barrier
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return b.session
	}
	b.started = true
	b.session = uuid.New()
	close(b.open)
	w.logger.Info("game started", "session", b.session)
	return b.session
}

// EndGame ends the session: every command record is dropped and the barrier
// closes again for the next StartGame. Without a running game it does
// nothing.
func (w *World) EndGame() {
	b := &w.barrier
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	session := b.session
	b.open = make(chan struct{})
	b.started = false
	b.session = uuid.Nil
	b.mu.Unlock()

	w.clearCommands()
	w.logger.Info("game ended", "session", session)
}

// WaitUntilGameBegins blocks until StartGame is called. There is no timeout;
// ctx only lets a shutting-down loop stop waiting.
func (w *World) WaitUntilGameBegins(ctx context.Context) error {
	w.barrier.mu.Lock()
	open := w.barrier.open
	w.barrier.mu.Unlock()

	select {
	case <-open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GameStarted reports whether a session is running.
func (w *World) GameStarted() bool {
	w.barrier.mu.Lock()
	defer w.barrier.mu.Unlock()
	return w.barrier.started
}

// Session returns the id of the running session.
func (w *World) Session() (uuid.UUID, bool) {
	w.barrier.mu.Lock()
	defer w.barrier.mu.Unlock()
	return w.barrier.session, w.barrier.started
}
