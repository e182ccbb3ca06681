package persist

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-swarm/internal/log"
)

// Writer saves snapshots on a background goroutine so the decision loop
// never blocks on disk. Only the latest pending snapshot is kept.
type Writer struct {
	store   Store
	timeout time.Duration

	mu      sync.Mutex
	pending *Snapshot
	wake    chan struct{}
	done    chan struct{}
	closed  bool

	saves  atomic.Uint64
	errors atomic.Uint64

	logger *slog.Logger
}

// NewWriter starts a writer for store.
func NewWriter(store Store) *Writer {
	w := &Writer{
		store:   store,
		timeout: 5 * time.Second,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  log.Component("persist"),
	}
	go w.run()
	return w
}

// Submit queues snap, replacing any snapshot not yet written. It never blocks.
func (w *Writer) Submit(snap Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = &snap
	select {
	case w.wake <- struct{}{}:
	default:
	}
	w.mu.Unlock()
}

// Saves returns how many snapshots were written.
func (w *Writer) Saves() uint64 {
	return w.saves.Load()
}

// Errors returns how many writes failed.
func (w *Writer) Errors() uint64 {
	return w.errors.Load()
}

// Close stops the goroutine after writing any pending snapshot, then
// writes final synchronously when it is non-nil.
func (w *Writer) Close(ctx context.Context, final *Snapshot) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.wake)
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if final == nil {
		return nil
	}
	if err := w.store.Save(ctx, *final); err != nil {
		w.errors.Add(1)
		return err
	}
	w.saves.Add(1)
	return nil
}

func (w *Writer) run() {
	defer close(w.done)
	for range w.wake {
		w.flush()
	}
	w.flush()
}

func (w *Writer) flush() {
	w.mu.Lock()
	snap := w.pending
	w.pending = nil
	w.mu.Unlock()
	if snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.store.Save(ctx, *snap); err != nil {
		w.errors.Add(1)
		w.logger.Error("save failed", "error", err, "learned", len(snap.Learned))
		return
	}
	w.saves.Add(1)
	w.logger.Debug("saved", "id", snap.ID, "learned", len(snap.Learned), "weights", len(snap.Weights))
}
