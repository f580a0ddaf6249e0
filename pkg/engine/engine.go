// Package engine implements the Engine Host (C9): it runs the Monitor
// Manager in an execution context separate from request handling, enforces
// the single-leader assumption (spec §5) via a Redis lock before starting,
// and reports combined health. No direct teacher/source file is a close
// analogue for this wiring layer (closest is the source's Flask app startup
// in service/main/app.py, which has no leader-election concept at all since
// the Python deployment assumed a single process).
package engine

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/go-logr/logr"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/internal/leaderlock"
)

// Manager is the subset of pkg/manager.Manager the Host drives.
type Manager interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// Status reports the Host's combined health, consulted by the health
// endpoint (spec §4.9: "healthy iff manager + DB are both healthy").
type Status struct {
	Leader         bool
	ManagerRunning bool
	DatabaseOK     bool
}

// Healthy reports overall health: leader, manager running, and DB reachable.
func (s Status) Healthy() bool { return s.Leader && s.ManagerRunning && s.DatabaseOK }

// Host runs the Manager in a context separate from the HTTP request path.
type Host struct {
	manager Manager
	lock    *leaderlock.Lock
	db      *sql.DB
	log     logr.Logger

	renewInterval time.Duration

	mu        sync.Mutex
	running   bool
	isLeader  bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds a Host. renewInterval should be well under the lock's TTL (the
// caller picks it; a third of the TTL is a reasonable default) so a missed
// renewal cycle or two doesn't cost leadership.
func New(manager Manager, lock *leaderlock.Lock, db *sql.DB, log logr.Logger, renewInterval time.Duration) *Host {
	return &Host{manager: manager, lock: lock, db: db, log: log, renewInterval: renewInterval}
}

// Start acquires the leader lock and starts the Manager. It is idempotent:
// a second call while already running logs and returns nil. Failing to
// acquire the lock is a clean startup failure (KindConflict), not a panic or
// a retry loop — the operator is expected to investigate a stuck leader.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.log.Info("engine host already running")
		return nil
	}
	h.mu.Unlock()

	if err := h.lock.Acquire(ctx); err != nil {
		return taxerrors.Wrap(taxerrors.KindConflict, err, "acquiring leader lock")
	}

	if err := h.manager.Start(ctx); err != nil {
		if relErr := h.lock.Release(ctx); relErr != nil {
			h.log.Error(relErr, "releasing leader lock after failed manager start")
		}
		return taxerrors.Wrap(taxerrors.KindInternal, err, "starting monitor manager")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.running = true
	h.isLeader = true
	h.cancel = cancel
	h.done = make(chan struct{})
	h.mu.Unlock()

	go h.renewLoop(loopCtx)

	h.log.Info("engine host started")
	return nil
}

// renewLoop periodically refreshes the leader lease. If renewal ever fails
// (another host took over, or Redis is unreachable), the host surfaces the
// unexpected stop by logging and tearing down the manager — it never
// auto-restarts (spec §4.9).
func (h *Host) renewLoop(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.lock.Renew(context.Background()); err != nil {
				h.log.Error(err, "lost leader lock, stopping manager without restart")
				h.manager.Stop()
				h.mu.Lock()
				h.isLeader = false
				h.running = false
				h.mu.Unlock()
				return
			}
		}
	}
}

// Stop stops the renew loop and the Manager, then releases the lock. It is
// idempotent: stopping an already-stopped Host is a no-op.
func (h *Host) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		h.log.Info("engine host not running")
		return
	}
	cancel := h.cancel
	done := h.done
	h.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.log.Info("engine host stop timed out waiting for renew loop")
	}

	h.manager.Stop()
	if err := h.lock.Release(context.Background()); err != nil {
		h.log.Error(err, "releasing leader lock on stop")
	}

	h.mu.Lock()
	h.running = false
	h.isLeader = false
	h.mu.Unlock()
	h.log.Info("engine host stopped")
}

// Status reports whether this host is leader, whether the manager is
// running, and whether the database is reachable.
func (h *Host) Status(ctx context.Context) Status {
	h.mu.Lock()
	isLeader := h.isLeader
	h.mu.Unlock()

	dbOK := h.db != nil && h.db.PingContext(ctx) == nil
	return Status{
		Leader:         isLeader,
		ManagerRunning: h.manager.IsRunning(),
		DatabaseOK:     dbOK,
	}
}
