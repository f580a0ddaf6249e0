// Package monitor implements the Monitor Base (C6) and the three
// Kind-Specific Monitors (C7), grounded on
// original_source/.../bl/poller/base_job_monitor.py and its
// training/prediction/evaluation subclasses. Go's goroutine+ticker model
// replaces the source's asyncio task; a Handler supplies the one piece of
// behavior that actually differs per kind — the transactional side effect
// of a terminal transition.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/internal/notify"
	"github.com/eliadvertman/segctl/pkg/metrics"
	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

// SchedulerClient is the subset of pkg/scheduler.Client a monitor needs.
type SchedulerClient interface {
	Info(ctx context.Context, externalID string) (scheduler.JobInfo, bool, error)
}

// Handler supplies the kind-specific transactional side effect of a Job's
// terminal or intermediate transition. ApplyTransition runs inside the same
// transaction as the Job row's own update.
type Handler interface {
	Kind() store.JobKind
	ApplyTransition(ctx context.Context, tx store.Tx, job store.Job, next store.JobStatus, info scheduler.JobInfo) error
}

// Status reports a monitor's run state (spec §4.8, mirrors the source's
// BaseJobMonitor.get_status()).
type Status struct {
	JobType      store.JobKind
	IsRunning    bool
	PollInterval time.Duration
}

// Monitor polls every active Job of one kind and applies scheduler-observed
// transitions, one kind-specific Handler at a time.
type Monitor struct {
	handler   Handler
	store     store.Store
	scheduler SchedulerClient
	notifier  *notify.Notifier
	metrics   *metrics.Recorder
	log       logr.Logger

	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Monitor for handler.Kind(). notifier and m may be nil.
func New(handler Handler, st store.Store, sched SchedulerClient, notifier *notify.Notifier, m *metrics.Recorder, log logr.Logger, interval time.Duration) *Monitor {
	return &Monitor{
		handler:   handler,
		store:     st,
		scheduler: sched,
		notifier:  notifier,
		metrics:   m,
		log:       log.WithValues("jobKind", handler.Kind()),
		interval:  interval,
	}
}

// Start launches the poll loop. Calling Start twice without an intervening
// Stop is a no-op (spec §4.6: idempotent start), matching the source's
// "already running" guard.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.log.Info("monitor already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(loopCtx)
	m.log.Info("monitor started", "pollInterval", m.interval)
}

// Stop signals the loop to exit and waits for it, up to 5 seconds
// (mirroring the source's asyncio.wait_for(..., timeout=5.0)). The signal is
// the cancellation of the loop's context, so an in-flight tick sees its
// context cancelled at once; it gets no grace period before cancellation.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.log.Info("monitor not running")
		return
	}
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.log.Info("monitor stop timed out")
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.log.Info("monitor stopped")
}

// IsRunning reports whether the poll loop is currently active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetStatus returns the monitor's current run state.
func (m *Monitor) GetStatus() Status {
	return Status{JobType: m.handler.Kind(), IsRunning: m.IsRunning(), PollInterval: m.interval}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	m.log.Info("poll loop started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.pollActiveJobs(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("poll loop cancelled")
			return
		case <-ticker.C:
			m.pollActiveJobs(ctx)
		}
	}
}

// pollActiveJobs fetches every active Job of this monitor's kind, filters
// to states worth scheduler-polling (spec §4.2 ShouldMonitor), and applies
// each one's observed transition. A single job's failure never stops the
// rest (spec §4.6 fault isolation).
func (m *Monitor) pollActiveJobs(ctx context.Context) {
	if m.metrics != nil {
		m.metrics.Ticks.WithLabelValues(string(m.handler.Kind())).Inc()
	}

	jobs, err := m.store.ActiveJobs(ctx)
	if err != nil {
		if taxerrors.KindOf(err) == taxerrors.KindUnavailable {
			jobs, err = m.reconnectAndRetry(ctx)
		}
		if err != nil {
			m.log.Error(err, "failed to list active jobs")
			return
		}
	}

	monitorable := make([]store.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Kind != m.handler.Kind() {
			continue
		}
		if scheduler.ShouldMonitor(scheduler.Status(j.Status)) {
			monitorable = append(monitorable, j)
		}
	}
	if len(monitorable) == 0 {
		return
	}
	m.log.V(1).Info("polling monitorable jobs", "count", len(monitorable))

	for _, job := range monitorable {
		if err := m.updateJobStatus(ctx, job); err != nil {
			m.log.Error(err, "failed to update job", "jobID", job.ID, "externalID", job.ExternalID)
		}
	}
}

// reconnectAndRetry implements spec §4.6 step 1 and §8 scenario 6: an
// Unavailable error from the tick's first store call triggers exactly one
// reconnect attempt, then one retry of the failed call. A second failure is
// returned to the caller, which logs it and waits for the next tick rather
// than retrying further.
func (m *Monitor) reconnectAndRetry(ctx context.Context) ([]store.Job, error) {
	m.log.Info("store unavailable, attempting one reconnect")
	if m.metrics != nil {
		m.metrics.Reconnects.Inc()
	}
	if err := m.store.Reconnect(ctx); err != nil {
		return nil, taxerrors.Wrap(taxerrors.KindUnavailable, err, "reconnect failed")
	}
	return m.store.ActiveJobs(ctx)
}

// PollJobOnce polls a single job's current scheduler state without
// committing any update, for the Monitor Manager's poll_once dispatch
// (spec §4.8).
func (m *Monitor) PollJobOnce(ctx context.Context, job store.Job) (*scheduler.JobInfo, error) {
	info, found, err := m.scheduler.Info(ctx, job.ExternalID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

func (m *Monitor) updateJobStatus(ctx context.Context, job store.Job) error {
	info, found, err := m.scheduler.Info(ctx, job.ExternalID)
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "querying scheduler")
	}
	if !found {
		m.log.Info("no scheduler info for job", "jobID", job.ID, "externalID", job.ExternalID)
		return nil
	}

	currentStatus := scheduler.Status(job.Status)
	newStatus := info.InternalStatus
	if !scheduler.IsValidTransition(currentStatus, newStatus) {
		m.log.Error(nil, "invalid state transition, skipping", "jobID", job.ID, "from", currentStatus, "to", newStatus)
		return nil
	}

	nextStatus := store.JobStatus(newStatus)
	statusChanged := job.Status != nextStatus
	timestampsNeedUpdate := (info.StartTime != nil && job.StartTime == nil) || (info.EndTime != nil && job.EndTime == nil)
	if !statusChanged && !timestampsNeedUpdate {
		return nil
	}

	err = m.store.Atomic(ctx, func(tx store.Tx) error {
		ju := store.JobUpdate{}
		if statusChanged {
			ju.Status = &nextStatus
		}
		if info.StartTime != nil && job.StartTime == nil {
			ju.StartTime = info.StartTime
		}
		if info.EndTime != nil && job.EndTime == nil {
			ju.EndTime = info.EndTime
		}
		if nextStatus == store.JobFailed && info.ErrorMessage != "" {
			em := info.ErrorMessage
			ju.ErrorMessage = &em
		}
		if _, err := tx.UpdateJob(ctx, job.ID, ju); err != nil {
			return err
		}
		return m.handler.ApplyTransition(ctx, tx, job, nextStatus, info)
	})
	if err != nil {
		return err
	}

	if statusChanged {
		reason := scheduler.TransitionReason(currentStatus, newStatus, info)
		m.log.Info("job transitioned", "jobID", job.ID, "from", currentStatus, "to", newStatus, "reason", reason)
		if m.metrics != nil {
			m.metrics.Transitions.WithLabelValues(string(m.handler.Kind()), string(currentStatus), string(newStatus)).Inc()
		}
		if nextStatus == store.JobFailed {
			m.notifier.NotifyFailure(ctx, string(m.handler.Kind()), job.ID, job.ExternalID, info.ErrorMessage)
		}
	}
	return nil
}
