// Package manager implements the Monitor Manager (C8), grounded on
// original_source/.../bl/poller/job_monitor_manager.py: it owns the three
// kind-specific monitors, starts/stops them together, and dispatches
// poll_once by Job kind. golang.org/x/sync's errgroup replaces the
// source's asyncio.gather for concurrent start, and singleflight collapses
// concurrent poll_once calls for the same job into one scheduler query.
package manager

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/pkg/monitor"
	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

// Store is the subset of pkg/store.Store the manager needs for poll_once
// dispatch.
type Store interface {
	JobByID(ctx context.Context, id string) (*store.Job, error)
}

// Status reports every monitor's run state, mirroring
// JobMonitorManager.get_status().
type Status struct {
	Running    bool
	Training   monitor.Status
	Inference  monitor.Status
	Evaluation monitor.Status
}

// Manager owns the three Kind-Specific Monitors as one unit.
type Manager struct {
	training   *monitor.Monitor
	inference  *monitor.Monitor
	evaluation *monitor.Monitor
	store      Store
	log        logr.Logger

	sf singleflight.Group

	mu      sync.Mutex
	running bool
}

// New builds a Manager over the three already-constructed monitors.
func New(training, inference, evaluation *monitor.Monitor, st Store, log logr.Logger) *Manager {
	return &Manager{training: training, inference: inference, evaluation: evaluation, store: st, log: log}
}

// Start launches all three monitors concurrently. If any fails to start,
// the ones that did start are stopped again before the error is returned
// (mirrors the source's all-or-nothing start semantics).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Info("manager already running")
		return nil
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { m.training.Start(gctx); return nil })
	g.Go(func() error { m.inference.Start(gctx); return nil })
	g.Go(func() error { m.evaluation.Start(gctx); return nil })

	if err := g.Wait(); err != nil {
		m.stopAll()
		return taxerrors.Wrap(taxerrors.KindInternal, err, "starting monitor manager")
	}

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	m.log.Info("monitor manager started")
	return nil
}

// Stop stops every running monitor concurrently.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		m.log.Info("manager not running")
		return
	}
	m.mu.Unlock()

	m.stopAll()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.log.Info("monitor manager stopped")
}

func (m *Manager) stopAll() {
	var wg sync.WaitGroup
	for _, mon := range []*monitor.Monitor{m.training, m.inference, m.evaluation} {
		if !mon.IsRunning() {
			continue
		}
		wg.Add(1)
		go func(mon *monitor.Monitor) {
			defer wg.Done()
			mon.Stop()
		}(mon)
	}
	wg.Wait()
}

// IsRunning reports whether the manager and at least one of its monitors is
// active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return running && (m.training.IsRunning() || m.inference.IsRunning() || m.evaluation.IsRunning())
}

// GetStatus reports every monitor's status.
func (m *Manager) GetStatus() Status {
	return Status{
		Running:    m.IsRunning(),
		Training:   m.training.GetStatus(),
		Inference:  m.inference.GetStatus(),
		Evaluation: m.evaluation.GetStatus(),
	}
}

// PollJobOnce dispatches a single-job poll to the monitor matching the
// job's kind, collapsing concurrent callers for the same jobID into one
// scheduler query via singleflight.
func (m *Manager) PollJobOnce(ctx context.Context, jobID string) (*scheduler.JobInfo, error) {
	v, err, _ := m.sf.Do(jobID, func() (interface{}, error) {
		job, err := m.store.JobByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		mon := m.monitorFor(job.Kind)
		if mon == nil {
			return nil, taxerrors.Newf(taxerrors.KindInternal, "no monitor registered for job kind %q", job.Kind)
		}
		return mon.PollJobOnce(ctx, *job)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*scheduler.JobInfo), nil
}

func (m *Manager) monitorFor(kind store.JobKind) *monitor.Monitor {
	switch kind {
	case store.KindTraining:
		return m.training
	case store.KindInference:
		return m.inference
	case store.KindEvaluation:
		return m.evaluation
	default:
		return nil
	}
}
