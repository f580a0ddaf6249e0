package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/pkg/metrics"
	"github.com/eliadvertman/segctl/pkg/monitor"
	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

func TestMonitor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Monitor Suite")
}

type fakeScheduler struct {
	infoByExternalID map[string]scheduler.JobInfo
}

func (f *fakeScheduler) Info(ctx context.Context, externalID string) (scheduler.JobInfo, bool, error) {
	info, ok := f.infoByExternalID[externalID]
	return info, ok, nil
}

// fakeStore implements store.Store with in-memory maps, enough to drive
// the poll loop end to end without a real database.
type fakeStore struct {
	jobs      map[string]store.Job
	trainings map[string]store.Training // keyed by job ID
	models    map[string]store.Model    // keyed by training ID

	// activeJobsErr, if set, is returned once by the next ActiveJobs call
	// and then cleared, simulating a single transient outage.
	activeJobsErr  error
	reconnectErr   error
	reconnectCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:      map[string]store.Job{},
		trainings: map[string]store.Training{},
		models:    map[string]store.Model{},
	}
}

func (f *fakeStore) ActiveJobs(ctx context.Context) ([]store.Job, error) {
	if f.activeJobsErr != nil {
		err := f.activeJobsErr
		f.activeJobsErr = nil
		return nil, err
	}
	var out []store.Job
	for _, j := range f.jobs {
		if !j.Status.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeStore) Reconnect(ctx context.Context) error {
	f.reconnectCalls++
	return f.reconnectErr
}

func (f *fakeStore) ListTrainings(ctx context.Context, limit, offset int) ([]store.Training, error) {
	return nil, nil
}
func (f *fakeStore) ListInferences(ctx context.Context, limit, offset int) ([]store.Inference, error) {
	return nil, nil
}
func (f *fakeStore) ListEvaluations(ctx context.Context, limit, offset int) ([]store.Evaluation, error) {
	return nil, nil
}

func (f *fakeStore) JobByID(ctx context.Context, id string) (*store.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}
func (f *fakeStore) JobByExternalID(ctx context.Context, externalID string) (*store.Job, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) TrainingByJobID(ctx context.Context, jobID string) (*store.Training, error) {
	t, ok := f.trainings[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}
func (f *fakeStore) InferenceByJobID(ctx context.Context, jobID string) (*store.Inference, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) EvaluationByJobID(ctx context.Context, jobID string) (*store.Evaluation, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) ModelByTrainingID(ctx context.Context, trainingID string) (*store.Model, error) {
	m, ok := f.models[trainingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}
func (f *fakeStore) ModelByID(ctx context.Context, id string) (*store.Model, error) { return nil, store.ErrNotFound }

func (f *fakeStore) CreateTrainingJob(ctx context.Context, job store.Job, training store.Training) (*store.Job, *store.Training, error) {
	return nil, nil, nil
}
func (f *fakeStore) CreateInferenceJob(ctx context.Context, job store.Job, inference store.Inference) (*store.Job, *store.Inference, error) {
	return nil, nil, nil
}
func (f *fakeStore) CreateEvaluationJob(ctx context.Context, job store.Job, evaluation store.Evaluation) (*store.Job, *store.Evaluation, error) {
	return nil, nil, nil
}

func (f *fakeStore) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(&fakeTx{store: f})
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) InsertJob(ctx context.Context, job store.Job) (*store.Job, error) { return nil, nil }
func (t *fakeTx) UpdateJob(ctx context.Context, id string, u store.JobUpdate) (*store.Job, error) {
	j := t.store.jobs[id]
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.StartTime != nil {
		j.StartTime = u.StartTime
	}
	if u.EndTime != nil {
		j.EndTime = u.EndTime
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = u.ErrorMessage
	}
	t.store.jobs[id] = j
	return &j, nil
}
func (t *fakeTx) InsertTraining(ctx context.Context, tr store.Training) (*store.Training, error) {
	return nil, nil
}
func (t *fakeTx) UpdateTraining(ctx context.Context, id string, u store.TrainingUpdate) (*store.Training, error) {
	for jobID, tr := range t.store.trainings {
		if tr.ID == id {
			if u.Status != nil {
				tr.Status = *u.Status
			}
			if u.EndTime != nil {
				tr.EndTime = u.EndTime
			}
			if u.ErrorMessage != nil {
				tr.ErrorMessage = u.ErrorMessage
			}
			t.store.trainings[jobID] = tr
			return &tr, nil
		}
	}
	return nil, store.ErrNotFound
}
func (t *fakeTx) InsertInference(ctx context.Context, i store.Inference) (*store.Inference, error) {
	return nil, nil
}
func (t *fakeTx) UpdateInference(ctx context.Context, id string, u store.InferenceUpdate) (*store.Inference, error) {
	return nil, nil
}
func (t *fakeTx) InsertEvaluation(ctx context.Context, e store.Evaluation) (*store.Evaluation, error) {
	return nil, nil
}
func (t *fakeTx) UpdateEvaluation(ctx context.Context, id string, u store.EvaluationUpdate) (*store.Evaluation, error) {
	return nil, nil
}
func (t *fakeTx) ModelExistsForTraining(ctx context.Context, trainingID string) (bool, error) {
	_, ok := t.store.models[trainingID]
	return ok, nil
}
func (t *fakeTx) InsertModel(ctx context.Context, m store.Model) (*store.Model, error) {
	t.store.models[m.TrainingID] = m
	return &m, nil
}
func (t *fakeTx) TrainingByJobID(ctx context.Context, jobID string) (*store.Training, error) {
	tr, ok := t.store.trainings[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tr, nil
}
func (t *fakeTx) InferenceByJobID(ctx context.Context, jobID string) (*store.Inference, error) {
	return nil, store.ErrNotFound
}
func (t *fakeTx) EvaluationByJobID(ctx context.Context, jobID string) (*store.Evaluation, error) {
	return nil, store.ErrNotFound
}

var _ = Describe("Monitor", func() {
	It("moves a completed training job to TRAINED and derives a Model", func() {
		st := newFakeStore()
		st.jobs["job-1"] = store.Job{ID: "job-1", ExternalID: "111", Kind: store.KindTraining, Status: store.JobRunning}
		st.trainings["job-1"] = store.Training{ID: "training-1", JobID: "job-1", Name: "seg-A", Status: store.TrainingInProgress}

		now := time.Now()
		sched := &fakeScheduler{infoByExternalID: map[string]scheduler.JobInfo{
			"111": {InternalStatus: scheduler.StatusCompleted, EndTime: &now, IsFinished: true, IsSuccessful: true},
		}}

		m := monitor.New(monitor.TrainingHandler{}, st, sched, nil, nil, logr.Discard(), time.Hour)
		m.Start(context.Background())
		Eventually(func() store.JobStatus { return st.jobs["job-1"].Status }).Should(Equal(store.JobCompleted))
		m.Stop()

		Expect(st.trainings["job-1"].Status).To(Equal(store.TrainingTrained))
		Expect(st.models).To(HaveKey("training-1"))
	})

	It("is idempotent across repeated polls of an already-completed job", func() {
		st := newFakeStore()
		st.jobs["job-2"] = store.Job{ID: "job-2", ExternalID: "222", Kind: store.KindTraining, Status: store.JobRunning}
		st.trainings["job-2"] = store.Training{ID: "training-2", JobID: "job-2", Name: "seg-B", Status: store.TrainingInProgress}

		sched := &fakeScheduler{infoByExternalID: map[string]scheduler.JobInfo{
			"222": {InternalStatus: scheduler.StatusCompleted, IsFinished: true, IsSuccessful: true},
		}}

		m := monitor.New(monitor.TrainingHandler{}, st, sched, nil, nil, logr.Discard(), time.Hour)
		m.Start(context.Background())
		Eventually(func() store.JobStatus { return st.jobs["job-2"].Status }).Should(Equal(store.JobCompleted))
		m.Stop()

		// A second run polls again, now with the job already COMPLETED.
		m.Start(context.Background())
		m.Stop()

		Expect(len(st.models)).To(Equal(1))
	})

	It("does not start a second loop while one is already running", func() {
		st := newFakeStore()
		sched := &fakeScheduler{infoByExternalID: map[string]scheduler.JobInfo{}}
		m := monitor.New(monitor.TrainingHandler{}, st, sched, nil, nil, logr.Discard(), time.Hour)

		m.Start(context.Background())
		m.Start(context.Background())
		Expect(m.IsRunning()).To(BeTrue())
		m.Stop()
		Expect(m.IsRunning()).To(BeFalse())
	})

	It("reconnects once after an Unavailable ActiveJobs error, then resumes the tick", func() {
		st := newFakeStore()
		st.jobs["job-3"] = store.Job{ID: "job-3", ExternalID: "333", Kind: store.KindTraining, Status: store.JobRunning}
		st.trainings["job-3"] = store.Training{ID: "training-3", JobID: "job-3", Name: "seg-C", Status: store.TrainingInProgress}
		st.activeJobsErr = taxerrors.New(taxerrors.KindUnavailable, "connection is closed")

		sched := &fakeScheduler{infoByExternalID: map[string]scheduler.JobInfo{
			"333": {InternalStatus: scheduler.StatusCompleted, IsFinished: true, IsSuccessful: true},
		}}

		reg := prometheus.NewRegistry()
		recorder := metrics.New(reg)
		m := monitor.New(monitor.TrainingHandler{}, st, sched, nil, recorder, logr.Discard(), time.Hour)
		m.Start(context.Background())
		Eventually(func() store.JobStatus { return st.jobs["job-3"].Status }).Should(Equal(store.JobCompleted))
		m.Stop()

		Expect(st.reconnectCalls).To(Equal(1))
		var metric dto.Metric
		Expect(recorder.Reconnects.Write(&metric)).To(Succeed())
		Expect(metric.GetCounter().GetValue()).To(Equal(1.0))
	})

	It("gives up for the tick when the reconnect attempt itself fails", func() {
		st := newFakeStore()
		st.activeJobsErr = taxerrors.New(taxerrors.KindUnavailable, "connection is closed")
		st.reconnectErr = errors.New("still down")
		sched := &fakeScheduler{infoByExternalID: map[string]scheduler.JobInfo{}}

		m := monitor.New(monitor.TrainingHandler{}, st, sched, nil, nil, logr.Discard(), time.Hour)
		m.Start(context.Background())
		Eventually(func() int { return st.reconnectCalls }).Should(Equal(1))
		Consistently(func() int { return st.reconnectCalls }, 200*time.Millisecond).Should(Equal(1))
		m.Stop()
	})
})
