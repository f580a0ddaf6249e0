package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliadvertman/segctl/pkg/manager"
	"github.com/eliadvertman/segctl/pkg/monitor"
	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

func TestManager(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Manager Suite")
}

type noopScheduler struct{}

func (noopScheduler) Info(ctx context.Context, externalID string) (scheduler.JobInfo, bool, error) {
	return scheduler.JobInfo{}, false, nil
}

type noopStore struct{ store.Store }

func (noopStore) ActiveJobs(ctx context.Context) ([]store.Job, error)  { return nil, nil }
func (noopStore) Atomic(ctx context.Context, fn func(tx store.Tx) error) error { return nil }

func (noopStore) JobByID(ctx context.Context, id string) (*store.Job, error) {
	return &store.Job{ID: id, Kind: store.KindTraining, ExternalID: "ext-1"}, nil
}

func newManager() *manager.Manager {
	log := logr.Discard()
	training := monitor.New(monitor.TrainingHandler{}, noopStore{}, noopScheduler{}, nil, nil, log, time.Hour)
	inference := monitor.New(monitor.InferenceHandler{}, noopStore{}, noopScheduler{}, nil, nil, log, time.Hour)
	evaluation := monitor.New(monitor.EvaluationHandler{}, noopStore{}, noopScheduler{}, nil, nil, log, time.Hour)
	return manager.New(training, inference, evaluation, noopStore{}, log)
}

var _ = Describe("Manager", func() {
	It("starts and stops all three monitors together", func() {
		m := newManager()
		Expect(m.Start(context.Background())).To(Succeed())
		Expect(m.IsRunning()).To(BeTrue())

		status := m.GetStatus()
		Expect(status.Training.IsRunning).To(BeTrue())
		Expect(status.Inference.IsRunning).To(BeTrue())
		Expect(status.Evaluation.IsRunning).To(BeTrue())

		m.Stop()
		Expect(m.IsRunning()).To(BeFalse())
	})

	It("is idempotent when started twice", func() {
		m := newManager()
		Expect(m.Start(context.Background())).To(Succeed())
		Expect(m.Start(context.Background())).To(Succeed())
		Expect(m.IsRunning()).To(BeTrue())
		m.Stop()
	})

	It("dispatches poll_once to the monitor matching the job's kind", func() {
		m := newManager()
		info, err := m.PollJobOnce(context.Background(), "job-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(info).To(BeNil())
	})
})
