package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliadvertman/segctl/internal/httpapi"
	"github.com/eliadvertman/segctl/pkg/engine"
	"github.com/eliadvertman/segctl/pkg/store"
	"github.com/eliadvertman/segctl/pkg/template"
)

func TestHTTPAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTPAPI Suite")
}

type fakeSubmitter struct {
	job        *store.Job
	training   *store.Training
	inference  *store.Inference
	evaluation *store.Evaluation
	err        error
}

func (f *fakeSubmitter) SubmitTraining(ctx context.Context, vars template.TrainingVariables, name, modelPath string, imagesPath, labelsPath *string) (*store.Job, *store.Training, error) {
	return f.job, f.training, f.err
}
func (f *fakeSubmitter) SubmitInference(ctx context.Context, vars template.InferenceVariables, modelID string) (*store.Job, *store.Inference, error) {
	return f.job, f.inference, f.err
}
func (f *fakeSubmitter) SubmitEvaluation(ctx context.Context, vars template.EvaluationVariables, modelID string) (*store.Job, *store.Evaluation, error) {
	return f.job, f.evaluation, f.err
}

type fakeEngine struct {
	status engine.Status
}

func (f *fakeEngine) Status(ctx context.Context) engine.Status { return f.status }

type fakeStore struct {
	store.Store
	training   *store.Training
	inference  *store.Inference
	evaluation *store.Evaluation
}

func (f *fakeStore) TrainingByJobID(ctx context.Context, id string) (*store.Training, error) {
	return f.training, nil
}
func (f *fakeStore) InferenceByJobID(ctx context.Context, id string) (*store.Inference, error) {
	return f.inference, nil
}
func (f *fakeStore) EvaluationByJobID(ctx context.Context, id string) (*store.Evaluation, error) {
	return f.evaluation, nil
}
func (f *fakeStore) ListTrainings(ctx context.Context, limit, offset int) ([]store.Training, error) {
	return []store.Training{*f.training}, nil
}

var _ = Describe("Server", func() {
	It("submits a training job and returns 202 with the new IDs", func() {
		st := &fakeStore{training: &store.Training{ID: "training-1", Status: store.TrainingInProgress}}
		sub := &fakeSubmitter{
			job:      &store.Job{ID: "job-1", ExternalID: "111"},
			training: &store.Training{ID: "training-1", Status: store.TrainingInProgress},
		}
		s := httpapi.New(sub, st, &fakeEngine{}, nil, nil, logr.Discard())
		srv := httptest.NewServer(s.Router([]string{"*"}))
		defer srv.Close()

		body, _ := json.Marshal(map[string]any{
			"modelName": "seg-A", "foldIndex": 0, "taskNumber": 130, "modelPath": "/tmp/models/seg-A",
		})
		resp, err := http.Post(srv.URL+"/api/v1/training/train", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		var out map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out["trainingId"]).To(Equal("training-1"))
		Expect(out["batchJobId"]).To(Equal("111"))
	})

	It("rejects a malformed training request with 400", func() {
		st := &fakeStore{}
		sub := &fakeSubmitter{}
		s := httpapi.New(sub, st, &fakeEngine{}, nil, nil, logr.Discard())
		srv := httptest.NewServer(s.Router([]string{"*"}))
		defer srv.Close()

		body, _ := json.Marshal(map[string]any{"foldIndex": 0})
		resp, err := http.Post(srv.URL+"/api/v1/training/train", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("reports training status by id", func() {
		st := &fakeStore{training: &store.Training{ID: "training-1", Status: store.TrainingTrained, Progress: 1}}
		s := httpapi.New(&fakeSubmitter{}, st, &fakeEngine{}, nil, nil, logr.Discard())
		srv := httptest.NewServer(s.Router([]string{"*"}))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/api/v1/training/training-1/status")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out["status"]).To(Equal("TRAINED"))
	})

	It("reports healthy only when the manager is running and the DB is ok", func() {
		s := httpapi.New(&fakeSubmitter{}, &fakeStore{}, &fakeEngine{status: engine.Status{Leader: true, ManagerRunning: true, DatabaseOK: true}}, nil, nil, logr.Discard())
		srv := httptest.NewServer(s.Router([]string{"*"}))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("reports unhealthy when the manager is not running", func() {
		s := httpapi.New(&fakeSubmitter{}, &fakeStore{}, &fakeEngine{status: engine.Status{Leader: true, ManagerRunning: false, DatabaseOK: true}}, nil, nil, logr.Discard())
		srv := httptest.NewServer(s.Router([]string{"*"}))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})
})
