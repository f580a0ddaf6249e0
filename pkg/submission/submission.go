// Package submission implements the Submission Facades (C5): the
// synchronous path a client's HTTP request takes to become a Job row and a
// scheduler submission, grounded on the source's ModelTrainingFacade /
// PredictionFacade / evaluation facade (create the output directory, render
// the template, submit to the scheduler, persist transactionally).
package submission

import (
	"context"
	"os"
	"time"

	"github.com/go-logr/logr"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
	"github.com/eliadvertman/segctl/pkg/template"
)

// Scheduler is the subset of pkg/scheduler.Client the facades need.
type Scheduler interface {
	Submit(ctx context.Context, script string) (string, error)
}

// Facades bundles the three submission operations over one scheduler
// client, store, and set of renderers.
type Facades struct {
	scheduler  Scheduler
	store      store.Store
	training   *template.Renderer
	inference  *template.Renderer
	evaluation *template.Renderer
	log        logr.Logger
}

// New builds a Facades instance. Each renderer is pinned to its own
// template file (spec §4.3); hot-reloading them is the caller's concern
// (internal/config.Watcher).
func New(sched Scheduler, st store.Store, training, inference, evaluation *template.Renderer, log logr.Logger) *Facades {
	return &Facades{scheduler: sched, store: st, training: training, inference: inference, evaluation: evaluation, log: log}
}

// SubmitTraining creates the model output directory, renders the training
// template, submits it, and persists the Job+Training pair in one
// transaction keyed by the scheduler's returned external ID.
func (f *Facades) SubmitTraining(ctx context.Context, vars template.TrainingVariables, name, modelPath string, imagesPath, labelsPath *string) (*store.Job, *store.Training, error) {
	if err := ensureDir(modelPath); err != nil {
		return nil, nil, err
	}
	vars.Timestamp = time.Now().Unix()

	script, err := f.training.Render(vars)
	if err != nil {
		return nil, nil, taxerrors.Wrap(taxerrors.KindClientMalformed, err, "rendering training template")
	}

	externalID, err := f.scheduler.Submit(ctx, script)
	if err != nil {
		return nil, nil, err
	}

	foldIndex := vars.FoldIndex
	job := store.Job{
		ExternalID:    externalID,
		Kind:          store.KindTraining,
		Status:        store.JobPending,
		ScriptContent: script,
		FoldIndex:     &foldIndex,
	}
	training := store.Training{
		Name:       name,
		ImagesPath: imagesPath,
		LabelsPath: labelsPath,
		ModelPath:  modelPath,
		Status:     store.TrainingInProgress,
	}

	outJob, outTraining, err := f.store.CreateTrainingJob(ctx, job, training)
	if err != nil {
		return nil, nil, err
	}
	f.log.Info("training job submitted", "externalID", externalID, "jobID", outJob.ID)
	return outJob, outTraining, nil
}

// SubmitInference creates the output directory, renders the inference
// template, submits it, and persists the Job+Inference pair.
func (f *Facades) SubmitInference(ctx context.Context, vars template.InferenceVariables, modelID string) (*store.Job, *store.Inference, error) {
	if err := ensureDir(vars.OutputDir); err != nil {
		return nil, nil, err
	}
	vars.Timestamp = time.Now().Unix()

	script, err := f.inference.Render(vars)
	if err != nil {
		return nil, nil, taxerrors.Wrap(taxerrors.KindClientMalformed, err, "rendering inference template")
	}

	externalID, err := f.scheduler.Submit(ctx, script)
	if err != nil {
		return nil, nil, err
	}

	job := store.Job{
		ExternalID:    externalID,
		Kind:          store.KindInference,
		Status:        store.JobPending,
		ScriptContent: script,
	}
	inference := store.Inference{
		ModelID:   modelID,
		InputData: vars.InputData,
		OutputDir: vars.OutputDir,
		Status:    store.InferencePending,
	}

	outJob, outInference, err := f.store.CreateInferenceJob(ctx, job, inference)
	if err != nil {
		return nil, nil, err
	}
	f.log.Info("inference job submitted", "externalID", externalID, "jobID", outJob.ID)
	return outJob, outInference, nil
}

// SubmitEvaluation creates the evaluation output directory, renders the
// evaluation template, submits it, and persists the Job+Evaluation pair.
func (f *Facades) SubmitEvaluation(ctx context.Context, vars template.EvaluationVariables, modelID string) (*store.Job, *store.Evaluation, error) {
	if err := ensureDir(vars.EvaluationPath); err != nil {
		return nil, nil, err
	}
	vars.Timestamp = time.Now().Unix()

	script, err := f.evaluation.Render(vars)
	if err != nil {
		return nil, nil, taxerrors.Wrap(taxerrors.KindClientMalformed, err, "rendering evaluation template")
	}

	externalID, err := f.scheduler.Submit(ctx, script)
	if err != nil {
		return nil, nil, err
	}

	configs := make([]string, len(vars.Configurations))
	for i, c := range vars.Configurations {
		configs[i] = string(c)
	}

	job := store.Job{
		ExternalID:    externalID,
		Kind:          store.KindEvaluation,
		Status:        store.JobPending,
		ScriptContent: script,
	}
	evaluation := store.Evaluation{
		ModelID:        modelID,
		EvaluationPath: vars.EvaluationPath,
		Configurations: configs,
		Status:         store.EvaluationPending,
	}

	outJob, outEvaluation, err := f.store.CreateEvaluationJob(ctx, job, evaluation)
	if err != nil {
		return nil, nil, err
	}
	f.log.Info("evaluation job submitted", "externalID", externalID, "jobID", outJob.ID)
	return outJob, outEvaluation, nil
}

func ensureDir(path string) error {
	if path == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "output directory is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return taxerrors.Wrap(taxerrors.KindInternal, err, "creating output directory")
	}
	return nil
}
