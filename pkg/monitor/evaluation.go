package monitor

import (
	"context"

	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

// EvaluationHandler applies Evaluation-specific side effects, grounded on
// evaluation_job_monitor.py's completion/failure transaction handlers. The
// Results payload is populated out-of-band (spec §4.3's evaluation script
// writes its own results file); the monitor only tracks status/timestamps.
type EvaluationHandler struct{}

func (EvaluationHandler) Kind() store.JobKind { return store.KindEvaluation }

func (EvaluationHandler) ApplyTransition(ctx context.Context, tx store.Tx, job store.Job, next store.JobStatus, info scheduler.JobInfo) error {
	evaluation, err := tx.EvaluationByJobID(ctx, job.ID)
	if err != nil {
		return err
	}

	switch next {
	case store.JobCompleted:
		completed := store.EvaluationCompleted
		eu := store.EvaluationUpdate{Status: &completed}
		if info.EndTime != nil {
			eu.EndTime = info.EndTime
		}
		_, err := tx.UpdateEvaluation(ctx, evaluation.ID, eu)
		return err

	case store.JobFailed:
		failed := store.EvaluationFailed
		eu := store.EvaluationUpdate{Status: &failed}
		if info.EndTime != nil {
			eu.EndTime = info.EndTime
		}
		if info.ErrorMessage != "" {
			em := info.ErrorMessage
			eu.ErrorMessage = &em
		}
		_, err := tx.UpdateEvaluation(ctx, evaluation.ID, eu)
		return err

	case store.JobRunning:
		evaluating := store.EvaluationEvaluating
		_, err := tx.UpdateEvaluation(ctx, evaluation.ID, store.EvaluationUpdate{Status: &evaluating})
		return err

	default:
		return nil
	}
}
