package monitor

import (
	"context"

	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

// InferenceHandler applies Inference-specific side effects, grounded on
// prediction_job_monitor.py's completion/failure transaction handlers.
type InferenceHandler struct{}

func (InferenceHandler) Kind() store.JobKind { return store.KindInference }

func (InferenceHandler) ApplyTransition(ctx context.Context, tx store.Tx, job store.Job, next store.JobStatus, info scheduler.JobInfo) error {
	inference, err := tx.InferenceByJobID(ctx, job.ID)
	if err != nil {
		return err
	}

	switch next {
	case store.JobCompleted:
		completed := store.InferenceCompleted
		iu := store.InferenceUpdate{Status: &completed}
		if info.EndTime != nil {
			iu.EndTime = info.EndTime
		}
		_, err := tx.UpdateInference(ctx, inference.ID, iu)
		return err

	case store.JobFailed:
		failed := store.InferenceFailed
		iu := store.InferenceUpdate{Status: &failed}
		if info.EndTime != nil {
			iu.EndTime = info.EndTime
		}
		if info.ErrorMessage != "" {
			em := info.ErrorMessage
			iu.ErrorMessage = &em
		}
		_, err := tx.UpdateInference(ctx, inference.ID, iu)
		return err

	case store.JobRunning:
		processing := store.InferenceProcessing
		_, err := tx.UpdateInference(ctx, inference.ID, store.InferenceUpdate{Status: &processing})
		return err

	default:
		return nil
	}
}
