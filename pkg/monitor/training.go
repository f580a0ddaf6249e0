package monitor

import (
	"context"

	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
)

// TrainingHandler applies Training-specific side effects, grounded on
// training_job_monitor.py's _handle_training_completion: on COMPLETED it
// moves Training to TRAINED and derives exactly one Model row (idempotent —
// a re-observed COMPLETED tick does not create a second Model).
type TrainingHandler struct{}

func (TrainingHandler) Kind() store.JobKind { return store.KindTraining }

func (TrainingHandler) ApplyTransition(ctx context.Context, tx store.Tx, job store.Job, next store.JobStatus, info scheduler.JobInfo) error {
	training, err := tx.TrainingByJobID(ctx, job.ID)
	if err != nil {
		return err
	}

	switch next {
	case store.JobCompleted:
		trained := store.TrainingTrained
		tu := store.TrainingUpdate{Status: &trained}
		if info.EndTime != nil {
			tu.EndTime = info.EndTime
		}
		if _, err := tx.UpdateTraining(ctx, training.ID, tu); err != nil {
			return err
		}

		exists, err := tx.ModelExistsForTraining(ctx, training.ID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		createdAt := job.EndTime
		if createdAt == nil {
			createdAt = info.EndTime
		}
		model := store.Model{TrainingID: training.ID, ModelName: training.Name + "_model"}
		if createdAt != nil {
			model.CreatedAt = *createdAt
		}
		_, err = tx.InsertModel(ctx, model)
		return err

	case store.JobFailed:
		failed := store.TrainingFailed
		tu := store.TrainingUpdate{Status: &failed}
		if info.EndTime != nil {
			tu.EndTime = info.EndTime
		}
		if info.ErrorMessage != "" {
			em := info.ErrorMessage
			tu.ErrorMessage = &em
		}
		_, err := tx.UpdateTraining(ctx, training.ID, tu)
		return err

	default:
		return nil
	}
}
