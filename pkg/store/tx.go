package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Tx is the write surface available inside Store.Atomic. Every terminal
// transition (spec §4.7) composes these into one commit: a Job status
// update plus its domain sibling's update, and — on a successful training
// completion — a new Model row, all or nothing.
type Tx interface {
	InsertJob(ctx context.Context, job Job) (*Job, error)
	UpdateJob(ctx context.Context, id string, u JobUpdate) (*Job, error)

	InsertTraining(ctx context.Context, t Training) (*Training, error)
	UpdateTraining(ctx context.Context, id string, u TrainingUpdate) (*Training, error)

	InsertInference(ctx context.Context, i Inference) (*Inference, error)
	UpdateInference(ctx context.Context, id string, u InferenceUpdate) (*Inference, error)

	InsertEvaluation(ctx context.Context, e Evaluation) (*Evaluation, error)
	UpdateEvaluation(ctx context.Context, id string, u EvaluationUpdate) (*Evaluation, error)

	ModelExistsForTraining(ctx context.Context, trainingID string) (bool, error)
	InsertModel(ctx context.Context, m Model) (*Model, error)

	// TrainingByJobID/InferenceByJobID/EvaluationByJobID give a monitor's
	// per-kind completion handler a read of the sibling row inside the same
	// transaction as the Job update, mirroring the source's
	// `self.training_dao.get_by_job_id(job_uuid)` call under `database.atomic()`.
	TrainingByJobID(ctx context.Context, jobID string) (*Training, error)
	InferenceByJobID(ctx context.Context, jobID string) (*Inference, error)
	EvaluationByJobID(ctx context.Context, jobID string) (*Evaluation, error)
}

type tx struct {
	tx *sqlx.Tx
}

func (t *tx) InsertJob(ctx context.Context, job Job) (*Job, error) {
	if job.ID == "" {
		job.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO job (id, external_id, kind, status, start_time, end_time, error_message, script_content, fold_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.ExternalID, job.Kind, job.Status, job.StartTime, job.EndTime, job.ErrorMessage, job.ScriptContent, job.FoldIndex)
	if err != nil {
		return nil, wrapQueryErr(err, "inserting job")
	}
	return &job, nil
}

func (t *tx) UpdateJob(ctx context.Context, id string, u JobUpdate) (*Job, error) {
	set, args := buildJobSet(u)
	if len(set) == 0 {
		return t.getJob(ctx, id)
	}
	args = append(args, id)
	query := "UPDATE job SET " + joinSet(set) + " WHERE id = $" + placeholder(len(args))
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return nil, wrapQueryErr(err, "updating job")
	}
	return t.getJob(ctx, id)
}

func (t *tx) getJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := t.tx.GetContext(ctx, &j, `SELECT * FROM job WHERE id = $1`, id); err != nil {
		return nil, wrapLookupErr(err, "job", id)
	}
	return &j, nil
}

func (t *tx) InsertTraining(ctx context.Context, tr Training) (*Training, error) {
	if tr.ID == "" {
		tr.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO training (id, job_id, name, images_path, labels_path, model_path, status, progress, start_time, end_time, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tr.ID, tr.JobID, tr.Name, tr.ImagesPath, tr.LabelsPath, tr.ModelPath, tr.Status, tr.Progress, tr.StartTime, tr.EndTime, tr.ErrorMessage)
	if err != nil {
		return nil, wrapQueryErr(err, "inserting training")
	}
	return &tr, nil
}

func (t *tx) UpdateTraining(ctx context.Context, id string, u TrainingUpdate) (*Training, error) {
	set, args := buildTrainingSet(u)
	if len(set) == 0 {
		return t.getTraining(ctx, id)
	}
	args = append(args, id)
	query := "UPDATE training SET " + joinSet(set) + " WHERE id = $" + placeholder(len(args))
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return nil, wrapQueryErr(err, "updating training")
	}
	return t.getTraining(ctx, id)
}

func (t *tx) getTraining(ctx context.Context, id string) (*Training, error) {
	var tr Training
	if err := t.tx.GetContext(ctx, &tr, `SELECT * FROM training WHERE id = $1`, id); err != nil {
		return nil, wrapLookupErr(err, "training", id)
	}
	return &tr, nil
}

func (t *tx) InsertInference(ctx context.Context, i Inference) (*Inference, error) {
	if i.ID == "" {
		i.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inference (id, job_id, model_id, input_data, output_dir, prediction, status, start_time, end_time, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		i.ID, i.JobID, i.ModelID, i.InputData, i.OutputDir, i.Prediction, i.Status, i.StartTime, i.EndTime, i.ErrorMessage)
	if err != nil {
		return nil, wrapQueryErr(err, "inserting inference")
	}
	return &i, nil
}

func (t *tx) UpdateInference(ctx context.Context, id string, u InferenceUpdate) (*Inference, error) {
	set, args := buildInferenceSet(u)
	if len(set) == 0 {
		return t.getInference(ctx, id)
	}
	args = append(args, id)
	query := "UPDATE inference SET " + joinSet(set) + " WHERE id = $" + placeholder(len(args))
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return nil, wrapQueryErr(err, "updating inference")
	}
	return t.getInference(ctx, id)
}

func (t *tx) getInference(ctx context.Context, id string) (*Inference, error) {
	var i Inference
	if err := t.tx.GetContext(ctx, &i, `SELECT * FROM inference WHERE id = $1`, id); err != nil {
		return nil, wrapLookupErr(err, "inference", id)
	}
	return &i, nil
}

func (t *tx) InsertEvaluation(ctx context.Context, e Evaluation) (*Evaluation, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO evaluation (id, job_id, model_id, evaluation_path, configurations, status, start_time, end_time, error_message, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.JobID, e.ModelID, e.EvaluationPath, textArray(e.Configurations), e.Status, e.StartTime, e.EndTime, e.ErrorMessage, e.Results)
	if err != nil {
		return nil, wrapQueryErr(err, "inserting evaluation")
	}
	return &e, nil
}

func (t *tx) UpdateEvaluation(ctx context.Context, id string, u EvaluationUpdate) (*Evaluation, error) {
	set, args := buildEvaluationSet(u)
	if len(set) == 0 {
		return t.getEvaluation(ctx, id)
	}
	args = append(args, id)
	query := "UPDATE evaluation SET " + joinSet(set) + " WHERE id = $" + placeholder(len(args))
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return nil, wrapQueryErr(err, "updating evaluation")
	}
	return t.getEvaluation(ctx, id)
}

func (t *tx) getEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	var e evaluationRow
	if err := t.tx.GetContext(ctx, &e, `SELECT * FROM evaluation WHERE id = $1`, id); err != nil {
		return nil, wrapLookupErr(err, "evaluation", id)
	}
	return e.toEvaluation(), nil
}

func (t *tx) TrainingByJobID(ctx context.Context, jobID string) (*Training, error) {
	var tr Training
	if err := t.tx.GetContext(ctx, &tr, `SELECT * FROM training WHERE job_id = $1`, jobID); err != nil {
		return nil, wrapLookupErr(err, "training", jobID)
	}
	return &tr, nil
}

func (t *tx) InferenceByJobID(ctx context.Context, jobID string) (*Inference, error) {
	var i Inference
	if err := t.tx.GetContext(ctx, &i, `SELECT * FROM inference WHERE job_id = $1`, jobID); err != nil {
		return nil, wrapLookupErr(err, "inference", jobID)
	}
	return &i, nil
}

func (t *tx) EvaluationByJobID(ctx context.Context, jobID string) (*Evaluation, error) {
	var e evaluationRow
	if err := t.tx.GetContext(ctx, &e, `SELECT * FROM evaluation WHERE job_id = $1`, jobID); err != nil {
		return nil, wrapLookupErr(err, "evaluation", jobID)
	}
	return e.toEvaluation(), nil
}

func (t *tx) ModelExistsForTraining(ctx context.Context, trainingID string) (bool, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM model WHERE training_id = $1`, trainingID)
	if err != nil {
		return false, wrapQueryErr(err, "checking model existence")
	}
	return count > 0, nil
}

func (t *tx) InsertModel(ctx context.Context, m Model) (*Model, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO model (id, training_id, model_name, model_path, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.TrainingID, m.ModelName, m.ModelPath, m.CreatedAt)
	if err != nil {
		return nil, wrapQueryErr(err, "inserting model")
	}
	return &m, nil
}
