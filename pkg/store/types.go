// Package store implements the Record Store (C4): durable CRUD for the
// five entities in spec §3, plus the atomic multi-record commit that every
// terminal transition (spec §4.7) goes through.
package store

import "time"

// JobKind identifies which domain sibling a Job belongs to.
type JobKind string

const (
	KindTraining   JobKind = "TRAINING"
	KindInference  JobKind = "INFERENCE"
	KindEvaluation JobKind = "EVALUATION"
)

// JobStatus is the Job state machine's vocabulary (spec §3, §4.2).
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether status is one of the two terminal Job states.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the central entity every kind of workload shares (spec §3).
type Job struct {
	ID            string     `db:"id"`
	ExternalID    string     `db:"external_id"`
	Kind          JobKind    `db:"kind"`
	Status        JobStatus  `db:"status"`
	StartTime     *time.Time `db:"start_time"`
	EndTime       *time.Time `db:"end_time"`
	ErrorMessage  *string    `db:"error_message"`
	ScriptContent string     `db:"script_content"`
	FoldIndex     *int       `db:"fold_index"`
	CreatedAt     time.Time  `db:"created_at"`
}

// TrainingStatus is the Training sibling's own state machine (spec §3).
type TrainingStatus string

const (
	TrainingInProgress TrainingStatus = "TRAINING"
	TrainingTrained    TrainingStatus = "TRAINED"
	TrainingFailed     TrainingStatus = "FAILED"
)

// Training is the domain sibling for a TRAINING job.
type Training struct {
	ID           string     `db:"id"`
	JobID        string     `db:"job_id"`
	Name         string     `db:"name"`
	ImagesPath   *string    `db:"images_path"`
	LabelsPath   *string    `db:"labels_path"`
	ModelPath    string     `db:"model_path"`
	Status       TrainingStatus `db:"status"`
	Progress     float64    `db:"progress"`
	StartTime    *time.Time `db:"start_time"`
	EndTime      *time.Time `db:"end_time"`
	ErrorMessage *string    `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
}

// Model is derived exactly once per successful training completion (spec
// invariant 2 in §3).
type Model struct {
	ID         string    `db:"id"`
	TrainingID string    `db:"training_id"`
	ModelName  string    `db:"model_name"`
	ModelPath  *string   `db:"model_path"`
	CreatedAt  time.Time `db:"created_at"`
}

// InferenceStatus is the Inference sibling's own state machine (spec §3).
type InferenceStatus string

const (
	InferencePending    InferenceStatus = "PENDING"
	InferenceProcessing InferenceStatus = "PROCESSING"
	InferenceCompleted  InferenceStatus = "COMPLETED"
	InferenceFailed     InferenceStatus = "FAILED"
)

// Inference is the domain sibling for an INFERENCE job. The source's
// `predict_id` primary key (spec §9 Open Question) is unified into ID here;
// PredictID is a read-only alias for scheduler-facing call sites.
type Inference struct {
	ID           string     `db:"id"`
	JobID        string     `db:"job_id"`
	ModelID      string     `db:"model_id"`
	InputData    string     `db:"input_data"`
	OutputDir    string     `db:"output_dir"`
	Prediction   *string    `db:"prediction"`
	Status       InferenceStatus `db:"status"`
	StartTime    *time.Time `db:"start_time"`
	EndTime      *time.Time `db:"end_time"`
	ErrorMessage *string    `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
}

// PredictID is a read-only alias for ID, for call sites that want the
// source's scheduler-facing naming.
func (i Inference) PredictID() string { return i.ID }

// EvaluationStatus is the Evaluation sibling's own state machine (spec §3).
type EvaluationStatus string

const (
	EvaluationPending    EvaluationStatus = "PENDING"
	EvaluationEvaluating EvaluationStatus = "EVALUATING"
	EvaluationCompleted  EvaluationStatus = "COMPLETED"
	EvaluationFailed     EvaluationStatus = "FAILED"
)

// Evaluation is the domain sibling for an EVALUATION job.
type Evaluation struct {
	ID             string     `db:"id"`
	JobID          string     `db:"job_id"`
	ModelID        string     `db:"model_id"`
	EvaluationPath string     `db:"evaluation_path"`
	Configurations []string   `db:"-"`
	Status         EvaluationStatus `db:"status"`
	StartTime      *time.Time `db:"start_time"`
	EndTime        *time.Time `db:"end_time"`
	ErrorMessage   *string    `db:"error_message"`
	Results        *string    `db:"results"`
}

// JobUpdate enumerates the mutable Job columns (design note §9: explicit
// update structs, no dynamic attribute bags). A nil field leaves the column
// untouched.
type JobUpdate struct {
	Status       *JobStatus
	StartTime    *time.Time
	EndTime      *time.Time
	ErrorMessage *string
}

// TrainingUpdate enumerates the mutable Training columns.
type TrainingUpdate struct {
	Status       *TrainingStatus
	Progress     *float64
	StartTime    *time.Time
	EndTime      *time.Time
	ErrorMessage *string
}

// InferenceUpdate enumerates the mutable Inference columns.
type InferenceUpdate struct {
	Status       *InferenceStatus
	Prediction   *string
	StartTime    *time.Time
	EndTime      *time.Time
	ErrorMessage *string
}

// EvaluationUpdate enumerates the mutable Evaluation columns.
type EvaluationUpdate struct {
	Status       *EvaluationStatus
	StartTime    *time.Time
	EndTime      *time.Time
	ErrorMessage *string
	Results      *string
}
