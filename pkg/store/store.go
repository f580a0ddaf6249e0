package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// Store is the Record Store's transactional CRUD surface (spec §4.4). Every
// write that must land with one or more sibling records goes through
// Atomic; everything else is a single statement.
type Store interface {
	ActiveJobs(ctx context.Context) ([]Job, error)
	JobByID(ctx context.Context, id string) (*Job, error)
	JobByExternalID(ctx context.Context, externalID string) (*Job, error)

	TrainingByJobID(ctx context.Context, jobID string) (*Training, error)
	InferenceByJobID(ctx context.Context, jobID string) (*Inference, error)
	EvaluationByJobID(ctx context.Context, jobID string) (*Evaluation, error)
	ModelByTrainingID(ctx context.Context, trainingID string) (*Model, error)
	ModelByID(ctx context.Context, id string) (*Model, error)

	ListTrainings(ctx context.Context, limit, offset int) ([]Training, error)
	ListInferences(ctx context.Context, limit, offset int) ([]Inference, error)
	ListEvaluations(ctx context.Context, limit, offset int) ([]Evaluation, error)

	CreateTrainingJob(ctx context.Context, job Job, training Training) (*Job, *Training, error)
	CreateInferenceJob(ctx context.Context, job Job, inference Inference) (*Job, *Inference, error)
	CreateEvaluationJob(ctx context.Context, job Job, evaluation Evaluation) (*Job, *Evaluation, error)

	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// Reconnect validates the current connection with a trivial query and,
	// if that fails, tears down and re-establishes the pool exactly once
	// (spec §4.6 step 1, §8 scenario 6). Callers should retry the failed
	// operation once after Reconnect returns nil and surface the error
	// otherwise.
	Reconnect(ctx context.Context) error
}

// ErrNotFound is a KindNotFound error for lookups with no matching row. The
// sqlStore lookups do not return this value: they return their own
// KindNotFound error naming the entity and key (see wrapLookupErr).
var ErrNotFound = taxerrors.New(taxerrors.KindNotFound, "record not found")

type sqlStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	reopen func(ctx context.Context, old *sqlx.DB) (*sqlx.DB, error)
	log    logr.Logger
}

// New wraps an established connection pool as a Store. reopen, if non-nil,
// is called by Reconnect to replace a dead pool with a fresh one (typically
// internal/database.Reconnect bound to the process's DatabaseConfig); pass
// nil where reconnection is never exercised, such as most unit tests.
func New(db *sqlx.DB, reopen func(ctx context.Context, old *sqlx.DB) (*sqlx.DB, error), log logr.Logger) Store {
	return &sqlStore{db: db, reopen: reopen, log: log}
}

func (s *sqlStore) getDB() *sqlx.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Reconnect implements the Store interface's reconnect contract.
func (s *sqlStore) Reconnect(ctx context.Context) error {
	db := s.getDB()
	if err := db.PingContext(ctx); err == nil {
		return nil
	}
	if s.reopen == nil {
		return taxerrors.New(taxerrors.KindUnavailable, "database connection unavailable and no reconnect strategy configured")
	}

	newDB, err := s.reopen(ctx, db)
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "reconnecting to database")
	}

	s.mu.Lock()
	s.db = newDB
	s.mu.Unlock()
	return nil
}

func (s *sqlStore) ActiveJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	err := s.getDB().SelectContext(ctx, &jobs,
		`SELECT * FROM job WHERE status IN ('PENDING', 'RUNNING') ORDER BY created_at`)
	if err != nil {
		return nil, wrapQueryErr(err, "listing active jobs")
	}
	return jobs, nil
}

func (s *sqlStore) JobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := s.getDB().GetContext(ctx, &j, `SELECT * FROM job WHERE id = $1`, id)
	if err != nil {
		return nil, wrapLookupErr(err, "job", id)
	}
	return &j, nil
}

func (s *sqlStore) JobByExternalID(ctx context.Context, externalID string) (*Job, error) {
	var j Job
	err := s.getDB().GetContext(ctx, &j, `SELECT * FROM job WHERE external_id = $1`, externalID)
	if err != nil {
		return nil, wrapLookupErr(err, "job", externalID)
	}
	return &j, nil
}

func (s *sqlStore) TrainingByJobID(ctx context.Context, jobID string) (*Training, error) {
	var t Training
	err := s.getDB().GetContext(ctx, &t, `SELECT * FROM training WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, wrapLookupErr(err, "training", jobID)
	}
	return &t, nil
}

func (s *sqlStore) InferenceByJobID(ctx context.Context, jobID string) (*Inference, error) {
	var i Inference
	err := s.getDB().GetContext(ctx, &i, `SELECT * FROM inference WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, wrapLookupErr(err, "inference", jobID)
	}
	return &i, nil
}

func (s *sqlStore) EvaluationByJobID(ctx context.Context, jobID string) (*Evaluation, error) {
	var e evaluationRow
	err := s.getDB().GetContext(ctx, &e, `SELECT * FROM evaluation WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, wrapLookupErr(err, "evaluation", jobID)
	}
	return e.toEvaluation(), nil
}

func (s *sqlStore) ModelByTrainingID(ctx context.Context, trainingID string) (*Model, error) {
	var m Model
	err := s.getDB().GetContext(ctx, &m, `SELECT * FROM model WHERE training_id = $1`, trainingID)
	if err != nil {
		return nil, wrapLookupErr(err, "model", trainingID)
	}
	return &m, nil
}

func (s *sqlStore) ModelByID(ctx context.Context, id string) (*Model, error) {
	var m Model
	err := s.getDB().GetContext(ctx, &m, `SELECT * FROM model WHERE id = $1`, id)
	if err != nil {
		return nil, wrapLookupErr(err, "model", id)
	}
	return &m, nil
}

func (s *sqlStore) ListTrainings(ctx context.Context, limit, offset int) ([]Training, error) {
	var out []Training
	err := s.getDB().SelectContext(ctx, &out,
		`SELECT * FROM training ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, wrapQueryErr(err, "listing trainings")
	}
	return out, nil
}

func (s *sqlStore) ListInferences(ctx context.Context, limit, offset int) ([]Inference, error) {
	var out []Inference
	err := s.getDB().SelectContext(ctx, &out,
		`SELECT * FROM inference ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, wrapQueryErr(err, "listing inferences")
	}
	return out, nil
}

func (s *sqlStore) ListEvaluations(ctx context.Context, limit, offset int) ([]Evaluation, error) {
	var rows []evaluationRow
	err := s.getDB().SelectContext(ctx, &rows,
		`SELECT * FROM evaluation ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, wrapQueryErr(err, "listing evaluations")
	}
	out := make([]Evaluation, len(rows))
	for i, r := range rows {
		out[i] = *r.toEvaluation()
	}
	return out, nil
}

func (s *sqlStore) CreateTrainingJob(ctx context.Context, job Job, training Training) (*Job, *Training, error) {
	var outJob *Job
	var outTraining *Training
	err := s.Atomic(ctx, func(tx Tx) error {
		var err error
		outJob, err = tx.InsertJob(ctx, job)
		if err != nil {
			return err
		}
		training.JobID = outJob.ID
		outTraining, err = tx.InsertTraining(ctx, training)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return outJob, outTraining, nil
}

func (s *sqlStore) CreateInferenceJob(ctx context.Context, job Job, inference Inference) (*Job, *Inference, error) {
	var outJob *Job
	var outInference *Inference
	err := s.Atomic(ctx, func(tx Tx) error {
		var err error
		outJob, err = tx.InsertJob(ctx, job)
		if err != nil {
			return err
		}
		inference.JobID = outJob.ID
		outInference, err = tx.InsertInference(ctx, inference)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return outJob, outInference, nil
}

func (s *sqlStore) CreateEvaluationJob(ctx context.Context, job Job, evaluation Evaluation) (*Job, *Evaluation, error) {
	var outJob *Job
	var outEvaluation *Evaluation
	err := s.Atomic(ctx, func(tx Tx) error {
		var err error
		outJob, err = tx.InsertJob(ctx, job)
		if err != nil {
			return err
		}
		evaluation.JobID = outJob.ID
		outEvaluation, err = tx.InsertEvaluation(ctx, evaluation)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return outJob, outEvaluation, nil
}

func (s *sqlStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	sqlTxn, err := s.getDB().BeginTxx(ctx, nil)
	if err != nil {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "beginning transaction")
	}

	txn := &tx{tx: sqlTxn}
	if err := fn(txn); err != nil {
		if rbErr := sqlTxn.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error(rbErr, "rollback failed after transaction error")
		}
		return err
	}

	if err := sqlTxn.Commit(); err != nil {
		return taxerrors.Wrap(taxerrors.KindUnavailable, err, "committing transaction")
	}
	return nil
}

func wrapLookupErr(err error, entity, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return taxerrors.Newf(taxerrors.KindNotFound, "%s %q not found", entity, key)
	}
	return wrapQueryErr(err, "looking up "+entity)
}

func wrapQueryErr(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return taxerrors.Wrap(taxerrors.KindInternal, err, msg)
	}
	return taxerrors.Wrap(taxerrors.KindUnavailable, err, msg)
}

// newID generates a fresh entity identifier (spec §9: UUIDs replace the
// source's integer auto-increment primary keys, since the store has no
// single-writer assumption).
func newID() string {
	return uuid.NewString()
}
