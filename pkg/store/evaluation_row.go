package store

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// evaluationRow mirrors Evaluation but scans the configurations column as a
// Postgres text array literal, since the pgx stdlib driver returns arrays as
// their wire-format string rather than a Go slice.
type evaluationRow struct {
	ID             string           `db:"id"`
	JobID          string           `db:"job_id"`
	ModelID        string           `db:"model_id"`
	EvaluationPath string           `db:"evaluation_path"`
	Configurations textArray        `db:"configurations"`
	Status         EvaluationStatus `db:"status"`
	StartTime      *time.Time       `db:"start_time"`
	EndTime        *time.Time       `db:"end_time"`
	ErrorMessage   *string          `db:"error_message"`
	Results        *string          `db:"results"`
	CreatedAt      time.Time        `db:"created_at"`
}

func (r evaluationRow) toEvaluation() *Evaluation {
	return &Evaluation{
		ID:             r.ID,
		JobID:          r.JobID,
		ModelID:        r.ModelID,
		EvaluationPath: r.EvaluationPath,
		Configurations: []string(r.Configurations),
		Status:         r.Status,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		ErrorMessage:   r.ErrorMessage,
		Results:        r.Results,
	}
}

// textArray scans/values a Postgres TEXT[] as a {a,b,c}-literal string.
type textArray []string

func (a *textArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("textArray: unsupported scan type %T", src)
	}
	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		*a = textArray{}
		return nil
	}
	*a = strings.Split(raw, ",")
	return nil
}

func (a textArray) Value() (driver.Value, error) {
	return "{" + strings.Join(a, ",") + "}", nil
}
