package template

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

var validate = validator.New()

// Variables is a typed, validated bundle of named placeholders for one
// job kind's sbatch template.
type Variables interface {
	// Validate checks the bundle's own constraints (non-empty strings,
	// non-negative indexes, enum membership) independent of any template.
	Validate() error
	// ToMap renders every field to its string substitution, keyed by the
	// placeholder name used in the template.
	ToMap() map[string]string
}

// EvaluationConfiguration enumerates the nnU-Net-style configuration names
// accepted by the evaluation template (spec §4.3).
type EvaluationConfiguration string

const (
	Config2D                EvaluationConfiguration = "2d"
	Config3DFullRes         EvaluationConfiguration = "3d_fullres"
	Config3DLowRes          EvaluationConfiguration = "3d_lowres"
	Config3DCascadeLowRes   EvaluationConfiguration = "3d_cascade_lowres"
)

var validConfigurations = map[EvaluationConfiguration]bool{
	Config2D: true, Config3DFullRes: true, Config3DLowRes: true, Config3DCascadeLowRes: true,
}

// TrainingVariables is the canonical training template contract (spec §9
// Open Question, resolved in DESIGN.md in favor of fold_index+task_number
// over the hardcoded-task_number=130 alternative).
type TrainingVariables struct {
	ModelName  string `validate:"required"`
	FoldIndex  int    `validate:"gte=0"`
	TaskNumber int    `validate:"gte=0"`
	Timestamp  int64
}

// Validate enforces non-empty model name and non-negative indexes.
func (v TrainingVariables) Validate() error {
	if err := validate.Struct(v); err != nil {
		return taxerrors.Wrap(taxerrors.KindClientMalformed, err, "invalid training template variables")
	}
	return nil
}

// ToMap renders the bundle's placeholders. Pure: the caller is responsible
// for stamping Timestamp before rendering, so that rendering the same
// bundle twice is always byte-identical (spec §8).
func (v TrainingVariables) ToMap() map[string]string {
	return map[string]string{
		"model_name":  v.ModelName,
		"fold_index":  strconv.Itoa(v.FoldIndex),
		"task_number": strconv.Itoa(v.TaskNumber),
		"timestamp":   strconv.FormatInt(v.Timestamp, 10),
	}
}

// InferenceVariables is the inference template contract.
type InferenceVariables struct {
	ModelPath string `validate:"required"`
	InputData string `validate:"required"`
	OutputDir string `validate:"required"`
	Timestamp int64
}

func (v InferenceVariables) Validate() error {
	if err := validate.Struct(v); err != nil {
		return taxerrors.Wrap(taxerrors.KindClientMalformed, err, "invalid inference template variables")
	}
	return nil
}

func (v InferenceVariables) ToMap() map[string]string {
	return map[string]string{
		"model_path": v.ModelPath,
		"input_data": v.InputData,
		"output_dir": v.OutputDir,
		"timestamp":  strconv.FormatInt(v.Timestamp, 10),
	}
}

// EvaluationVariables is the evaluation template contract.
type EvaluationVariables struct {
	ModelPath       string `validate:"required"`
	EvaluationPath  string `validate:"required"`
	Configurations  []EvaluationConfiguration
	Timestamp       int64
}

func (v EvaluationVariables) Validate() error {
	if err := validate.Struct(v); err != nil {
		return taxerrors.Wrap(taxerrors.KindClientMalformed, err, "invalid evaluation template variables")
	}
	if len(v.Configurations) == 0 {
		return taxerrors.New(taxerrors.KindClientMalformed, "at least one configuration is required")
	}
	for _, c := range v.Configurations {
		if !validConfigurations[c] {
			return taxerrors.Newf(taxerrors.KindClientMalformed, "invalid evaluation configuration: %q", c)
		}
	}
	return nil
}

func (v EvaluationVariables) ToMap() map[string]string {
	names := make([]string, 0, len(v.Configurations))
	for _, c := range v.Configurations {
		names = append(names, string(c))
	}
	sort.Strings(names)
	configs := ""
	for i, n := range names {
		if i > 0 {
			configs += " "
		}
		configs += n
	}
	return map[string]string{
		"model_path":      v.ModelPath,
		"evaluation_path": v.EvaluationPath,
		"configurations":  configs,
		"timestamp":       strconv.FormatInt(v.Timestamp, 10),
	}
}

// formatMissing renders a missing-placeholder set the way the source's
// Python error message does: a sorted bracketed list of quoted names.
func formatMissing(missing []string) string {
	sort.Strings(missing)
	s := "["
	for i, m := range missing {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("'%s'", m)
	}
	return s + "]"
}
