package httpapi

import (
	"time"

	"github.com/eliadvertman/segctl/pkg/store"
	"github.com/eliadvertman/segctl/pkg/template"
)

const isoTimestamp = "2006-01-02T15:04:05Z"

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(isoTimestamp)
	return &s
}

// trainRequest is the body of POST /api/v1/training/train.
type trainRequest struct {
	ModelName  string  `json:"modelName" validate:"required"`
	FoldIndex  int     `json:"foldIndex" validate:"gte=0"`
	TaskNumber int     `json:"taskNumber" validate:"gte=0"`
	ModelPath  string  `json:"modelPath" validate:"required"`
	ImagesPath *string `json:"imagesPath"`
	LabelsPath *string `json:"labelsPath"`
}

func (r trainRequest) toVariables() template.TrainingVariables {
	return template.TrainingVariables{
		ModelName:  r.ModelName,
		FoldIndex:  r.FoldIndex,
		TaskNumber: r.TaskNumber,
	}
}

type trainResponse struct {
	Message    string `json:"message"`
	TrainingID string `json:"trainingId"`
	BatchJobID string `json:"batchJobId"`
}

type trainingStatusResponse struct {
	TrainingID   string  `json:"trainingId"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	StartTime    *string `json:"startTime,omitempty"`
	EndTime      *string `json:"endTime,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

func newTrainingStatusResponse(t store.Training) trainingStatusResponse {
	return trainingStatusResponse{
		TrainingID:   t.ID,
		Status:       string(t.Status),
		Progress:     t.Progress,
		StartTime:    formatTime(t.StartTime),
		EndTime:      formatTime(t.EndTime),
		ErrorMessage: t.ErrorMessage,
	}
}

// predictRequest is the body of POST /api/v1/predict/predict.
type predictRequest struct {
	ModelID   string `json:"modelId" validate:"required"`
	ModelPath string `json:"modelPath" validate:"required"`
	InputData string `json:"inputData" validate:"required"`
	OutputDir string `json:"outputDir" validate:"required"`
}

func (r predictRequest) toVariables() template.InferenceVariables {
	return template.InferenceVariables{
		ModelPath: r.ModelPath,
		InputData: r.InputData,
		OutputDir: r.OutputDir,
	}
}

type predictResponse struct {
	PredictID  string `json:"predictId"`
	ModelID    string `json:"modelId"`
	BatchJobID string `json:"batchJobId"`
	Timestamp  string `json:"timestamp"`
}

type predictStatusResponse struct {
	PredictID    string  `json:"predictId"`
	Status       string  `json:"status"`
	Prediction   *string `json:"prediction,omitempty"`
	StartTime    *string `json:"startTime,omitempty"`
	EndTime      *string `json:"endTime,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

func newPredictStatusResponse(i store.Inference) predictStatusResponse {
	return predictStatusResponse{
		PredictID:    i.PredictID(),
		Status:       string(i.Status),
		Prediction:   i.Prediction,
		StartTime:    formatTime(i.StartTime),
		EndTime:      formatTime(i.EndTime),
		ErrorMessage: i.ErrorMessage,
	}
}

// evaluateRequest is the body of POST /api/v1/evaluation/evaluate.
type evaluateRequest struct {
	ModelID        string   `json:"modelId" validate:"required"`
	ModelPath      string   `json:"modelPath" validate:"required"`
	EvaluationPath string   `json:"evaluationPath" validate:"required"`
	Configurations []string `json:"configurations" validate:"required,min=1"`
}

func (r evaluateRequest) toVariables() template.EvaluationVariables {
	configs := make([]template.EvaluationConfiguration, len(r.Configurations))
	for i, c := range r.Configurations {
		configs[i] = template.EvaluationConfiguration(c)
	}
	return template.EvaluationVariables{
		ModelPath:      r.ModelPath,
		EvaluationPath: r.EvaluationPath,
		Configurations: configs,
	}
}

type evaluateResponse struct {
	Message      string `json:"message"`
	EvaluationID string `json:"evaluationId"`
	BatchJobID   string `json:"batchJobId"`
}

type evaluationStatusResponse struct {
	EvaluationID string  `json:"evaluationId"`
	Status       string  `json:"status"`
	StartTime    *string `json:"startTime,omitempty"`
	EndTime      *string `json:"endTime,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	Results      *string `json:"results,omitempty"`
}

func newEvaluationStatusResponse(e store.Evaluation) evaluationStatusResponse {
	return evaluationStatusResponse{
		EvaluationID: e.ID,
		Status:       string(e.Status),
		StartTime:    formatTime(e.StartTime),
		EndTime:      formatTime(e.EndTime),
		ErrorMessage: e.ErrorMessage,
		Results:      e.Results,
	}
}
