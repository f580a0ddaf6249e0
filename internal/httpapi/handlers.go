package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/internal/database"
)

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, s.log, taxerrors.Wrap(taxerrors.KindClientMalformed, err, "decoding request body"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, s.log, taxerrors.Wrap(taxerrors.KindClientMalformed, err, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	vars := req.toVariables()
	if err := vars.Validate(); err != nil {
		writeError(w, s.log, err)
		return
	}

	job, training, err := s.submitter.SubmitTraining(r.Context(), vars, req.ModelName, req.ModelPath, req.ImagesPath, req.LabelsPath)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusAccepted, trainResponse{
		Message:    "training job submitted",
		TrainingID: training.ID,
		BatchJobID: job.ExternalID,
	})
}

func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	training, err := s.store.TrainingByJobID(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTrainingStatusResponse(*training))
}

func (s *Server) handleTrainingList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	trainings, err := s.store.ListTrainings(r.Context(), limit, offset)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]trainingStatusResponse, len(trainings))
	for i, t := range trainings {
		out[i] = newTrainingStatusResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	vars := req.toVariables()
	if err := vars.Validate(); err != nil {
		writeError(w, s.log, err)
		return
	}

	job, inference, err := s.submitter.SubmitInference(r.Context(), vars, req.ModelID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		PredictID:  inference.PredictID(),
		ModelID:    inference.ModelID,
		BatchJobID: job.ExternalID,
		Timestamp:  nowTimestamp(),
	})
}

func (s *Server) handlePredictStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inference, err := s.store.InferenceByJobID(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newPredictStatusResponse(*inference))
}

func (s *Server) handlePredictList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	inferences, err := s.store.ListInferences(r.Context(), limit, offset)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]predictStatusResponse, len(inferences))
	for i, inf := range inferences {
		out[i] = newPredictStatusResponse(inf)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	vars := req.toVariables()
	if err := vars.Validate(); err != nil {
		writeError(w, s.log, err)
		return
	}

	job, evaluation, err := s.submitter.SubmitEvaluation(r.Context(), vars, req.ModelID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusAccepted, evaluateResponse{
		Message:      "evaluation job submitted",
		EvaluationID: evaluation.ID,
		BatchJobID:   job.ExternalID,
	})
}

func (s *Server) handleEvaluationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	evaluation, err := s.store.EvaluationByJobID(r.Context(), id)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newEvaluationStatusResponse(*evaluation))
}

func (s *Server) handleEvaluationList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	evaluations, err := s.store.ListEvaluations(r.Context(), limit, offset)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]evaluationStatusResponse, len(evaluations))
	for i, e := range evaluations {
		out[i] = newEvaluationStatusResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status(r.Context())
	if !status.DatabaseOK || !status.ManagerRunning {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if !database.Healthy(r.Context(), s.db) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleHealthPoller(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status(r.Context())
	if !status.ManagerRunning {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "leader": boolStr(status.Leader)})
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
