// Package httpapi implements the ancillary HTTP surface (spec §6): the core
// engine persists its state independent of this package, but clients read
// submission results and job status through it. Routing follows the
// teacher's chi + go-chi/cors wiring style (test/integration/gateway/cors_test.go).
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/pkg/engine"
	"github.com/eliadvertman/segctl/pkg/store"
	"github.com/eliadvertman/segctl/pkg/template"
)

// Submitter is the subset of pkg/submission.Facades the HTTP layer drives.
type Submitter interface {
	SubmitTraining(ctx context.Context, vars template.TrainingVariables, name, modelPath string, imagesPath, labelsPath *string) (*store.Job, *store.Training, error)
	SubmitInference(ctx context.Context, vars template.InferenceVariables, modelID string) (*store.Job, *store.Inference, error)
	SubmitEvaluation(ctx context.Context, vars template.EvaluationVariables, modelID string) (*store.Job, *store.Evaluation, error)
}

// Engine is the subset of pkg/engine.Host the /health endpoints need.
type Engine interface {
	Status(ctx context.Context) engine.Status
}

// Server bundles every dependency the HTTP handlers need.
type Server struct {
	submitter Submitter
	store     store.Store
	engine    Engine
	db        *sql.DB
	registry  *prometheus.Registry
	log       logr.Logger
	validate  *validator.Validate
}

// New builds a Server. db is the connection pool used by /health/db and
// registry the one used by /metrics; either may be nil in tests that don't
// exercise those endpoints.
func New(submitter Submitter, st store.Store, eng Engine, db *sql.DB, registry *prometheus.Registry, log logr.Logger) *Server {
	return &Server{submitter: submitter, store: st, engine: eng, db: db, registry: registry, log: log, validate: validator.New()}
}

// Router builds the chi router exposing the endpoints from spec §6, with
// permissive CORS suitable for a browser-facing status dashboard.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/health/db", s.handleHealthDB)
	r.Get("/health/poller", s.handleHealthPoller)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/training", func(r chi.Router) {
		r.Post("/train", s.handleTrain)
		r.Get("/{id}/status", s.handleTrainingStatus)
		r.Get("/list", s.handleTrainingList)
	})
	r.Route("/api/v1/predict", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
		r.Get("/{id}/status", s.handlePredictStatus)
		r.Get("/list", s.handlePredictList)
	})
	r.Route("/api/v1/evaluation", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/{id}/status", s.handleEvaluationStatus)
		r.Get("/list", s.handleEvaluationList)
	})

	return r
}

func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit, offset = 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, taxerrors.New(taxerrors.KindClientMalformed, "invalid limit")
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, taxerrors.New(taxerrors.KindClientMalformed, "invalid offset")
		}
	}
	return limit, offset, nil
}

func nowTimestamp() string {
	return time.Now().UTC().Format(isoTimestamp)
}
