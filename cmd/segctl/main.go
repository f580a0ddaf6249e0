// Command segctl runs the Segmentation Batch Control Plane: the Engine Host
// (reconciliation loop against SLURM + Postgres) and its ancillary HTTP
// surface in one process, wired together the way the teacher's cmd/
// binaries assemble their own dependency graph from internal/config through
// to a registered process-exit shutdown hook.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/eliadvertman/segctl/internal/config"
	"github.com/eliadvertman/segctl/internal/database"
	"github.com/eliadvertman/segctl/internal/httpapi"
	"github.com/eliadvertman/segctl/internal/leaderlock"
	"github.com/eliadvertman/segctl/internal/logging"
	"github.com/eliadvertman/segctl/internal/notify"
	"github.com/eliadvertman/segctl/pkg/engine"
	"github.com/eliadvertman/segctl/pkg/manager"
	"github.com/eliadvertman/segctl/pkg/metrics"
	"github.com/eliadvertman/segctl/pkg/monitor"
	"github.com/eliadvertman/segctl/pkg/scheduler"
	"github.com/eliadvertman/segctl/pkg/store"
	"github.com/eliadvertman/segctl/pkg/submission"
	"github.com/eliadvertman/segctl/pkg/template"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("SEGCTL_CONFIG_FILE"))
	if err != nil {
		os.Stderr.WriteString("loading config: " + err.Error() + "\n")
		return err
	}

	log, err := logging.Build(cfg.Logging)
	if err != nil {
		os.Stderr.WriteString("building logger: " + err.Error() + "\n")
	}

	if err := database.Migrate(cfg.Database); err != nil {
		log.Error(err, "running migrations")
		return err
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Error(err, "connecting to database")
		return err
	}
	defer db.Close()

	st := store.New(db, func(ctx context.Context, old *sqlx.DB) (*sqlx.DB, error) {
		return database.Reconnect(ctx, old, cfg.Database, log)
	}, log)

	trainingRenderer, err := template.NewRenderer(filepath.Join(cfg.TemplatesDir, "training.sbatch.tmpl"))
	if err != nil {
		log.Error(err, "loading training template")
		return err
	}
	inferenceRenderer, err := template.NewRenderer(filepath.Join(cfg.TemplatesDir, "inference.sbatch.tmpl"))
	if err != nil {
		log.Error(err, "loading inference template")
		return err
	}
	evaluationRenderer, err := template.NewRenderer(filepath.Join(cfg.TemplatesDir, "evaluation.sbatch.tmpl"))
	if err != nil {
		log.Error(err, "loading evaluation template")
		return err
	}

	templateWatcher, err := config.NewWatcher(log,
		filepath.Join(cfg.TemplatesDir, "training.sbatch.tmpl"),
		filepath.Join(cfg.TemplatesDir, "inference.sbatch.tmpl"),
		filepath.Join(cfg.TemplatesDir, "evaluation.sbatch.tmpl"),
	)
	if err != nil {
		log.Error(err, "watching templates directory")
		return err
	}
	renderersByPath := map[string]*template.Renderer{
		filepath.Join(cfg.TemplatesDir, "training.sbatch.tmpl"):   trainingRenderer,
		filepath.Join(cfg.TemplatesDir, "inference.sbatch.tmpl"):  inferenceRenderer,
		filepath.Join(cfg.TemplatesDir, "evaluation.sbatch.tmpl"): evaluationRenderer,
	}
	watcherStop := make(chan struct{})
	go templateWatcher.Run(watcherStop, func(path string) {
		if r, ok := renderersByPath[path]; ok {
			if err := r.Reload(); err != nil {
				log.Error(err, "reloading template", "path", path)
			}
		}
	})
	defer close(watcherStop)

	schedClient := scheduler.NewClient(scheduler.DefaultConfig(), nil, log)
	facades := submission.New(schedClient, st, trainingRenderer, inferenceRenderer, evaluationRenderer, log)

	registry := prometheus.NewRegistry()
	recorder := metrics.New(registry)
	notifier := notify.New(cfg.SlackWebhookURL, log, recorder)

	trainingMonitor := monitor.New(monitor.TrainingHandler{}, st, schedClient, notifier, recorder, log, cfg.PollInterval)
	inferenceMonitor := monitor.New(monitor.InferenceHandler{}, st, schedClient, notifier, recorder, log, cfg.PollInterval)
	evaluationMonitor := monitor.New(monitor.EvaluationHandler{}, st, schedClient, notifier, recorder, log, cfg.PollInterval)
	mgr := manager.New(trainingMonitor, inferenceMonitor, evaluationMonitor, st, log)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer redisClient.Close()
	lock := leaderlock.New(redisClient, cfg.Redis.LockKey, cfg.Redis.LockTTL)

	host := engine.New(mgr, lock, db.DB, log, cfg.Redis.LockTTL/3)
	if err := host.Start(ctx); err != nil {
		log.Error(err, "starting engine host")
		return err
	}

	server := httpapi.New(facades, st, host, db.DB, registry, log)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router(cfg.CORSAllowedOrigins)}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "http server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "shutting down http server")
	}
	host.Stop()
	return nil
}
