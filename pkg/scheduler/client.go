package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
)

// Config controls the Scheduler Client's command contract (spec §4.1, §6).
type Config struct {
	SubmitCommand string        // default "sbatch"
	QueryCommand  string        // default "scontrol"
	Timeout       time.Duration // default 30s
	ScratchDir    string        // "" uses the OS temp dir
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{SubmitCommand: "sbatch", QueryCommand: "scontrol", Timeout: 30 * time.Second}
}

// Client is the Scheduler Client (C1): submits job scripts, queries job
// info by external id, and parses the results via the pure Scheduler Parser
// (C2) functions in parser.go. Submit/Info calls are circuit-broken so a wedged
// scheduler binary doesn't pin every monitor tick on a 30s timeout forever.
type Client struct {
	cfg     Config
	runner  Runner
	breaker *gobreaker.CircuitBreaker
	log     logr.Logger
}

var submittedJobRE = regexp.MustCompile(`Submitted batch job (\d+)`)

// NewClient builds a Scheduler Client. A nil runner defaults to shelling out
// to the real sbatch/scontrol binaries.
func NewClient(cfg Config, runner Runner, log logr.Logger) *Client {
	if runner == nil {
		runner = NewExecRunner()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "scheduler-client",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("scheduler client circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return &Client{cfg: cfg, runner: runner, breaker: breaker, log: log}
}

// Submit materializes a scratch file with script, invokes the submission
// command, parses "Submitted batch job <N>" from stdout, and removes the
// scratch file on every exit path (spec §4.1).
func (c *Client) Submit(ctx context.Context, script string) (string, error) {
	path, err := writeScratchFile(c.cfg.ScratchDir, ".sbatch", script)
	if err != nil {
		return "", err
	}
	defer cleanupScratchFile(path)

	result, err := c.run(ctx, c.cfg.SubmitCommand, path)
	if err != nil {
		return "", taxerrors.Wrap(taxerrors.KindInternal, err, "submission failed")
	}
	if result.ExitCode != 0 {
		return "", taxerrors.Newf(taxerrors.KindInternal, "submission failed: exit %d: %s", result.ExitCode, result.Stderr)
	}

	match := submittedJobRE.FindStringSubmatch(result.Stdout)
	if match == nil {
		return "", taxerrors.Newf(taxerrors.KindInternal, "submission failed: could not parse job id from output: %q", result.Stdout)
	}
	c.log.Info("job submitted", "external_id", match[1])
	return match[1], nil
}

// Info queries the external id's current state. A non-zero query exit is
// treated as NotFound (the job left the queue) rather than a transport
// error. A command-not-found, a timeout, an open circuit breaker, or query
// output that cannot be parsed returns an error.
func (c *Client) Info(ctx context.Context, externalID string) (JobInfo, bool, error) {
	result, err := c.run(ctx, c.cfg.QueryCommand, "show", "job", externalID)
	if err != nil {
		return JobInfo{}, false, taxerrors.Wrap(taxerrors.KindUnavailable, err, "querying scheduler")
	}
	if result.ExitCode != 0 {
		c.log.V(1).Info("job not found in scheduler queue, treating as completed", "external_id", externalID)
		return notFoundSummary(time.Now().UTC()), true, nil
	}

	fields, perr := ParseScontrolOutput(result.Stdout)
	if perr != nil {
		return JobInfo{}, false, taxerrors.Wrap(taxerrors.KindInternal, perr, "parsing scheduler output")
	}
	return Summarize(fields), true, nil
}

// IsActive reports whether externalID is currently PENDING or RUNNING.
func (c *Client) IsActive(ctx context.Context, externalID string) bool {
	info, found, err := c.Info(ctx, externalID)
	if err != nil || !found {
		return false
	}
	return ShouldMonitor(info.InternalStatus)
}

func (c *Client) run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		res, err := c.runner.Run(runCtx, name, args...)
		if err != nil {
			return CommandResult{}, err
		}
		return res, nil
	})
	if err != nil {
		return CommandResult{}, fmt.Errorf("running %s: %w", name, err)
	}
	return out.(CommandResult), nil
}
