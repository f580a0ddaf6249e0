// Package notify sends a best-effort Slack notification when a job reaches
// the terminal FAILED state (SPEC_FULL.md §11 domain stack). No
// pack file survives showing slack-go wired up — this follows the
// library's documented webhook API directly.
package notify

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/slack-go/slack"

	"github.com/eliadvertman/segctl/pkg/metrics"
)

// Notifier posts a message for a terminal-FAILED job. A zero-value
// Notifier (empty webhook URL) is a no-op, so wiring it in is safe even
// when no Slack webhook is configured.
type Notifier struct {
	webhookURL string
	log        logr.Logger
	metrics    *metrics.Recorder
}

// New returns a Notifier that posts to webhookURL. An empty URL disables
// posting entirely.
func New(webhookURL string, log logr.Logger, m *metrics.Recorder) *Notifier {
	return &Notifier{webhookURL: webhookURL, log: log, metrics: m}
}

// NotifyFailure posts a best-effort message describing a failed job. It
// never returns an error to the caller — the monitor loop's terminal
// transition has already committed; a dropped notification must not make
// it look like the commit failed.
func (n *Notifier) NotifyFailure(ctx context.Context, kind, jobID, externalID, reason string) {
	if n == nil || n.webhookURL == "" {
		return
	}
	if n.metrics != nil {
		n.metrics.NotifyFailures.Inc()
	}

	msg := &slack.WebhookMessage{
		Text: "segctl: " + kind + " job " + jobID + " (scheduler id " + externalID + ") failed: " + reason,
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		n.log.Error(err, "slack notification failed", "jobID", jobID, "kind", kind)
	}
}
