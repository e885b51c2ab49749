package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/notify"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertEnrichmentFailureRate AlertType = "enrichment_failure_rate"
	AlertUnhandledReplies      AlertType = "unhandled_replies"
)

// minFinished is the sample size below which the failure rate is noise.
const minFinished = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts through a notifier when they are breached.
type Alerter struct {
	cfg      config.MonitoringConfig
	notifier notify.Notifier
}

// NewAlerter creates an Alerter. A nil notifier drops alerts.
func NewAlerter(cfg config.MonitoringConfig, n notify.Notifier) *Alerter {
	if n == nil {
		n = notify.Nop{}
	}
	return &Alerter{cfg: cfg, notifier: n}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.Finished()
	rate := snap.FailureRate()
	if a.cfg.FailureRateThreshold > 0 && finished >= minFinished && rate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEnrichmentFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Enrichment failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished)",
				rate*100, a.cfg.FailureRateThreshold*100, snap.Failed, finished,
			),
			Details: map[string]any{
				"failure_rate": rate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.Failed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.UnhandledRepliesThreshold > 0 && snap.UnhandledReplies > a.cfg.UnhandledRepliesThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertUnhandledReplies,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d replies are waiting to be handled (threshold %d)",
				snap.UnhandledReplies, a.cfg.UnhandledRepliesThreshold,
			),
			Details: map[string]any{
				"unhandled": snap.UnhandledReplies,
				"threshold": a.cfg.UnhandledRepliesThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts alerts through the notifier and returns how many were
// handed off.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	for _, alert := range alerts {
		a.notifier.Send(ctx, notify.Alert(alert.Severity, alert.Message))
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
	}
	return len(alerts)
}
