package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectionRate AlertType = "debate_rejection_rate"
	AlertHighRisk      AlertType = "high_average_risk"
	AlertSpendOverrun  AlertType = "spend_overrun"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Rejection rate needs a minimum sample before it means anything.
	if snap.DebatesTotal >= 5 {
		rate := float64(snap.DebatesRejected) / float64(snap.DebatesTotal)
		if rate > a.cfg.RejectionRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertRejectionRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"Debate rejection rate %.1f%% exceeds threshold %.1f%% (%d rejected / %d total in last %dh)",
					rate*100, a.cfg.RejectionRateThreshold*100,
					snap.DebatesRejected, snap.DebatesTotal, snap.LookbackHours,
				),
				Details: map[string]any{
					"rejection_rate": rate,
					"threshold":      a.cfg.RejectionRateThreshold,
					"rejected":       snap.DebatesRejected,
					"total":          snap.DebatesTotal,
				},
				Timestamp: now,
			})
		}
	}

	if a.cfg.RiskScoreThreshold > 0 && snap.DebatesTotal > 0 && snap.AvgRiskScore > a.cfg.RiskScoreThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertHighRisk,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average risk score %.1f exceeds threshold %.1f over %d debate(s) in last %dh",
				snap.AvgRiskScore, a.cfg.RiskScoreThreshold, snap.DebatesTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_risk_score": snap.AvgRiskScore,
				"threshold":      a.cfg.RiskScoreThreshold,
				"debates_total":  snap.DebatesTotal,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.SpendUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertSpendOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Provider spend $%.2f exceeds threshold $%.2f in last %dh",
				snap.SpendUSD, a.cfg.CostThresholdUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"spend_usd":     snap.SpendUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"call_count":    snap.CallCount,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("monitoring: webhook returned status %d", e.status)
}

// sendWebhook posts a single alert to the webhook URL, retrying
// transient delivery failures.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	retryCfg := a.retry
	retryCfg.Operation = "alert webhook"
	retryCfg.ShouldRetry = func(err error) bool {
		var se *webhookStatusError
		if errors.As(err, &se) {
			return resilience.IsTransientHTTPStatus(se.status)
		}
		return resilience.IsTransient(err)
	}

	return resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "monitoring: create webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "monitoring: webhook request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 400 {
			return &webhookStatusError{status: resp.StatusCode}
		}
		return nil
	})
}
