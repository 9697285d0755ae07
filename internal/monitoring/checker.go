package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/parleylabs/parley/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically collects a snapshot, evaluates it against the
// alert thresholds, and delivers whatever fires. One sweep runs at
// startup so a misconfigured threshold surfaces before the first tick.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	log       *zap.Logger
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
	}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckIntervalSecs > 0 {
		return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	}
	return defaultCheckInterval
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("alert checker running",
		zap.Duration("interval", c.interval()),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.String("workspace_id", c.cfg.WorkspaceID),
	)

	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		default:
			c.sweep(ctx)
		}

		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// sweep performs one collect-evaluate-deliver pass.
func (c *Checker) sweep(ctx context.Context) {
	snap, err := c.collector.Collect(ctx, c.cfg.WorkspaceID, c.cfg.LookbackWindowHours)
	if err != nil {
		c.log.Error("metrics collection failed", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		c.log.Debug("thresholds clear",
			zap.Int("debates_total", snap.DebatesTotal),
			zap.Float64("spend_usd", snap.SpendUSD),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Info("alert sweep complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
