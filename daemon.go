package ddns

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// MinInterval is the shortest interval a Daemon will tick on.
const MinInterval = 1 * time.Minute

// Daemon runs a DDNSClient on an interval.
//
// At most one reconciliation per domain is in flight at a time;
// a Trigger that arrives while one is running waits for it and shares its result.
type Daemon struct {
	Client    DDNSClient
	Interval  time.Duration
	RunOnInit bool // reconcile immediately instead of waiting for the first tick

	// Logger receives fatal reconciliation errors.
	// A nil Logger means the logger configured in the client, if the client came from New.
	Logger *slog.Logger

	group singleflight.Group
}

// Run blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	interval := d.Interval
	if interval < MinInterval {
		interval = MinInterval
	}
	logger := d.logger()
	logger.Info("starting ddns daemon", "domain", d.Client.Domain(), "interval", interval, "run_on_init", d.RunOnInit)

	if d.RunOnInit {
		d.Trigger(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping ddns daemon", "domain", d.Client.Domain())
			return
		case <-ticker.C:
			d.Trigger(ctx)
		}
	}
}

// Trigger reconciles now. A fatal error is logged as well as returned.
func (d *Daemon) Trigger(ctx context.Context) (Report, error) {
	v, err, shared := d.group.Do(d.Client.Domain(), func() (any, error) {
		return d.Client.Reconcile(ctx)
	})
	report, _ := v.(Report)
	if err != nil && !shared {
		d.logger().Error("reconciliation failed", "domain", d.Client.Domain(), "error", err)
	}
	return report, err
}

func (d *Daemon) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	if c, ok := d.Client.(*client); ok && c.logger != nil {
		return c.logger
	}
	return discard
}
