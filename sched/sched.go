// Package sched runs the client's background maintenance jobs on cron
// schedules: periodic session revalidation (so a token revoked server-side
// is noticed without waiting for a user action to fail) and TTL cache
// pruning. Expressions are standard 5-field cron, evaluated in UTC.
package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quickbasket/storefront-go/notify"
	"github.com/quickbasket/storefront-go/session"
)

var standardParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ParseExpr validates a UTC-only 5-field cron expression.
func ParseExpr(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return nil, fmt.Errorf("sched: cron expression is required")
	}

	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return nil, fmt.Errorf("sched: cron expression must be UTC-only (timezone prefixes are not allowed)")
	}

	schedule, err := standardParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("sched: invalid cron expression: %w", err)
	}
	return schedule, nil
}

// NextRunUTC returns the next fire time for expr after now, in UTC.
func NextRunUTC(expr string, now time.Time) (time.Time, error) {
	schedule, err := ParseExpr(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now.UTC()), nil
}

// Revalidator rechecks the current session token against the backend.
// *session.Store satisfies it.
type Revalidator interface {
	ValidateNow(ctx context.Context) error
}

// Pruner drops expired cache entries. *cache.Cache satisfies it.
type Pruner interface {
	Prune() int
}

// Config configures the background jobs.
type Config struct {
	// RevalidateCron schedules session revalidation. Empty disables it.
	RevalidateCron string

	// PruneCron schedules cache pruning. Empty disables it.
	PruneCron string

	// JobTimeout bounds each revalidation call (default: 30s).
	JobTimeout time.Duration

	// Bus receives job notifications. Optional.
	Bus notify.Bus
}

// Jobs owns the cron runner.
type Jobs struct {
	cron    *cron.Cron
	timeout time.Duration
	bus     notify.Bus
}

// New creates the background jobs without starting them. Both schedules
// are validated up front so a bad expression fails at construction, not
// at first fire.
func New(cfg Config, reval Revalidator, pruner Pruner) (*Jobs, error) {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	j := &Jobs{
		cron:    cron.New(cron.WithParser(standardParser), cron.WithLocation(time.UTC)),
		timeout: timeout,
		bus:     cfg.Bus,
	}

	if cfg.RevalidateCron != "" {
		if _, err := ParseExpr(cfg.RevalidateCron); err != nil {
			return nil, err
		}
		if reval == nil {
			return nil, fmt.Errorf("sched: revalidate schedule set but no revalidator given")
		}
		if _, err := j.cron.AddFunc(cfg.RevalidateCron, func() { j.revalidate(reval) }); err != nil {
			return nil, fmt.Errorf("sched: add revalidate job: %w", err)
		}
	}

	if cfg.PruneCron != "" {
		if _, err := ParseExpr(cfg.PruneCron); err != nil {
			return nil, err
		}
		if pruner == nil {
			return nil, fmt.Errorf("sched: prune schedule set but no pruner given")
		}
		if _, err := j.cron.AddFunc(cfg.PruneCron, func() { j.prune(pruner) }); err != nil {
			return nil, fmt.Errorf("sched: add prune job: %w", err)
		}
	}

	return j, nil
}

// Start launches the cron runner.
func (j *Jobs) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (j *Jobs) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Jobs) revalidate(reval Revalidator) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	// A 401 inside ValidateNow fires the global auth-expired cascade on
	// its own; other failures (network blips) are reported and retried
	// at the next tick. An anonymous session has nothing to recheck.
	if err := reval.ValidateNow(ctx); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return
		}
		notify.Warn(j.bus, notify.OpSessionRecheck, fmt.Sprintf("session recheck: %v", err))
		return
	}
	notify.Succeeded(j.bus, notify.OpSessionRecheck, "session still valid", 0)
}

func (j *Jobs) prune(pruner Pruner) {
	dropped := pruner.Prune()
	if dropped > 0 {
		notify.Succeeded(j.bus, notify.OpCachePrune, fmt.Sprintf("pruned %d expired cache entries", dropped), 0)
	}
}
