package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vietddude/retryguard/internal/metrics"
)

// Refresher reloads the rule list on a cron schedule, independent of the
// cache's own version checks.
type Refresher struct {
	cron  *cron.Cron
	cache RuleCache
	log   *slog.Logger
}

// NewRefresher validates spec and prepares the schedule.
func NewRefresher(spec string, cache RuleCache, log *slog.Logger) (*Refresher, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Refresher{
		cron:  cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		cache: cache,
		log:   log,
	}
	if _, err := r.cron.AddFunc(spec, r.refresh); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start runs the schedule in the background.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.cache.Refresh(ctx); err != nil {
		r.log.Warn("Scheduled rules refresh failed", "error", err)
		return
	}
	list, err := r.cache.Rules(ctx)
	if err != nil {
		r.log.Warn("Scheduled rules refresh failed", "error", err)
		return
	}
	metrics.RulesLoaded.Set(float64(len(list)))
	r.log.Debug("Scheduled rules refresh", "version", r.cache.Version(), "count", len(list))
}
