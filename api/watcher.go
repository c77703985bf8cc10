/*
watcher.go - Overdue period watcher

PURPOSE:
  Periodically checks whether the Active period has passed its end date.
  An overdue period stays Active until someone settles it; the watcher
  makes that visible in the logs and, with AutoSettle, settles it.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on Start
  - Settlement is idempotent, so an auto-settle that overlaps a manual
    one (or a retry after a store failure) is harmless

CONFIGURATION:
  - Interval:   WATCH_INTERVAL (default: 1 hour)
  - AutoSettle: AUTO_SETTLE (default: false)

USAGE:
  watcher := NewOverdueWatcher(engine, time.Hour, false, logger)
  watcher.Start()
  // ... later
  watcher.Stop()

SEE ALSO:
  - budget/settlement.go: SettlementEngine
  - handlers.go: SettlePeriod endpoint (manual settlement)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/envelope-ledger/budget"
)

// OverdueWatcher watches the Active period for overdue status.
type OverdueWatcher struct {
	Engine     *budget.Engine
	Interval   time.Duration
	AutoSettle bool
	Logger     *slog.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// WatchResult is the outcome of one check.
type WatchResult struct {
	PeriodID string
	Overdue  bool
	Settled  bool
}

// NewOverdueWatcher creates a watcher. A non-positive interval means one hour.
func NewOverdueWatcher(engine *budget.Engine, interval time.Duration, autoSettle bool, logger *slog.Logger) *OverdueWatcher {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueWatcher{
		Engine:     engine,
		Interval:   interval,
		AutoSettle: autoSettle,
		Logger:     logger.With("component", "watcher"),
	}
}

// Start begins the watcher.
func (ow *OverdueWatcher) Start() {
	ow.mu.Lock()
	defer ow.mu.Unlock()

	if ow.running {
		return
	}
	ow.running = true
	ow.stop = make(chan struct{})
	ow.ticker = time.NewTicker(ow.Interval)
	ow.wg.Add(1)

	go ow.run()

	ow.Logger.Info("watcher started", "interval", ow.Interval.String(), "auto_settle", ow.AutoSettle)
}

// Stop stops the watcher and waits for an in-flight check.
func (ow *OverdueWatcher) Stop() {
	ow.mu.Lock()
	defer ow.mu.Unlock()

	if !ow.running {
		return
	}
	ow.ticker.Stop()
	close(ow.stop)
	ow.wg.Wait()
	ow.running = false
	ow.Logger.Info("watcher stopped")
}

func (ow *OverdueWatcher) run() {
	defer ow.wg.Done()

	// Run immediately on start
	ow.check()

	for {
		select {
		case <-ow.ticker.C:
			ow.check()
		case <-ow.stop:
			return
		}
	}
}

func (ow *OverdueWatcher) check() {
	ctx, cancel := context.WithTimeout(context.Background(), ow.Interval)
	defer cancel()
	if _, err := ow.CheckOnce(ctx); err != nil {
		ow.Logger.Error("overdue check failed", "error", err, "retryable", budget.IsRetryable(err))
	}
}

// CheckOnce runs one check. With no Active period it reports nothing.
func (ow *OverdueWatcher) CheckOnce(ctx context.Context) (WatchResult, error) {
	p, err := ow.Engine.Periods.Current(ctx)
	if err != nil {
		return WatchResult{}, err
	}
	if p == nil {
		ow.Logger.Debug("no active period")
		return WatchResult{}, nil
	}

	res := WatchResult{PeriodID: p.ID, Overdue: ow.Engine.Periods.IsOverdue(*p)}
	if !res.Overdue {
		return res, nil
	}

	ow.Logger.Warn("active period is overdue",
		"period_id", p.ID,
		"end_date", p.EndDate.String(),
		"today", ow.Engine.Today().String(),
	)
	if !ow.AutoSettle {
		return res, nil
	}

	out, err := ow.Engine.Settlement.Settle(ctx, p.ID)
	if err != nil {
		return res, err
	}
	res.Settled = true
	ow.Logger.Info("overdue period auto-settled",
		"period_id", p.ID,
		"net", out.Record.NetResult.String(),
		"impact_account", string(out.Record.ImpactAccount),
	)
	return res, nil
}
