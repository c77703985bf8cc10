package budget

import (
	"log/slog"
	"time"
)

// EngineConfig holds the immutable inputs shared by every service.
type EngineConfig struct {
	Balances BalanceConfig
	PayDay   int
	CacheTTL time.Duration // zero disables the read cache
	Clock    Clock
	Logger   *slog.Logger
}

// Engine wires every service over one Store.
type Engine struct {
	Store      Store
	Balances   *Balances
	Periods    *PeriodManager
	Settlement *SettlementEngine
	Rollover   *RolloverWorkflow
	Catalog    *Catalog
	Recorder   *Recorder
	Config     EngineConfig
}

// NewEngine builds the services. With a positive CacheTTL the store is
// wrapped in a CachedStore first.
func NewEngine(store Store, cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	cfg.Logger = logger(cfg.Logger)
	if cfg.CacheTTL > 0 {
		cached := NewCachedStore(store, cfg.CacheTTL)
		cached.Clock = cfg.Clock
		store = cached
	}

	periods := &PeriodManager{Store: store, Clock: cfg.Clock, Logger: cfg.Logger}
	settlement := &SettlementEngine{Store: store, Clock: cfg.Clock, Logger: cfg.Logger}
	catalog := &Catalog{Store: store, Clock: cfg.Clock, Logger: cfg.Logger}

	return &Engine{
		Store: store,
		Balances: &Balances{
			Logs:    store,
			Periods: store,
			Config:  cfg.Balances,
			Clock:   cfg.Clock,
		},
		Periods:    periods,
		Settlement: settlement,
		Rollover: &RolloverWorkflow{
			Store:      store,
			Periods:    periods,
			Settlement: settlement,
			Clock:      cfg.Clock,
			PayDay:     cfg.PayDay,
			Logger:     cfg.Logger.With("component", "rollover"),
		},
		Catalog: catalog,
		Recorder: &Recorder{
			Store:   store,
			Catalog: catalog,
			Clock:   cfg.Clock,
			Logger:  cfg.Logger,
		},
		Config: cfg,
	}
}

// Today is the engine clock's calendar day.
func (e *Engine) Today() Date { return e.Config.Clock.today() }

// Invalidate drops cached reads after a write that bypassed the engine.
func (e *Engine) Invalidate() {
	if c, ok := e.Store.(*CachedStore); ok {
		c.Invalidate()
	}
}
