package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/warp/envelope-ledger/budget"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"envelope.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	Currency string `env:"CURRENCY" envDefault:"TWD"`

	// Opening balances; immutable inputs to the Back_Up and Free_Fund derivations.
	BackUpInitial   decimal.Decimal `env:"BACK_UP_INITIAL" envDefault:"0"`
	FreeFundInitial decimal.Decimal `env:"FREE_FUND_INITIAL" envDefault:"0"`

	PayDay        int           `env:"PAY_DAY" envDefault:"5"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	WatchInterval time.Duration `env:"WATCH_INTERVAL" envDefault:"1h"`
	AutoSettle    bool          `env:"AUTO_SETTLE" envDefault:"false"`
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	LoadDemo      bool          `env:"LOAD_DEMO" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges env tags cannot express.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("PORT %d out of range", c.Port)
	case c.PayDay < 1 || c.PayDay > 28:
		return fmt.Errorf("PAY_DAY %d must be between 1 and 28", c.PayDay)
	case c.CacheTTL < 0:
		return fmt.Errorf("CACHE_TTL must not be negative")
	case c.WatchInterval < 0:
		return fmt.Errorf("WATCH_INTERVAL must not be negative")
	case c.DBPath == "":
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

// Balances returns the opening balances for budget.Balances.
func (c Config) Balances() budget.BalanceConfig {
	return budget.BalanceConfig{
		BackUpInitial:   budget.NewMoneyFromDecimal(c.BackUpInitial),
		FreeFundInitial: budget.NewMoneyFromDecimal(c.FreeFundInitial),
	}
}
