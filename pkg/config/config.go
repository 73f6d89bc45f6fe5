package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Cart    CartConfig
	Pricing PricingConfig
	Orders  OrdersConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DELIVERLY_APP_ENV" default:"dev"`
	Port         string `envconfig:"DELIVERLY_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"DELIVERLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DELIVERLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	// Path of the local sqlite file holding the persisted cart between
	// sessions. ":memory:" keeps the cart session-scoped.
	Path string `envconfig:"DELIVERLY_CART_DB_PATH" default:"deliverly-cart.db"`
}

type CartConfig struct {
	// When true, adding an item from another restaurant replaces the cart
	// instead of failing with RESTAURANT_CONFLICT.
	ReplaceOnRestaurantConflict bool `envconfig:"DELIVERLY_CART_REPLACE_ON_CONFLICT" default:"false"`

	// Simulated latency for cart confirmation when no remote confirmer is
	// configured.
	ConfirmLatency time.Duration `envconfig:"DELIVERLY_CART_CONFIRM_LATENCY" default:"150ms"`
}

type PricingConfig struct {
	BaseURL        string        `envconfig:"DELIVERLY_PRICING_BASE_URL" required:"true"`
	Timeout        time.Duration `envconfig:"DELIVERLY_PRICING_TIMEOUT" default:"10s"`
	DebounceWindow time.Duration `envconfig:"DELIVERLY_PRICING_DEBOUNCE_WINDOW" default:"300ms"`
}

type OrdersConfig struct {
	BaseURL string        `envconfig:"DELIVERLY_ORDERS_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"DELIVERLY_ORDERS_TIMEOUT" default:"15s"`
}
