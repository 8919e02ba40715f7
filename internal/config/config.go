package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the process needs at startup. It is loaded once in
// cmd/ and passed by reference; nothing re-reads the environment on hot paths.
type Config struct {
	ServerPort        string        `mapstructure:"SERVER_PORT"`
	RunLocal          bool          `mapstructure:"RUN_LOCAL"`
	UsersTable        string        `mapstructure:"USERS_TABLE"`
	ProductsTable     string        `mapstructure:"PRODUCTS_TABLE"`
	OrdersTable       string        `mapstructure:"ORDERS_TABLE"`
	SellerOrdersTable string        `mapstructure:"SELLER_ORDERS_TABLE"`
	NotificationQueue string        `mapstructure:"NOTIFICATIONS_QUEUE_URL"`
	SenderAddress     string        `mapstructure:"NOTIFICATIONS_SENDER"`
	CheckoutTimeout   time.Duration `mapstructure:"CHECKOUT_TIMEOUT"`
	CheckoutRetries   int           `mapstructure:"CHECKOUT_RETRIES"`
	MetricsNamespace  string        `mapstructure:"METRICS_NAMESPACE"`
}

// Load reads configuration from the environment. Tuning knobs have defaults;
// each binary validates the keys it actually uses (the API additionally calls
// RequireTables, the worker needs nothing beyond the defaults).
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("RUN_LOCAL", false)
	v.SetDefault("CHECKOUT_TIMEOUT", 5*time.Second)
	v.SetDefault("CHECKOUT_RETRIES", 3)
	v.SetDefault("METRICS_NAMESPACE", "Marketplace")
	v.SetDefault("NOTIFICATIONS_SENDER", "no-reply@tesoroschoco.example")
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env vars through Unmarshal; bind
	// each key explicitly.
	for _, key := range []string{
		"SERVER_PORT", "RUN_LOCAL",
		"USERS_TABLE", "PRODUCTS_TABLE", "ORDERS_TABLE", "SELLER_ORDERS_TABLE",
		"NOTIFICATIONS_QUEUE_URL", "NOTIFICATIONS_SENDER",
		"CHECKOUT_TIMEOUT", "CHECKOUT_RETRIES", "METRICS_NAMESPACE",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CheckoutRetries < 1 {
		return nil, fmt.Errorf("CHECKOUT_RETRIES must be >= 1, got %d", cfg.CheckoutRetries)
	}

	return &cfg, nil
}

// RequireTables verifies all four DynamoDB table names are set.
func (c *Config) RequireTables() error {
	for name, val := range map[string]string{
		"USERS_TABLE":         c.UsersTable,
		"PRODUCTS_TABLE":      c.ProductsTable,
		"ORDERS_TABLE":        c.OrdersTable,
		"SELLER_ORDERS_TABLE": c.SellerOrdersTable,
	} {
		if val == "" {
			return fmt.Errorf("missing required config %s", name)
		}
	}
	return nil
}
