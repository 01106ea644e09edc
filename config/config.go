package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Payment gateway configuration
	StripeSecretKey string
	Currency        string

	// Pool configuration
	MinPledge decimal.Decimal // platform minimum pledge per backer

	// Processor fee model: fee = collected * percent + fixed * charges
	ProcessorFeePercent decimal.Decimal
	ProcessorFeeFixed   decimal.Decimal

	// Settlement configuration
	SettlementLeadDays int    // days before the due date the charge runs
	SettlementCron     string // cron spec for the daily tick
	SettlementWorkers  int    // concurrent expense settlements

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from the environment, with a .env file as
// fallback for local development
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		Currency:        "usd",

		MinPledge:           decimal.RequireFromString("1.00"),
		ProcessorFeePercent: decimal.RequireFromString("0.029"),
		ProcessorFeeFixed:   decimal.RequireFromString("0.30"),

		SettlementLeadDays: 2,
		SettlementCron:     "0 6 * * *", // 06:00 UTC daily
		SettlementWorkers:  4,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if currency := os.Getenv("CURRENCY"); currency != "" {
		config.Currency = currency
	}
	if v := os.Getenv("MIN_PLEDGE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MIN_PLEDGE: %w", err)
		}
		config.MinPledge = d
	}
	if v := os.Getenv("PROCESSOR_FEE_PERCENT"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROCESSOR_FEE_PERCENT: %w", err)
		}
		config.ProcessorFeePercent = d
	}
	if v := os.Getenv("PROCESSOR_FEE_FIXED"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROCESSOR_FEE_FIXED: %w", err)
		}
		config.ProcessorFeeFixed = d
	}
	if v := os.Getenv("SETTLEMENT_LEAD_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			config.SettlementLeadDays = parsed
		}
	}
	if v := os.Getenv("SETTLEMENT_CRON"); v != "" {
		config.SettlementCron = v
	}
	if v := os.Getenv("SETTLEMENT_WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.SettlementWorkers = parsed
		}
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
		}
	}

	return config, nil
}
