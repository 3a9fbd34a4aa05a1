package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

// PolicyConfig carries the numeric tolerances of the cost-control domain.
type PolicyConfig struct {
	// ConversionTolerance bounds the allowed difference between a planning
	// package budget and the sum of its converted work packages.
	ConversionTolerance decimal.Decimal
	// ReconciliationTolerance bounds the allowed difference between a budget
	// total and the sum of its item amounts.
	ReconciliationTolerance decimal.Decimal
	// CloseTolerance bounds the invoiced/paid difference a commitment may
	// carry when it is closed.
	CloseTolerance decimal.Decimal
	// SignificantChangePct marks a commitment revision as significant when
	// the absolute change percentage exceeds it.
	SignificantChangePct decimal.Decimal
	// BaseCurrency is the currency budgets are reported in.
	BaseCurrency string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Policy      PolicyConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	conversionTol, err := parseDecimal(v.GetString("POLICY_CONVERSION_TOLERANCE"), "0")
	if err != nil {
		return nil, fmt.Errorf("POLICY_CONVERSION_TOLERANCE: %w", err)
	}
	reconciliationTol, err := parseDecimal(v.GetString("POLICY_RECONCILIATION_TOLERANCE"), "0.01")
	if err != nil {
		return nil, fmt.Errorf("POLICY_RECONCILIATION_TOLERANCE: %w", err)
	}
	closeTol, err := parseDecimal(v.GetString("POLICY_CLOSE_TOLERANCE"), "0.01")
	if err != nil {
		return nil, fmt.Errorf("POLICY_CLOSE_TOLERANCE: %w", err)
	}
	significantPct, err := parseDecimal(v.GetString("POLICY_SIGNIFICANT_CHANGE_PCT"), "10")
	if err != nil {
		return nil, fmt.Errorf("POLICY_SIGNIFICANT_CHANGE_PCT: %w", err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Policy: PolicyConfig{
			ConversionTolerance:     conversionTol,
			ReconciliationTolerance: reconciliationTol,
			CloseTolerance:          closeTol,
			SignificantChangePct:    significantPct,
			BaseCurrency:            v.GetString("POLICY_BASE_CURRENCY"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7092
	}
	if cfg.Policy.BaseCurrency == "" {
		cfg.Policy.BaseCurrency = "USD"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Policy.ConversionTolerance.IsNegative() {
		return fmt.Errorf("POLICY_CONVERSION_TOLERANCE must not be negative")
	}
	if cfg.Policy.ReconciliationTolerance.IsNegative() {
		return fmt.Errorf("POLICY_RECONCILIATION_TOLERANCE must not be negative")
	}
	if cfg.Policy.CloseTolerance.IsNegative() {
		return fmt.Errorf("POLICY_CLOSE_TOLERANCE must not be negative")
	}
	return nil
}

func parseDecimal(raw, fallback string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	return decimal.NewFromString(raw)
}
