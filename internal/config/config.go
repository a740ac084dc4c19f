// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MM0819/vega-market-maker-sub000/internal/model"
)

const (
	defaultLiquidityIntervalMs = 60_000
	defaultQuoteIntervalMs     = 15_000
	defaultVenueTimeoutMs      = 10_000
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Party identifies the account the market maker trades for.
type Party struct {
	ID string `yaml:"id"`
}

// Venue selects where instructions are sent.
type Venue struct {
	Provider  string `yaml:"provider"` // log|paper|gateway
	BaseURL   string `yaml:"base_url"`
	APIToken  string `yaml:"api_token"`
	TimeoutMs int    `yaml:"timeout_ms"`
	FillsPath string `yaml:"fills_path"`
}

// Timeout returns the gateway request timeout.
func (v Venue) Timeout() time.Duration { return time.Duration(v.TimeoutMs) * time.Millisecond }

// Reference configures the external price feed.
type Reference struct {
	Provider       string  `yaml:"provider"` // stub|binance|binance_rest
	WSURL          string  `yaml:"ws_url"`
	RESTURL        string  `yaml:"rest_url"`
	PollIntervalMs int     `yaml:"poll_interval_ms"`
	StubPrice      float64 `yaml:"stub_price"`
}

// Store selects where per-market trading configs are read from.
type Store struct {
	Provider string `yaml:"provider"` // static|postgres
	DSN      string `yaml:"dsn"`
}

// Risk encodes guard-rails on what the planners may send.
type Risk struct {
	MaxOrderNotional float64 `yaml:"max_order_notional"`
	MaxCommitment    float64 `yaml:"max_commitment"`
}

// Market binds an exchange market to its reference symbol, job cadence, and trading parameters.
type Market struct {
	ID                  string              `yaml:"id"`
	ReferenceSymbol     string              `yaml:"reference_symbol"`
	LiquidityIntervalMs int                 `yaml:"liquidity_interval_ms"`
	QuoteIntervalMs     int                 `yaml:"quote_interval_ms"`
	LiquidityEnabled    *bool               `yaml:"liquidity_enabled"`
	QuoteEnabled        *bool               `yaml:"quote_enabled"`
	Trading             model.TradingConfig `yaml:"trading"`
}

// LiquidityOn reports whether the liquidity job should fire; unset means on.
func (m Market) LiquidityOn() bool { return m.LiquidityEnabled == nil || *m.LiquidityEnabled }

// QuoteOn reports whether the quote job should fire; unset means on.
func (m Market) QuoteOn() bool { return m.QuoteEnabled == nil || *m.QuoteEnabled }

// LiquidityInterval returns the liquidity job period.
func (m Market) LiquidityInterval() time.Duration {
	return time.Duration(m.LiquidityIntervalMs) * time.Millisecond
}

// QuoteInterval returns the quote job period.
func (m Market) QuoteInterval() time.Duration {
	return time.Duration(m.QuoteIntervalMs) * time.Millisecond
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Party     Party     `yaml:"party"`
	Venue     Venue     `yaml:"venue"`
	Reference Reference `yaml:"reference"`
	Store     Store     `yaml:"store"`
	Risk      Risk      `yaml:"risk"`
	Markets   []Market  `yaml:"markets"`
	Seed      Seed      `yaml:"seed"`
}

// Load reads a YAML file from disk and hydrates a Config struct with defaults filled in.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Venue.Provider == "" {
		c.Venue.Provider = "log"
	}
	if c.Venue.TimeoutMs <= 0 {
		c.Venue.TimeoutMs = defaultVenueTimeoutMs
	}
	if c.Reference.Provider == "" {
		c.Reference.Provider = "stub"
	}
	if c.Store.Provider == "" {
		c.Store.Provider = "static"
	}
	for i := range c.Markets {
		m := &c.Markets[i]
		if m.LiquidityIntervalMs == 0 {
			m.LiquidityIntervalMs = defaultLiquidityIntervalMs
		}
		if m.QuoteIntervalMs == 0 {
			m.QuoteIntervalMs = defaultQuoteIntervalMs
		}
		m.Trading.MarketID = m.ID
	}
}

// ApplyEnv loads .env files best-effort and lets the environment override secrets and identity.
func (c *Config) ApplyEnv(files ...string) {
	_ = godotenv.Load(files...) // best-effort
	if v := os.Getenv("PARTY_ID"); v != "" {
		c.Party.ID = v
	}
	if v := os.Getenv("GATEWAY_API_TOKEN"); v != "" {
		c.Venue.APIToken = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
}

// TradingConfigs returns each market's trading block keyed to its market ID.
func (c *Config) TradingConfigs() []model.TradingConfig {
	out := make([]model.TradingConfig, 0, len(c.Markets))
	for _, m := range c.Markets {
		tc := m.Trading
		tc.MarketID = m.ID
		out = append(out, tc)
	}
	return out
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Party.ID) == "" {
		errs = append(errs, errors.New("party.id is required"))
	}
	switch c.Venue.Provider {
	case "log", "paper":
	case "gateway":
		if c.Venue.BaseURL == "" {
			errs = append(errs, errors.New("venue.base_url is required for the gateway provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown venue.provider %q", c.Venue.Provider))
	}
	switch c.Reference.Provider {
	case "stub", "binance", "binance_rest":
	default:
		errs = append(errs, fmt.Errorf("unknown reference.provider %q", c.Reference.Provider))
	}
	switch c.Store.Provider {
	case "static":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.provider %q", c.Store.Provider))
	}
	if c.Risk.MaxOrderNotional < 0 || c.Risk.MaxCommitment < 0 {
		errs = append(errs, errors.New("risk limits must not be negative"))
	}
	if len(c.Markets) == 0 {
		errs = append(errs, errors.New("at least one market is required"))
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("markets[%d].id is required", i))
			continue
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Errorf("market %s listed twice", m.ID))
		}
		seen[m.ID] = true
		if m.ReferenceSymbol == "" {
			errs = append(errs, fmt.Errorf("market %s: reference_symbol is required", m.ID))
		}
		if m.LiquidityIntervalMs <= 0 || m.QuoteIntervalMs <= 0 {
			errs = append(errs, fmt.Errorf("market %s: job intervals must be positive", m.ID))
		}
		if c.Store.Provider == "static" {
			errs = append(errs, validateTrading(m.ID, m.Trading)...)
		}
	}
	return errors.Join(errs...)
}

func validateTrading(id string, t model.TradingConfig) []error {
	var errs []error
	if t.CommitmentBalanceRatio <= 0 || t.CommitmentBalanceRatio > 1 {
		errs = append(errs, fmt.Errorf("market %s: commitment_balance_ratio must be in (0,1]", id))
	}
	if t.CommitmentOrderCount <= 0 || t.QuoteOrderCount <= 0 {
		errs = append(errs, fmt.Errorf("market %s: order counts must be positive", id))
	}
	if t.BidQuoteRange <= 0 || t.BidQuoteRange >= 1 || t.AskQuoteRange <= 0 {
		errs = append(errs, fmt.Errorf("market %s: quote ranges must be positive and bid range below 1", id))
	}
	if t.Fee < 0 || t.StakeBuffer < 0 || t.CommitmentSpread <= 0 {
		errs = append(errs, fmt.Errorf("market %s: fee and stake_buffer must be non-negative, commitment_spread positive", id))
	}
	if t.BBOOffset < 0 || t.BBOOffset >= 1 {
		errs = append(errs, fmt.Errorf("market %s: bbo_offset must be in [0,1)", id))
	}
	if t.MinProbabilityOfTrading < 0 || t.MinProbabilityOfTrading > 1 {
		errs = append(errs, fmt.Errorf("market %s: min_probability_of_trading must be in [0,1]", id))
	}
	return errs
}
