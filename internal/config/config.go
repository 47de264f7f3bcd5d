package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"algotrader/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Optimization struct {
	NTrials    int                `yaml:"n_trials"`
	Seed       int64              `yaml:"seed"`
	Objectives []string           `yaml:"objectives"`
	Directions []domain.Direction `yaml:"directions"`
	MaxWorkers int                `yaml:"max_workers"`
}

type WalkForward struct {
	NTrials    int `yaml:"n_trials"`
	WindowSize int `yaml:"window_size"`
}

type Evaluation struct {
	ViabilityThreshold float64 `yaml:"viability_threshold"`
	Metric             string  `yaml:"metric"`
}

type Combined struct {
	BuyThreshold  float64 `yaml:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold"`
}

type Portfolio struct {
	Strategy        string  `yaml:"strategy"`
	InitialBalance  float64 `yaml:"initial_balance"`
	TransactionCost float64 `yaml:"transaction_cost"`
	MinLot          float64 `yaml:"min_lot"`
	Leverage        float64 `yaml:"leverage"`
	Slippage        float64 `yaml:"slippage"`
}

type Broker struct {
	Provider           string        `yaml:"provider"`          // alpaca | mock
	HistoricalSource   string        `yaml:"historical_source"` // alpaca | yahoo
	BaseURL            string        `yaml:"base_url"`
	DataURL            string        `yaml:"data_url"`
	Feed               string        `yaml:"feed"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	RetryLimit         int           `yaml:"retry_limit"`
	Account            string        `yaml:"account"`

	// from env
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

type Database struct {
	// empty means in-memory repositories
	DSN string `yaml:"-"`
}

type Session struct {
	Timezone             string `yaml:"timezone"`
	PremarketSchedule    string `yaml:"premarket_schedule"`
	OpenSchedule         string `yaml:"open_schedule"`
	CloseSchedule        string `yaml:"close_schedule"`
	MonitorSchedule      string `yaml:"monitor_schedule"`
	PostFillDelaySeconds int    `yaml:"post_fill_delay_seconds"`
	DaysToSettle         int    `yaml:"days_to_settle"`
	QueueSize            int    `yaml:"queue_size"`
	WarmupDays           int    `yaml:"warmup_days"`
}

type Report struct {
	Region    string `yaml:"region"`
	FromEmail string `yaml:"from_email"`
	ToEmail   string `yaml:"to_email"`
}

type Api struct {
	Port int `yaml:"port"`
	// JWTSecret enables HS256 bearer auth on every route but /health
	JWTSecret string `yaml:"-"`
}

type Config struct {
	DataDir         string       `yaml:"data_dir"`
	WatchlistSource string       `yaml:"watchlist_source"` // file | db
	WatchlistPath   string       `yaml:"watchlist_path"`
	Strategies      []string     `yaml:"strategies"`
	WarmupDays      int          `yaml:"warmup_days"`
	PageSize        int          `yaml:"page_size"`
	Optimization    Optimization `yaml:"optimization"`
	WalkForward     WalkForward  `yaml:"walk_forward"`
	Evaluation      Evaluation   `yaml:"evaluation"`
	Combined        Combined     `yaml:"combined"`
	Portfolio       Portfolio    `yaml:"portfolio"`
	Broker          Broker       `yaml:"broker"`
	Database        Database     `yaml:"database"`
	Session         Session      `yaml:"session"`
	Report          Report       `yaml:"report"`
	Api             Api          `yaml:"api"`
}

// Load overlays the yaml config at path on the defaults and pulls secrets
// from the environment, loading .env first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %w", domain.ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %w", domain.ErrInvalidConfig, path, err)
		}
	}
	c.loadEnv()
	return c, nil
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.WatchlistSource == "" {
		c.WatchlistSource = "file"
	}
	if c.WatchlistPath == "" {
		c.WatchlistPath = "watchlist.txt"
	}
	if len(c.Strategies) == 0 {
		c.Strategies = []string{"Bollinger"}
	}
	if c.WarmupDays == 0 {
		c.WarmupDays = 300
	}
	if c.PageSize == 0 {
		c.PageSize = 5000
	}

	if c.Optimization.NTrials == 0 {
		c.Optimization.NTrials = 50
	}
	if c.Optimization.Seed == 0 {
		c.Optimization.Seed = 42
	}
	if len(c.Optimization.Objectives) == 0 {
		c.Optimization.Objectives = []string{domain.MetricSharpeRatio}
	}
	if len(c.Optimization.Directions) == 0 {
		c.Optimization.Directions = []domain.Direction{domain.DirectionMaximize}
	}
	if c.Optimization.MaxWorkers == 0 {
		c.Optimization.MaxWorkers = 4
	}

	if c.WalkForward.NTrials == 0 {
		c.WalkForward.NTrials = 3
	}
	if c.WalkForward.WindowSize == 0 {
		c.WalkForward.WindowSize = 1
	}

	if c.Evaluation.ViabilityThreshold == 0 {
		c.Evaluation.ViabilityThreshold = 0.75
	}
	if c.Evaluation.Metric == "" {
		c.Evaluation.Metric = domain.MetricTotalReturn
	}

	if c.Combined.BuyThreshold == 0 {
		c.Combined.BuyThreshold = 0.5
	}
	if c.Combined.SellThreshold == 0 {
		c.Combined.SellThreshold = 0.5
	}

	if c.Portfolio.Strategy == "" {
		c.Portfolio.Strategy = "EqualWeightSignalPortfolio"
	}
	if c.Portfolio.InitialBalance == 0 {
		c.Portfolio.InitialBalance = 100000
	}
	if c.Portfolio.MinLot == 0 {
		c.Portfolio.MinLot = 1
	}
	if c.Portfolio.Leverage == 0 {
		c.Portfolio.Leverage = 1
	}

	if c.Broker.Provider == "" {
		c.Broker.Provider = "alpaca"
	}
	if c.Broker.HistoricalSource == "" {
		c.Broker.HistoricalSource = "alpaca"
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Broker.DataURL == "" {
		c.Broker.DataURL = "https://data.alpaca.markets"
	}
	if c.Broker.Feed == "" {
		c.Broker.Feed = "iex"
	}
	if c.Broker.MinRequestInterval == 0 {
		c.Broker.MinRequestInterval = 300 * time.Millisecond
	}
	if c.Broker.RetryLimit == 0 {
		c.Broker.RetryLimit = 3
	}
	if c.Broker.Account == "" {
		c.Broker.Account = "default"
	}

	if c.Session.Timezone == "" {
		c.Session.Timezone = "America/New_York"
	}
	if c.Session.PremarketSchedule == "" {
		c.Session.PremarketSchedule = "0 9 * * MON-FRI"
	}
	if c.Session.OpenSchedule == "" {
		c.Session.OpenSchedule = "30 9 * * MON-FRI"
	}
	if c.Session.CloseSchedule == "" {
		c.Session.CloseSchedule = "0 16 * * MON-FRI"
	}
	if c.Session.MonitorSchedule == "" {
		c.Session.MonitorSchedule = "@every 30s"
	}
	if c.Session.PostFillDelaySeconds == 0 {
		c.Session.PostFillDelaySeconds = 300
	}
	if c.Session.DaysToSettle == 0 {
		c.Session.DaysToSettle = 1
	}
	if c.Session.QueueSize == 0 {
		c.Session.QueueSize = 1
	}
	if c.Session.WarmupDays == 0 {
		c.Session.WarmupDays = 400
	}

	if c.Report.Region == "" {
		c.Report.Region = "us-east-1"
	}
	if c.Api.Port == 0 {
		c.Api.Port = 3009
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		c.Broker.APISecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REPORT_TO_EMAIL"); v != "" {
		c.Report.ToEmail = v
	}
	if v := os.Getenv("REPORT_FROM_EMAIL"); v != "" {
		c.Report.FromEmail = v
	}
	if v := os.Getenv("API_JWT_SECRET"); v != "" {
		c.Api.JWTSecret = v
	}
}

// Validate returns an error wrapping domain.ErrInvalidConfig describing
// every problem found.
func (c *Config) Validate() error {
	problems := []error{}
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.Optimization.NTrials > 0, "optimization.n_trials must be > 0")
	check(len(c.Optimization.Objectives) == len(c.Optimization.Directions),
		"optimization has %d objectives but %d directions", len(c.Optimization.Objectives), len(c.Optimization.Directions))
	for _, d := range c.Optimization.Directions {
		check(d == domain.DirectionMaximize || d == domain.DirectionMinimize, "unknown optimization direction %q", d)
	}
	check(c.WalkForward.NTrials > 0, "walk_forward.n_trials must be > 0")
	check(c.WalkForward.WindowSize > 0, "walk_forward.window_size must be > 0")
	check(c.Combined.BuyThreshold >= 0 && c.Combined.BuyThreshold <= 1, "combined.buy_threshold must be in [0,1]")
	check(c.Combined.SellThreshold >= 0 && c.Combined.SellThreshold <= 1, "combined.sell_threshold must be in [0,1]")
	check(c.Portfolio.InitialBalance > 0, "portfolio.initial_balance must be > 0")
	check(c.Portfolio.TransactionCost >= 0, "portfolio.transaction_cost must be >= 0")
	check(c.Portfolio.MinLot > 0, "portfolio.min_lot must be > 0")
	check(c.Portfolio.Leverage >= 1, "portfolio.leverage must be >= 1")
	check(c.Portfolio.Slippage >= 0, "portfolio.slippage must be >= 0")
	check(c.Session.DaysToSettle >= 0, "session.days_to_settle must be >= 0")
	check(c.Session.PostFillDelaySeconds >= 0, "session.post_fill_delay_seconds must be >= 0")
	check(c.Broker.Provider == "alpaca" || c.Broker.Provider == "mock", "unknown broker.provider %q", c.Broker.Provider)
	check(c.Broker.HistoricalSource == "alpaca" || c.Broker.HistoricalSource == "yahoo", "unknown broker.historical_source %q", c.Broker.HistoricalSource)
	check(c.WatchlistSource == "file" || c.WatchlistSource == "db", "unknown watchlist_source %q", c.WatchlistSource)
	check(c.WatchlistSource != "db" || c.Database.DSN != "", "watchlist_source db needs DATABASE_URL")
	if c.Broker.Provider == "alpaca" {
		check(c.Broker.APIKey != "" && c.Broker.APISecret != "", "APCA_API_KEY_ID and APCA_API_SECRET_KEY must be set")
	}
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("session.timezone: %w", err))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(problems...))
}

func (s Session) PostFillDelay() time.Duration {
	return time.Duration(s.PostFillDelaySeconds) * time.Second
}
