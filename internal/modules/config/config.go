package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	DB string `mapstructure:"db_dsn"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	Service struct {
		Name       string `mapstructure:"name"`
		HealthAddr string `mapstructure:"health_addr"`
	} `mapstructure:"service"`

	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`

	Ingest struct {
		FeedURL string `mapstructure:"feed_url"`
	} `mapstructure:"ingest"`

	ParamRangesFile string `mapstructure:"param_ranges_file"`

	Scheduler struct {
		Interval     time.Duration `mapstructure:"interval"`
		TickDeadline time.Duration `mapstructure:"tick_deadline"`
	} `mapstructure:"scheduler"`

	// Пороги квалификации. Score floor исторически плавал (45/60/65) —
	// каноничное значение одно и берётся только отсюда.
	Qualification struct {
		TradeFloor   int     `mapstructure:"trade_floor"`
		ScoreFloor   float64 `mapstructure:"score_floor"`
		WinRateFloor float64 `mapstructure:"win_rate_floor"`
	} `mapstructure:"qualification"`

	Evolution struct {
		EliminationThreshold float64       `mapstructure:"elimination_threshold"`
		EliminationMinTrades int           `mapstructure:"elimination_min_trades"`
		PopulationFloor      int           `mapstructure:"population_floor"`
		PopulationCap        int           `mapstructure:"population_cap"`
		MutationPct          float64       `mapstructure:"mutation_pct"`
		MaxMutatedParams     int           `mapstructure:"max_mutated_params"`
		OutcomeWindow        time.Duration `mapstructure:"outcome_window"`
		DefaultSymbol        string        `mapstructure:"default_symbol"`
	} `mapstructure:"evolution"`
}

func NewConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("service.name", "evobot")
	v.SetDefault("service.health_addr", ":8080")
	v.SetDefault("jaeger.host", "127.0.0.1")
	v.SetDefault("jaeger.port", 6831)
	v.SetDefault("param_ranges_file", "configs/param_ranges.yaml")
	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.tick_deadline", "5m")
	v.SetDefault("qualification.trade_floor", 10)
	v.SetDefault("qualification.score_floor", 60.0)
	v.SetDefault("qualification.win_rate_floor", 50.0)
	v.SetDefault("evolution.elimination_threshold", 35.0)
	v.SetDefault("evolution.elimination_min_trades", 10)
	v.SetDefault("evolution.population_floor", 10)
	v.SetDefault("evolution.population_cap", 50)
	v.SetDefault("evolution.mutation_pct", 0.20)
	v.SetDefault("evolution.max_mutated_params", 3)
	v.SetDefault("evolution.outcome_window", "720h")
	v.SetDefault("evolution.default_symbol", "BTC-USDT")

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	v.SetConfigFile("configs/" + configFileName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	return config, nil
}
