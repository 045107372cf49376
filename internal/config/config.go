package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"StockPicker/internal/backtest"
	"StockPicker/internal/calculator"
	"StockPicker/internal/collector"
	"StockPicker/internal/logger"
	"StockPicker/internal/screener"
	"StockPicker/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Data struct {
		Dir      string `yaml:"dir" default:"data" validate:"required"`
		Universe string `yaml:"universe" default:"configs/universe.csv"`
		Source   string `yaml:"source" default:"yahoo" validate:"oneof=yahoo rest csv"`
		BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"data"`
	Download struct {
		Workers int           `yaml:"workers" default:"8" validate:"min=1,max=64"`
		Days    int           `yaml:"days" default:"365" validate:"min=1"`
		Timeout time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
		Retries int           `yaml:"retries" default:"2" validate:"min=0,max=10"`
		Backoff time.Duration `yaml:"backoff" default:"2s" validate:"gte=0"`
	} `yaml:"download"`
	Indicator struct {
		BBIPeriods  []int  `yaml:"bbi_periods" default:"[3,6,12,24]" validate:"min=1,dive,min=1"`
		PK          int    `yaml:"pk" default:"9" validate:"min=1"`
		PD          int    `yaml:"pd" default:"3" validate:"min=1"`
		PDSlow      int    `yaml:"pd_slow" default:"3" validate:"min=1"`
		Smoother    string `yaml:"smoother" default:"ema" validate:"oneof=ema sma"`
		RangePolicy string `yaml:"range_policy" default:"carry" validate:"oneof=carry neutral strict"`
	} `yaml:"indicator"`
	Screen struct {
		MinHistory    int     `yaml:"min_history" default:"20" validate:"min=1"`
		DomesticFloor float64 `yaml:"domestic_floor" default:"100000000" validate:"gte=0"`
		USFloor       float64 `yaml:"us_floor" default:"10000000" validate:"gte=0"`
		HighLiquidity float64 `yaml:"high_liquidity" default:"1000000000" validate:"gte=0"`
		LooseJ        float64 `yaml:"loose_j" default:"8"`
		StrictJ       float64 `yaml:"strict_j" default:"0"`
		TurnoverSpan  int     `yaml:"turnover_span" default:"5" validate:"min=1"`
		Workers       int     `yaml:"workers" default:"8" validate:"min=1,max=64"`
		OutputDir     string  `yaml:"output_dir" default:"data/results"`
	} `yaml:"screen"`
	Strategy struct {
		StopLoss  float64 `yaml:"stop_loss" default:"0.03" validate:"gt=0,lt=1"`
		TrendDays int     `yaml:"trend_days" default:"2" validate:"min=1"`
		StateFile string  `yaml:"state_file" default:"data/strategy_state.json"`
	} `yaml:"strategy"`
	Backtest struct {
		InitialCash float64 `yaml:"initial_cash" default:"100000" validate:"gt=0"`
		Percent     float64 `yaml:"percent" default:"95" validate:"gt=0,lte=100"`
		Commission  float64 `yaml:"commission" default:"0" validate:"gte=0"`
		StateFile   string  `yaml:"state_file" default:"data/account_state.json"`
	} `yaml:"backtest"`
	Schedule struct {
		DownloadCron string `yaml:"download_cron" default:"0 30 16 * * 1-5" validate:"required"`
		ScreenCron   string `yaml:"screen_cron" default:"0 0 17 * * 1-5" validate:"required"`
		RunOnStart   bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token" validate:"required_with=ChatID"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" default:"data/stock_picker.db"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stderr"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9090" validate:"required_if=Enabled true"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy" validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load fills defaults, reads the YAML file over them, then applies
// environment variable overrides. A missing file leaves the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID},
		{"HTTPS_PROXY", &cfg.Proxy},
		{"SQLITE_PATH", &cfg.Database.SQLitePath},
		{"DATA_DIR", &cfg.Data.Dir},
		{"DATA_SOURCE", &cfg.Data.Source},
		{"REST_BASE_URL", &cfg.Data.BaseURL},
		{"REST_API_KEY", &cfg.Data.APIKey},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"CRON_SCREEN", &cfg.Schedule.ScreenCron},
		{"CRON_DOWNLOAD", &cfg.Schedule.DownloadCron},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		cfg.Schedule.RunOnStart = v == "true"
	}

	return cfg, nil
}

// Validate checks field constraints and the cross-field rules the
// individual sections cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			ns := strings.TrimPrefix(e.Namespace(), "Config.")
			if e.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", ns, e.Tag(), e.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", ns, e.Tag()))
			}
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if c.Data.Source == "rest" && c.Data.BaseURL == "" {
		return fmt.Errorf("invalid config: data.base_url is required for the rest source")
	}
	if err := c.ScreenerConfig().Validate(); err != nil {
		return fmt.Errorf("invalid config: screen: %w", err)
	}
	return nil
}

// TelegramEnabled reports whether both bot credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func (c *Config) IndicatorConfig() calculator.Config {
	return calculator.Config{
		BBIPeriods:  append([]int(nil), c.Indicator.BBIPeriods...),
		PK:          c.Indicator.PK,
		PD:          c.Indicator.PD,
		PDSlow:      c.Indicator.PDSlow,
		Smoother:    c.Indicator.Smoother,
		RangePolicy: calculator.RangePolicy(c.Indicator.RangePolicy),
	}
}

func (c *Config) ScreenerConfig() screener.Config {
	return screener.Config{
		MinHistory:    c.Screen.MinHistory,
		DomesticFloor: c.Screen.DomesticFloor,
		USFloor:       c.Screen.USFloor,
		HighLiquidity: c.Screen.HighLiquidity,
		LooseJ:        c.Screen.LooseJ,
		StrictJ:       c.Screen.StrictJ,
		TurnoverSpan:  c.Screen.TurnoverSpan,
		Workers:       c.Screen.Workers,
	}
}

func (c *Config) StrategyConfig() strategy.Config {
	return strategy.Config{StopLoss: c.Strategy.StopLoss, TrendDays: c.Strategy.TrendDays}
}

func (c *Config) BacktestConfig() backtest.Config {
	return backtest.Config{
		InitialCash: c.Backtest.InitialCash,
		Percent:     c.Backtest.Percent,
		Commission:  c.Backtest.Commission,
	}
}

func (c *Config) DownloadConfig() collector.DownloadConfig {
	return collector.DownloadConfig{
		Workers: c.Download.Workers,
		Days:    c.Download.Days,
		Timeout: c.Download.Timeout,
		Retries: c.Download.Retries,
		Backoff: c.Download.Backoff,
	}
}

func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}
