package bot

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/EgorLis/waldner/internal/restapi"
	"github.com/EgorLis/waldner/internal/slackrtm"
)

const DefaultName = "waldner"

type LogConfig struct {
	Level       string `yaml:"level"` // debug|info|warn|error
	Development bool   `yaml:"development"`
}

type Config struct {
	Name    string          `yaml:"name"`
	Slack   slackrtm.Config `yaml:"slack"`
	Backend restapi.Config  `yaml:"backend"`
	Log     LogConfig       `yaml:"log"`
}

// LoadConfig читает YAML-конфиг и накладывает переменные окружения
// (BOT_NAME, SLACK_TOKEN, SLACK_API_URL, API_BASE, API_TOKEN, API_TIMEOUT,
// LOG_LEVEL). Файла может не быть, если всё задано через окружение.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("loading config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// только окружение
		default:
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("BOT_NAME", &c.Name)
	set("SLACK_TOKEN", &c.Slack.Token)
	set("SLACK_API_URL", &c.Slack.APIURL)
	set("API_BASE", &c.Backend.BaseURL)
	set("API_TOKEN", &c.Backend.Token)
	set("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("API_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("API_TIMEOUT: %w", err)
		}
		c.Backend.Timeout = d
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = restapi.DefaultTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Slack.Token) == "" {
		return fmt.Errorf("slack token is required")
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend base url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend base url %q must be an absolute http(s) url", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Logger строит zap-логгер по конфигу.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
