package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// PathEnv names the optional YAML file read before environment overrides.
const PathEnv = "COINQUOTE_CONFIG"

type Config struct {
	Server struct {
		Host           string        `yaml:"host" env:"HOST"`
		Port           int           `yaml:"port" env:"PORT"`
		RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	} `yaml:"server"`
	Feed struct {
		URL         string        `yaml:"url" env:"FEED_URL"`
		APIURL      string        `yaml:"api_url" env:"API_URL"`
		Products    []string      `yaml:"products" env:"PRODUCTS" envSeparator:","`
		HTTPTimeout time.Duration `yaml:"http_timeout" env:"API_TIMEOUT"`
	} `yaml:"feed"`
	Quote struct {
		Depth       int   `yaml:"depth" env:"QUOTE_DEPTH"`
		MaxCapacity int64 `yaml:"max_capacity" env:"QUOTE_MAX_CAPACITY"`
	} `yaml:"quote"`
	Redis struct {
		URL         string        `yaml:"url" env:"REDIS_URL"`
		Password    string        `yaml:"-" env:"REDIS_PASSWORD"`
		ProductsTTL time.Duration `yaml:"products_ttl" env:"PRODUCTS_CACHE_TTL"`
	} `yaml:"redis"`
	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"logging"`
}

func defaultConfig() Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8000
	c.Server.RequestTimeout = 5 * time.Second
	c.Feed.URL = "wss://ws-feed.exchange.coinbase.com"
	c.Feed.APIURL = "https://api.exchange.coinbase.com"
	c.Feed.HTTPTimeout = 30 * time.Second
	c.Quote.Depth = 50
	c.Quote.MaxCapacity = 1 << 20
	c.Redis.ProductsTTL = 5 * time.Minute
	c.Logging.Level = "info"
	return c
}

// Load layers defaults, the YAML file at path (when non-empty) and
// environment variables, then validates the result.
func Load(path string) (*Config, error) {
	c := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	for i := range c.Feed.Products {
		c.Feed.Products[i] = strings.ToUpper(strings.TrimSpace(c.Feed.Products[i]))
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	u, err := url.Parse(c.Feed.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("invalid feed URL: %s", c.Feed.URL)
	}
	u, err = url.Parse(c.Feed.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid API URL: %s", c.Feed.APIURL)
	}
	if c.Quote.Depth < 1 {
		return fmt.Errorf("quote depth must be positive, got %d", c.Quote.Depth)
	}
	if c.Quote.MaxCapacity < 1 {
		return fmt.Errorf("quote max capacity must be positive, got %d", c.Quote.MaxCapacity)
	}
	validLogLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
