package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	SinkMemory = "memory"
	SinkRedis  = "redis"
	SinkNATS   = "nats"
	SinkNone   = "none"
)

type Server struct {
	Port int `yaml:"port" toml:"port"`
}

type Log struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

type Quotes struct {
	DecimalPlaces  int32             `yaml:"decimal_places" toml:"decimal_places"`
	IgnoreTimeout  time.Duration     `yaml:"ignore_timeout" toml:"ignore_timeout"`
	RequestTimeout time.Duration     `yaml:"request_timeout" toml:"request_timeout"`
	Headers        map[string]string `yaml:"headers" toml:"headers"`
}

type Refresher struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Workers  int           `yaml:"workers" toml:"workers"`
}

type Redis struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

type NATS struct {
	URL           string `yaml:"url" toml:"url"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix"`
}

type Sink struct {
	// Kind is a comma separated list of memory, redis, nats or none.
	Kind  string `yaml:"kind" toml:"kind"`
	Redis Redis  `yaml:"redis" toml:"redis"`
	NATS  NATS   `yaml:"nats" toml:"nats"`
}

// Kinds returns the configured sink kinds without duplicates.
func (s Sink) Kinds() []string {
	var kinds []string
	seen := map[string]bool{}
	for _, k := range strings.Split(s.Kind, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || k == SinkNone || seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds
}

type Exchange struct {
	// Kind selects the fetcher; it defaults to the exchange id.
	Kind           string            `yaml:"kind" toml:"kind"`
	Enabled        *bool             `yaml:"enabled" toml:"enabled"`
	QueryFrequency time.Duration     `yaml:"query_frequency" toml:"query_frequency"`
	IgnoreTimeout  time.Duration     `yaml:"ignore_timeout" toml:"ignore_timeout"`
	Params         map[string]string `yaml:"params" toml:"params"`
}

func (e Exchange) IsEnabled() bool { return e.Enabled == nil || *e.Enabled }

type Config struct {
	Server    Server              `yaml:"server" toml:"server"`
	Log       Log                 `yaml:"log" toml:"log"`
	Quotes    Quotes              `yaml:"quotes" toml:"quotes"`
	Refresher Refresher           `yaml:"refresher" toml:"refresher"`
	Sink      Sink                `yaml:"sink" toml:"sink"`
	Exchanges map[string]Exchange `yaml:"exchanges" toml:"exchanges"`
}

var (
	instance *Config
	instMu   sync.RWMutex
)

func Default() Config {
	var c Config
	c.Server.Port = 8080
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 7
	c.Log.MaxAgeDays = 30
	c.Quotes.DecimalPlaces = 2
	c.Quotes.IgnoreTimeout = 10 * time.Minute
	c.Quotes.RequestTimeout = 15 * time.Second
	c.Quotes.Headers = map[string]string{
		"User-Agent": "quote-average/1.0",
		"Accept":     "application/json",
	}
	c.Refresher.Interval = 30 * time.Second
	c.Refresher.Workers = 8
	c.Sink.Kind = SinkMemory
	c.Sink.Redis.Addr = "localhost:6379"
	c.Sink.Redis.Prefix = "quotes:"
	c.Sink.NATS.URL = "nats://localhost:4222"
	c.Sink.NATS.SubjectPrefix = "quotes"
	c.Exchanges = map[string]Exchange{
		"bitstamp": {
			QueryFrequency: 20 * time.Second,
			Params:         map[string]string{"api_url": "https://www.bitstamp.net/api/ticker/"},
		},
		"kraken": {
			QueryFrequency: 20 * time.Second,
			Params:         map[string]string{"ticker_url": "https://api.kraken.com/0/public/Ticker?pair=XXBTZEUR"},
		},
	}
	return c
}

func (c Config) ServerPortString() string { return fmt.Sprintf("%d", c.Server.Port) }

// EnabledExchanges returns the enabled exchange ids in order.
func (c Config) EnabledExchanges() []string {
	ids := make([]string, 0, len(c.Exchanges))
	for id, ex := range c.Exchanges {
		if ex.IsEnabled() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// KindOf returns the fetcher kind of an exchange.
func (c Config) KindOf(id string) string {
	if k := strings.TrimSpace(c.Exchanges[id].Kind); k != "" {
		return strings.ToLower(k)
	}
	return id
}

// Load reads a YAML file, or TOML when the name ends in .toml, over the
// defaults. An exchanges section in the file replaces the default one.
func Load(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	c.Exchanges = nil
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(b, &c)
	} else {
		err = yaml.Unmarshal(b, &c)
	}
	if err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Exchanges == nil {
		c.Exchanges = Default().Exchanges
	}
	return c, nil
}

// ApplyEnv overrides file values with the process environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}

	integer("SERVER_PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("SINK_KIND", &c.Sink.Kind)
	str("REDIS_ADDR", &c.Sink.Redis.Addr)
	str("REDIS_PASSWORD", &c.Sink.Redis.Password)
	integer("REDIS_DB", &c.Sink.Redis.DB)
	str("NATS_URL", &c.Sink.NATS.URL)
	if v, ok := lookup("REFRESH_INTERVAL"); ok && v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("REFRESH_INTERVAL: %v", err))
		} else {
			c.Refresher.Interval = d
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Quotes.DecimalPlaces < 0 || c.Quotes.DecimalPlaces > 16 {
		problems = append(problems, fmt.Sprintf("quotes.decimal_places %d out of range", c.Quotes.DecimalPlaces))
	}
	if c.Quotes.IgnoreTimeout < 0 {
		problems = append(problems, "quotes.ignore_timeout is negative")
	}
	if c.Quotes.RequestTimeout < 0 {
		problems = append(problems, "quotes.request_timeout is negative")
	}
	if c.Refresher.Interval < 0 {
		problems = append(problems, "refresher.interval is negative")
	}
	for _, k := range c.Sink.Kinds() {
		switch k {
		case SinkMemory, SinkRedis, SinkNATS:
		default:
			problems = append(problems, fmt.Sprintf("unknown sink kind %q", k))
		}
	}
	for _, id := range c.EnabledExchanges() {
		ex := c.Exchanges[id]
		if ex.QueryFrequency < 0 {
			problems = append(problems, fmt.Sprintf("exchanges.%s.query_frequency is negative", id))
		}
		if ex.IgnoreTimeout < 0 {
			problems = append(problems, fmt.Sprintf("exchanges.%s.ignore_timeout is negative", id))
		}
	}
	if len(c.EnabledExchanges()) == 0 {
		problems = append(problems, "no exchange is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Initialize loads, overrides and validates the configuration and installs
// it as the process-wide instance. An empty path starts from the defaults.
func Initialize(path string) (*Config, error) {
	c := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	instMu.Lock()
	defer instMu.Unlock()
	instance = &c
	return instance, nil
}

// GetInstance returns the configuration installed by Initialize, or the
// defaults when nothing was initialized.
func GetInstance() *Config {
	instMu.RLock()
	defer instMu.RUnlock()
	if instance == nil {
		c := Default()
		return &c
	}
	return instance
}
