// Package config loads service settings from defaults, a YAML file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvPrefix      = "PRODUCTS_"
	DefaultFile    = "config.yaml"
	DefaultEnvFile = ".env"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Service string `koanf:"service"`

	HTTP struct {
		Addr              string        `koanf:"addr"`
		ReadHeaderTimeout time.Duration `koanf:"readHeaderTimeout"`
		ShutdownTimeout   time.Duration `koanf:"shutdownTimeout"`
		MaxBodyBytes      int64         `koanf:"maxBodyBytes"`
		RateLimit         struct {
			Requests int           `koanf:"requests"`
			Window   time.Duration `koanf:"window"`
		} `koanf:"rateLimit"`
	} `koanf:"http"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	Metrics struct {
		Enabled bool   `koanf:"enabled"`
		Token   string `koanf:"token"`
	} `koanf:"metrics"`

	Store struct {
		Driver string `koanf:"driver"`
		DSN    string `koanf:"dsn"`
		Seed   bool   `koanf:"seed"`
	} `koanf:"store"`
}

func defaults() map[string]any {
	return map[string]any{
		"service":                 "products",
		"http.addr":               ":8080",
		"http.readHeaderTimeout":  5 * time.Second,
		"http.shutdownTimeout":    10 * time.Second,
		"http.maxBodyBytes":       int64(1 << 20),
		"http.rateLimit.requests": 0,
		"http.rateLimit.window":   time.Minute,
		"log.level":               "info",
		"metrics.enabled":         true,
		"metrics.token":           "",
		"store.driver":            DriverMemory,
		"store.dsn":               "",
		"store.seed":              true,
	}
}

// Flags holds the command-line options that select config sources.
type Flags struct {
	File    string
	EnvFile string
}

// ParseFlags reads --config and --env-file from args (without the program name).
func ParseFlags(name string, args []string) (Flags, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	var f Flags
	fs.StringVarP(&f.File, "config", "c", DefaultFile, "path to YAML config file")
	fs.StringVar(&f.EnvFile, "env-file", DefaultEnvFile, "path to .env file")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Load builds a Config. Missing config or .env files are not an error.
func Load(f Flags) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if f.File != "" {
		if err := k.Load(file.Provider(f.File), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f.File, err)
		}
	}

	if f.EnvFile != "" {
		vars, err := godotenv.Read(f.EnvFile)
		switch {
		case err == nil:
			if err := k.Load(confmap.Provider(envMap(vars), "."), nil); err != nil {
				return nil, fmt.Errorf("load %s: %w", f.EnvFile, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", f.EnvFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", keyTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid http.maxBodyBytes: %d", c.HTTP.MaxBodyBytes)
	}
	if c.HTTP.RateLimit.Requests < 0 {
		return fmt.Errorf("invalid http.rateLimit.requests: %d", c.HTTP.RateLimit.Requests)
	}
	if c.HTTP.RateLimit.Requests > 0 && c.HTTP.RateLimit.Window <= 0 {
		return fmt.Errorf("invalid http.rateLimit.window: %v", c.HTTP.RateLimit.Window)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if !isPostgresURL(c.Store.DSN) {
			return errors.New("store.dsn must be a postgres:// URL when store.driver is postgres")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("service=%s http.addr=%s http.maxBodyBytes=%d http.rateLimit=%d/%v log.level=%s metrics.enabled=%t store.driver=%s store.dsn=%s store.seed=%t",
		c.Service,
		c.HTTP.Addr,
		c.HTTP.MaxBodyBytes,
		c.HTTP.RateLimit.Requests,
		c.HTTP.RateLimit.Window,
		c.Log.Level,
		c.Metrics.Enabled,
		c.Store.Driver,
		maskURL(c.Store.DSN),
		c.Store.Seed)
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	if _, host, ok := strings.Cut(url, "@"); ok {
		return "****@" + host
	}
	return "****"
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

// envMap keeps only prefixed .env entries and maps them to koanf keys.
func envMap(vars map[string]string) map[string]any {
	out := make(map[string]any, len(vars))
	for key, value := range vars {
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		out[keyTransformer(key)] = value
	}
	return out
}

var envKeys = func() map[string]string {
	m := make(map[string]string)
	for key := range defaults() {
		m[strings.ToLower(strings.ReplaceAll(key, ".", "_"))] = key
	}
	return m
}()

// keyTransformer maps PRODUCTS_HTTP_RATELIMIT_REQUESTS to http.rateLimit.requests.
func keyTransformer(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if known, ok := envKeys[key]; ok {
		return known
	}
	return strings.ReplaceAll(key, "_", ".")
}
