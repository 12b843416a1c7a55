package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix namespaces every environment variable read by Load.
const envPrefix = "SCAFFOLD"

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	HTTP    HTTPConfig    `yaml:"http" envconfig:"HTTP"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains the server-binding configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" validate:"bindhost"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	Reload          bool          `yaml:"reload" envconfig:"RELOAD"`
	Production      bool          `yaml:"production" envconfig:"PRODUCTION"`
	LogLevel        string        `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"loglevel"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// HTTPConfig contains the HTTP-application configuration.
type HTTPConfig struct {
	Title       string          `yaml:"title" envconfig:"TITLE" validate:"required,apptitle"`
	Description string          `yaml:"description" envconfig:"DESCRIPTION"`
	Version     string          `yaml:"version" envconfig:"VERSION" validate:"appversion"`
	Host        string          `yaml:"host" envconfig:"HOST" validate:"bindhost"`
	Port        int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	CORSOrigins string          `yaml:"cors_origins" envconfig:"CORS_ORIGINS" validate:"corsorigins"`
	LogLevel    string          `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"loglevel"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level         string `yaml:"level" envconfig:"LEVEL" validate:"loglevel"`
	Output        string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath      string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required"`
	SeverityFiles bool   `yaml:"severity_files" envconfig:"SEVERITY_FILES"`
	SeverityDir   string `yaml:"severity_dir" envconfig:"SEVERITY_DIR"`
}

// versionPattern matches plain x.y.z version strings.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// titleUnsafe lists characters rejected in the application title.
const titleUnsafe = `<>"&'`

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence. The result
// is validated eagerly; any invalid field fails the load.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := mergeFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file or environment
// variable overrides a field.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			Reload:          false,
			Production:      false,
			LogLevel:        "info",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Title:       "go_server",
			Description: "Web application scaffold",
			Version:     "1.0.0",
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: "*",
			LogLevel:    "info",
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:         "info",
			Output:        "both",
			FilePath:      "logs/app.log",
			SeverityFiles: true,
			SeverityDir:   "logs/severity",
		},
	}
}

// mergeFromFile overlays values from a YAML file onto cfg.
func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// configFilePath returns the first config file found in the common
// locations, or an empty string when only env vars apply.
func configFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// normalize case-normalizes log levels and trims the title before
// validation, so that the stored config equals the validated form.
func (c *Config) normalize() {
	c.Server.LogLevel = strings.ToLower(strings.TrimSpace(c.Server.LogLevel))
	c.HTTP.LogLevel = strings.ToLower(strings.TrimSpace(c.HTTP.LogLevel))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))
	c.HTTP.Title = strings.TrimSpace(c.HTTP.Title)
	c.HTTP.Version = strings.TrimSpace(c.HTTP.Version)
}

// Validate checks every declared field constraint. It is called by Load
// but exported so tests and callers constructing configs by hand can
// fail fast the same way.
func (c *Config) Validate() error {
	return newValidator().Struct(c)
}

// newValidator builds a validator with the scaffold's custom rules
// registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for blank tags, which are constants here.
	_ = v.RegisterValidation("bindhost", func(fl validator.FieldLevel) bool {
		return validHost(fl.Field().String())
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		return validLogLevel(fl.Field().String())
	})
	_ = v.RegisterValidation("appversion", func(fl validator.FieldLevel) bool {
		return versionPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("apptitle", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), titleUnsafe)
	})
	_ = v.RegisterValidation("corsorigins", func(fl validator.FieldLevel) bool {
		return validCORSOrigins(fl.Field().String())
	})

	return v
}

// validHost accepts loopback names, the any-address, or a valid IPv4
// dotted-quad. Hostnames other than localhost are rejected, as are IPv6
// literals: the server binds IPv4 only.
func validHost(host string) bool {
	switch host {
	case "localhost", "0.0.0.0", "127.0.0.1":
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() != nil && strings.Count(host, ".") == 3
}

// validLogLevel reports whether level names one of the supported
// severities. Input is already case-normalized.
func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warning", "error", "critical":
		return true
	}
	return false
}

// validCORSOrigins accepts the wildcard or a comma-separated list of
// http(s):// origins.
func validCORSOrigins(spec string) bool {
	if spec == "*" {
		return true
	}
	for _, origin := range strings.Split(spec, ",") {
		origin = strings.TrimSpace(origin)
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// AllowAllOrigins reports whether the CORS spec is the wildcard.
func (h HTTPConfig) AllowAllOrigins() bool {
	return h.CORSOrigins == "*"
}

// Origins returns the configured CORS origins as a slice. The wildcard
// yields ["*"].
func (h HTTPConfig) Origins() []string {
	if h.AllowAllOrigins() {
		return []string{"*"}
	}
	parts := strings.Split(h.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, origin := range parts {
		origins = append(origins, strings.TrimSpace(origin))
	}
	return origins
}
