// Package config loads minidosis settings from a YAML file, a .env file and
// MINIDOSIS_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MINIDOSIS_"

// Config holds all application configuration.
type Config struct {
	// GraphDir is the root of the content tree.
	GraphDir  string `yaml:"graph_dir" validate:"required,dir"`
	Extension string `yaml:"extension" validate:"required,startswith=."`

	Debounce time.Duration `yaml:"debounce" validate:"gt=0"`
	Workers  int           `yaml:"workers" validate:"min=1,max=64"`
	// RebuildTimeout bounds one rebuild. Zero disables it.
	RebuildTimeout time.Duration `yaml:"rebuild_timeout" validate:"gte=0"`

	Env         string `yaml:"env" validate:"oneof=development production"`
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		GraphDir:  ".",
		Extension: ".minidosis",
		Debounce:  250 * time.Millisecond,
		Workers:   1,
		Env:       "development",
	}
}

// Load builds the configuration. path may be empty, in which case only the
// .env file and the environment are consulted.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(cfg.GraphDir)
	if err != nil {
		return nil, fmt.Errorf("resolve graph_dir: %w", err)
	}
	cfg.GraphDir = abs

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("GRAPH"); ok {
		c.GraphDir = v
	}
	if v, ok := lookup("EXTENSION"); ok {
		c.Extension = v
	}
	if v, ok := lookup("ENV"); ok {
		c.Env = v
	}
	if v, ok := lookup("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup("DEBOUNCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sDEBOUNCE: %w", envPrefix, err)
		}
		c.Debounce = d
	}
	if v, ok := lookup("REBUILD_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREBUILD_TIMEOUT: %w", envPrefix, err)
		}
		c.RebuildTimeout = d
	}
	if v, ok := lookup("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		c.Workers = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and joins every violation into one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "dir":
		return fmt.Sprintf("%s must be an existing directory: %v", field, e.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
