// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/abhisek/conjugar/internal/blob"
	"github.com/abhisek/conjugar/internal/llm"
)

// Config is the complete runtime configuration.
type Config struct {
	Env            string   `validate:"oneof=dev development prod production test"`
	HTTPAddr       string   `validate:"required"`
	AllowedOrigins []string `validate:"min=1"`

	// APIPassword, when set, is required on question routes.
	APIPassword string

	Storage StorageConfig

	// EventsDB is the sqlite path of the LLM event log. Empty disables it.
	EventsDB string

	// SweepSchedule is a cron spec for the orphan sweep. Empty disables it.
	SweepSchedule string
	SweepMinAge   time.Duration `validate:"gte=0"`

	DefaultCount int `validate:"gte=1,ltefield=MaxCount"`
	MaxCount     int `validate:"gte=1,lte=200"`

	LLM llm.Config `validate:"-"`
}

// StorageConfig selects the blob backend and repository behavior.
type StorageConfig struct {
	Backend         string `validate:"oneof=memory sqlite redis gcs"`
	Prefix          string `validate:"required"`
	SQLitePath      string `validate:"required_if=Backend sqlite"`
	RedisAddr       string `validate:"required_if=Backend redis"`
	RedisPrefix     string
	GCSBucket       string `validate:"required_if=Backend gcs"`
	IndexCAS        bool
	IndexMaxRetries int `validate:"gte=0,lte=20"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Env:            "dev",
		HTTPAddr:       ":8080",
		AllowedOrigins: []string{"*"},
		Storage: StorageConfig{
			Backend:         blob.BackendSQLite,
			Prefix:          "question-sets",
			SQLitePath:      DataPath("sets.db"),
			IndexCAS:        true,
			IndexMaxRetries: 3,
		},
		EventsDB:     DataPath("events.db"),
		SweepMinAge:  time.Hour,
		DefaultCount: 10,
		MaxCount:     50,
		LLM:          llm.DefaultConfig(),
	}
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are named), then the
// process environment, and validates the result. Missing .env files are
// ignored; variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	var errs []error

	cfg.Env = envString("CONJUGAR_ENV", cfg.Env)
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	cfg.HTTPAddr = envString("CONJUGAR_HTTP_ADDR", cfg.HTTPAddr)
	if v := os.Getenv("CONJUGAR_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	cfg.APIPassword = os.Getenv("CONJUGAR_API_PASSWORD")

	s := &cfg.Storage
	s.Backend = strings.ToLower(envString("CONJUGAR_STORAGE_BACKEND", s.Backend))
	s.Prefix = strings.Trim(envString("CONJUGAR_STORAGE_PREFIX", s.Prefix), "/")
	s.SQLitePath = envString("CONJUGAR_SQLITE_PATH", s.SQLitePath)
	s.RedisAddr = os.Getenv("CONJUGAR_REDIS_ADDR")
	s.RedisPrefix = os.Getenv("CONJUGAR_REDIS_PREFIX")
	s.GCSBucket = os.Getenv("CONJUGAR_GCS_BUCKET")
	s.IndexCAS = envBool("CONJUGAR_INDEX_CAS", s.IndexCAS, &errs)
	s.IndexMaxRetries = envInt("CONJUGAR_INDEX_MAX_RETRIES", s.IndexMaxRetries, &errs)

	if v, ok := os.LookupEnv("CONJUGAR_EVENTS_DB"); ok {
		cfg.EventsDB = v
	}
	cfg.SweepSchedule = os.Getenv("CONJUGAR_SWEEP_SCHEDULE")
	cfg.SweepMinAge = envDuration("CONJUGAR_SWEEP_MIN_AGE", cfg.SweepMinAge, &errs)
	cfg.DefaultCount = envInt("CONJUGAR_DEFAULT_COUNT", cfg.DefaultCount, &errs)
	cfg.MaxCount = envInt("CONJUGAR_MAX_COUNT", cfg.MaxCount, &errs)

	cfg.LLM = llm.ConfigFromEnv()

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints. LLM settings are validated when a
// provider is built, since commands that never call a model do not need keys.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether Env names a production deployment.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Blob returns the backend selection for blob.Open.
func (c Config) Blob() blob.Config {
	return blob.Config{
		Backend:     c.Storage.Backend,
		SQLitePath:  c.Storage.SQLitePath,
		RedisAddr:   c.Storage.RedisAddr,
		RedisPrefix: c.Storage.RedisPrefix,
		GCSBucket:   c.Storage.GCSBucket,
	}
}

// DataPath returns name under the conjugar data directory:
// $XDG_DATA_HOME/conjugar, falling back to ~/.local/share/conjugar.
func DataPath(name string) string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", name)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "conjugar", name)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func envBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
