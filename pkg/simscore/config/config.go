package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type HTTPConfig struct {
	Address           string        `yaml:"address" env:"SIMSCORE_HTTP_ADDRESS" env-default:":8080"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" env:"SIMSCORE_MAX_UPLOAD_BYTES" env-default:"10485760"`
	JWTSecret         string        `yaml:"jwt_secret" env:"SIMSCORE_JWT_SECRET"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"SIMSCORE_HTTP_READ_TIMEOUT" env-default:"30s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SIMSCORE_HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"SIMSCORE_HTTP_WRITE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SIMSCORE_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"SIMSCORE_STORE_DRIVER" env-default:"sqlite"`
	DSN    string `yaml:"dsn" env:"SIMSCORE_STORE_DSN" env-default:"simscore.db"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" env:"SIMSCORE_MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"SIMSCORE_MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SIMSCORE_MINIO_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"SIMSCORE_MINIO_USE_SSL" env-default:"false"`
}

type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout" env:"SIMSCORE_FETCH_TIMEOUT" env-default:"10s"`
	Attempts int           `yaml:"attempts" env:"SIMSCORE_FETCH_ATTEMPTS" env-default:"3"`
	Backoff  time.Duration `yaml:"backoff" env:"SIMSCORE_FETCH_BACKOFF" env-default:"200ms"`

	// FileRoot confines file:// locators. Empty disables them.
	FileRoot string      `yaml:"file_root" env:"SIMSCORE_FETCH_FILE_ROOT"`
	Minio    MinioConfig `yaml:"minio"`
}

type MatchConfig struct {
	Workers   int           `yaml:"workers" env:"SIMSCORE_MATCH_WORKERS" env-default:"4"`
	Budget    time.Duration `yaml:"budget" env:"SIMSCORE_MATCH_BUDGET" env-default:"0s"`
	CacheSize int           `yaml:"cache_size" env:"SIMSCORE_MATCH_CACHE_SIZE" env-default:"1024"`
}

type NormalizeConfig struct {
	Stem bool `yaml:"stem" env:"SIMSCORE_NORMALIZE_STEM" env-default:"false"`
}

type EventsConfig struct {
	NatsURL string `yaml:"nats_url" env:"SIMSCORE_NATS_URL"`
	Subject string `yaml:"subject" env:"SIMSCORE_NATS_SUBJECT" env-default:"submission.scored"`
}

// Config is the full service configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level" env:"SIMSCORE_LOG_LEVEL" env-default:"info"`
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Match     MatchConfig     `yaml:"match"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Events    EventsConfig    `yaml:"events"`
}

// Load reads the YAML file at path, overridden by environment variables.
// With an empty path only the environment and defaults are used.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, errors.Join(internalerr.ErrInvalidConfig, err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot express as tags.
func (c Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required for driver "+c.Store.Driver)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		problems = append(problems, "http.max_upload_bytes must be positive")
	}
	if c.Fetch.Attempts <= 0 {
		problems = append(problems, "fetch.attempts must be positive")
	}
	if c.Match.Workers <= 0 {
		problems = append(problems, "match.workers must be positive")
	}
	if c.Match.Budget < 0 {
		problems = append(problems, "match.budget must not be negative")
	}
	if c.Match.CacheSize <= 0 {
		problems = append(problems, "match.cache_size must be positive")
	}
	if c.Fetch.Minio.Endpoint != "" && (c.Fetch.Minio.AccessKey == "" || c.Fetch.Minio.SecretKey == "") {
		problems = append(problems, "fetch.minio needs access_key and secret_key")
	}
	if c.Events.NatsURL != "" && c.Events.Subject == "" {
		problems = append(problems, "events.subject is required with events.nats_url")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), internalerr.ErrInvalidConfig)
	}
	return nil
}
