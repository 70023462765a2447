// Package config загружает настройки сервера из YAML файла и окружения.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Logger profiles
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// MinJWTSecretLength минимальная длина HS256 ключа
const MinJWTSecretLength = 32

// Config настройки сервера
type Config struct {
	Env        string `yaml:"env" env:"APP_ENV" env-default:"local" env-description:"logger profile: local, dev or prod"`
	DB         `yaml:"db"`
	HTTPServer `yaml:"http_server"`
	JWT        `yaml:"jwt"`
	ML         `yaml:"ml"`
	RateLimit  `yaml:"rate_limit"`
	S3         `yaml:"s3"`
}

// DB настройки хранилища
type DB struct {
	// postgres://... -> Postgres, иначе путь к файлу SQLite
	URL string `yaml:"url" env:"DATABASE_URL" env-default:"cropscan.db" env-description:"postgres DSN or SQLite file path"`
}

// HTTPServer настройки HTTP сервера
type HTTPServer struct {
	Host            string        `yaml:"host" env:"HOST" env-description:"listen host"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-description:"comma separated CORS origins, empty allows any"`
	Port            int           `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadSize   int64         `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE" env-default:"5242880" env-description:"maximum image size in bytes"`
}

// JWT настройки сессионных токенов
type JWT struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET" env-required:"true" env-description:"HS256 signing key, at least 32 characters"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL" env-default:"168h"`
}

// ML настройки сервиса инференса
type ML struct {
	URL     string        `yaml:"url" env:"ML_SERVICE_URL" env-required:"true" env-description:"inference service base URL"`
	Timeout time.Duration `yaml:"timeout" env:"ML_SERVICE_TIMEOUT" env-default:"12s"`
}

// RateLimit лимиты запросов с одного IP
type RateLimit struct {
	Global       int           `yaml:"global" env:"RATE_LIMIT_GLOBAL" env-default:"100"`
	GlobalWindow time.Duration `yaml:"global_window" env:"RATE_LIMIT_GLOBAL_WINDOW" env-default:"15m"`
	Auth         int           `yaml:"auth" env:"RATE_LIMIT_AUTH" env-default:"5"`
	AuthWindow   time.Duration `yaml:"auth_window" env:"RATE_LIMIT_AUTH_WINDOW" env-default:"1h"`
}

// S3 архив изображений, отключен при пустом Bucket
type S3 struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT" env-description:"custom endpoint, e.g. MinIO"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
}

// Load читает конфигурацию
// При пустом path используется только окружение
func Load(path string) (*Config, error) {
	var cfg Config

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate проверяет значения, которые нельзя выразить тегами
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("unknown APP_ENV %q", c.Env))
	}

	if c.DB.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL must not be empty"))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	if len(c.JWT.Secret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength))
	}

	if err := validateBaseURL(c.ML.URL); err != nil {
		errs = append(errs, fmt.Errorf("ML_SERVICE_URL: %w", err))
	}

	if c.S3.Endpoint != "" {
		if err := validateBaseURL(c.S3.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("S3_ENDPOINT: %w", err))
		}
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"READ_TIMEOUT", int64(c.ReadTimeout)},
		{"WRITE_TIMEOUT", int64(c.WriteTimeout)},
		{"IDLE_TIMEOUT", int64(c.IdleTimeout)},
		{"SHUTDOWN_TIMEOUT", int64(c.ShutdownTimeout)},
		{"MAX_UPLOAD_SIZE", c.MaxUploadSize},
		{"JWT_TTL", int64(c.JWT.TTL)},
		{"ML_SERVICE_TIMEOUT", int64(c.ML.Timeout)},
		{"RATE_LIMIT_GLOBAL", int64(c.Global)},
		{"RATE_LIMIT_GLOBAL_WINDOW", int64(c.GlobalWindow)},
		{"RATE_LIMIT_AUTH", int64(c.Auth)},
		{"RATE_LIMIT_AUTH_WINDOW", int64(c.AuthWindow)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}

	return errors.Join(errs...)
}

// Addr адрес для http.Server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ArchiveEnabled сообщает, настроен ли S3 архив
func (c *Config) ArchiveEnabled() bool {
	return c.S3.Bucket != ""
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
