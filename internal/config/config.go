package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store engines.
const (
	EngineElasticsearch = "elasticsearch"
	EngineBolt          = "bolt"
)

// Mail drivers.
const (
	MailSES = "ses"
	MailLog = "log"
)

// Storage drivers.
const (
	StorageS3    = "s3"
	StorageMinio = "minio"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string `env:"APP_NAME" envDefault:"ocxers"`
	Environment string `env:"APP_ENV" envDefault:"development"`

	HTTP     HTTPConfig
	Store    StoreConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Hosts    HostsConfig
	Mail     MailConfig
	Storage  StorageConfig
	Realtime RealtimeConfig
	Worker   WorkerConfig
	Context  ContextConfig
	Logger   LoggerConfig
}

type HTTPConfig struct {
	Host          string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port          string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout   time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout  time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout   time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	MaxBodySize   int           `env:"SERVER_MAX_BODY_SIZE" envDefault:"33554432"`
	EnablePprof   bool          `env:"SERVER_ENABLE_PPROF" envDefault:"false"`
	EnableMetrics bool          `env:"SERVER_ENABLE_METRICS" envDefault:"false"`
}

type StoreConfig struct {
	Engine       string        `env:"STORE_ENGINE" envDefault:"elasticsearch"`
	URLs         []string      `env:"ELASTICSEARCH_URLS" envDefault:"http://localhost:9200" envSeparator:","`
	Username     string        `env:"ELASTICSEARCH_USERNAME"`
	Password     string        `env:"ELASTICSEARCH_PASSWORD"`
	BoltPath     string        `env:"STORE_BOLT_PATH" envDefault:"./data/store.db"`
	ReadyTimeout time.Duration `env:"STORE_READY_TIMEOUT" envDefault:"30s"`
}

// RedisConfig enables cross-instance realtime fan-out when URL is set.
type RedisConfig struct {
	URL      string `env:"REDIS_URL"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Channel  string `env:"REALTIME_CHANNEL" envDefault:"ocxers:realtime"`
}

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET"`
	SessionTTL time.Duration `env:"JWT_SESSION_TTL" envDefault:"336h"`
	InviteTTL  time.Duration `env:"JWT_INVITE_TTL" envDefault:"336h"`
	ResetTTL   time.Duration `env:"JWT_RESET_TTL" envDefault:"2h"`
}

// HostsConfig holds the public URLs embedded in emailed links.
type HostsConfig struct {
	EmailHost string `env:"EMAIL_HOST"`
	AppHost   string `env:"APP_HOST" envDefault:"http://localhost:3000"`
	APIHost   string `env:"API_HOST" envDefault:"http://localhost:8080"`
}

// LinkHost is the host used for invitation and reset links.
func (h HostsConfig) LinkHost() string {
	if h.EmailHost != "" {
		return h.EmailHost
	}
	return h.AppHost
}

type MailConfig struct {
	Driver          string `env:"MAIL_DRIVER" envDefault:"log"`
	NoReply         string `env:"NO_REPLY_EMAIL" envDefault:"noreply@example.com"`
	FromTitle       string `env:"MAIL_FROM_TITLE" envDefault:"__ocxers__"`
	Region          string `env:"SES_REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SES_SECRET_ACCESS_KEY"`
}

type StorageConfig struct {
	Driver          string `env:"STORAGE_DRIVER" envDefault:"s3"`
	Bucket          string `env:"S3_BUCKET"`
	Folder          string `env:"S3_FOLDER" envDefault:"uploads"`
	Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"S3_ENDPOINT"`
	UseSSL          bool   `env:"S3_USE_SSL" envDefault:"true"`
}

type RealtimeConfig struct {
	Path           string `env:"SOCKET_PATH" envDefault:"/__ocxers__/"`
	AllowedOrigins string `env:"SOCKET_URL"`
	SendBuffer     int    `env:"SOCKET_SEND_BUFFER" envDefault:"16"`
}

// Origins splits the allowed origins list. Entries are separated by "_".
func (r RealtimeConfig) Origins() []string {
	if strings.TrimSpace(r.AllowedOrigins) == "" {
		return nil
	}
	var out []string
	for _, origin := range strings.Split(r.AllowedOrigins, "_") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

type WorkerConfig struct {
	Interval        time.Duration `env:"WORKER_INTERVAL" envDefault:"24h"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL" envDefault:"10s"`
}

type ContextConfig struct {
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type LoggerConfig struct {
	Level    string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding string `env:"LOG_ENCODING" envDefault:"json"`
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.Store.Engine {
	case EngineElasticsearch, EngineBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_ENGINE %q", c.Store.Engine))
	}
	switch c.Mail.Driver {
	case MailSES, MailLog:
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_DRIVER %q", c.Mail.Driver))
	}
	switch c.Storage.Driver {
	case StorageS3, StorageMinio:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	if c.Storage.Driver == StorageMinio && c.Storage.Endpoint == "" {
		errs = append(errs, errors.New("S3_ENDPOINT is required for the minio driver"))
	}
	return errors.Join(errs...)
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
