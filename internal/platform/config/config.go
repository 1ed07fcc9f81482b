// Package config loads process configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// DefaultAppID scopes the member collection when APP_ID is unset.
const DefaultAppID = "default-policardmed-app"

// Config is the full process configuration.
type Config struct {
	Env      string `env:"APP_ENV" env-default:"development"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	AppID    string `env:"APP_ID" env-default:"default-policardmed-app"`

	Server   Server
	Store    Store
	Redis    RedisConfig
	Kafka    KafkaConfig
	Identity Identity
	Audit    Audit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"0s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	OpsToken        string        `env:"OPS_TOKEN"`

	// TrustedProxies lists addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES" env-separator:","`
}

// Store selects and reaches the member repository.
type Store struct {
	Backend          string        `env:"STORE_BACKEND" env-default:"memory"`
	PostgresDSN      string        `env:"POSTGRES_DSN"`
	PostgresNotify   bool          `env:"POSTGRES_NOTIFY" env-default:"true"`
	PollPeriod       time.Duration `env:"STORE_POLL_PERIOD" env-default:"2s"`
	MongoURI         string        `env:"MONGO_URI"`
	MongoDatabase    string        `env:"MONGO_DATABASE" env-default:"policardmed"`
	ConnectTimeout   time.Duration `env:"STORE_CONNECT_TIMEOUT" env-default:"10s"`
	MaxOpenConns     int           `env:"POSTGRES_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns     int           `env:"POSTGRES_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime  time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" env-default:"30m"`
	RunMigrations    bool          `env:"POSTGRES_MIGRATE" env-default:"true"`
	EnsureMongoIndex bool          `env:"MONGO_ENSURE_INDEXES" env-default:"true"`
}

// RedisConfig enables the shared token revocation list when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" env-separator:","`
	AuditTopic        string   `env:"KAFKA_AUDIT_TOPIC" env-default:"policardmed.audit"`
	Partitions        int32    `env:"KAFKA_AUDIT_PARTITIONS" env-default:"3"`
	ReplicationFactor int16    `env:"KAFKA_AUDIT_REPLICATION" env-default:"1"`
	ClientID          string   `env:"KAFKA_CLIENT_ID" env-default:"policardmed"`
	ConsumerGroup     string   `env:"KAFKA_AUDIT_CONSUMER_GROUP" env-default:"policardmed-audit-sink"`
}

// Identity holds the admin account and session settings. AdminPassword is a
// development convenience; production sets AdminPasswordHash.
type Identity struct {
	AdminUsername     string        `env:"ADMIN_USERNAME" env-default:"admin@policardmed.com"`
	AdminPassword     string        `env:"ADMIN_PASSWORD" env-default:"admin123"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	JWTSigningKey     string        `env:"JWT_SIGNING_KEY" env-default:"dev-secret-key-change-in-production"`
	JWTIssuer         string        `env:"JWT_ISSUER" env-default:"policardmed"`
	JWTAudience       string        `env:"JWT_AUDIENCE" env-default:"policardmed-web"`
	TokenTTL          time.Duration `env:"SESSION_TTL" env-default:"8h"`
	LoginMaxFailures  int           `env:"LOGIN_MAX_FAILURES" env-default:"5"`
	LoginWindow       time.Duration `env:"LOGIN_FAILURE_WINDOW" env-default:"15m"`
}

// Audit tunes the audit publisher.
type Audit struct {
	BufferSize       int     `env:"AUDIT_BUFFER_SIZE" env-default:"1024"`
	FailureThreshold int     `env:"AUDIT_FAILURE_THRESHOLD" env-default:"5"`
	SuccessThreshold int     `env:"AUDIT_SUCCESS_THRESHOLD" env-default:"2"`
	OpsSampleRate    float64 `env:"AUDIT_OPS_SAMPLE_RATE" env-default:"1"`
}

// Load reads envFiles (".env" when none are given) if they exist, then the
// environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements cleanenv cannot express.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.AppID == "" {
		return errors.New("APP_ID cannot be empty")
	}
	if c.Identity.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY cannot be empty")
	}
	if c.IsProduction() && c.Identity.AdminPasswordHash == "" {
		return errors.New("ADMIN_PASSWORD_HASH is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// String renders the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s app_id=%s addr=%s store=%s redis=%t kafka_brokers=%d",
		c.Env, c.AppID, c.Server.Addr, c.Store.Backend, c.Redis.URL != "", len(c.Kafka.Brokers))
}
