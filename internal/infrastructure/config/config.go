package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Refund        RefundConfig        `mapstructure:"refund"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type RefundConfig struct {
	// UseAtomicProcedure prefers the server-side refund function; when
	// false every refund takes the step-by-step path.
	UseAtomicProcedure      bool          `mapstructure:"use_atomic_procedure"`
	LockTTL                 time.Duration `mapstructure:"lock_ttl"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
}

type WorkerConfig struct {
	BatchSize          int64         `mapstructure:"batch_size"`
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	ReconcileInterval  time.Duration `mapstructure:"reconcile_interval"`
	ReconcileBatchSize int           `mapstructure:"reconcile_batch_size"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

// Load reads configuration from defaults, an optional config.yaml, and
// REFUNDS_*-prefixed environment variables, in increasing precedence.
// REFUNDS_SERVER_PORT maps to server.port and so on.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("REFUNDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/refunds")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		fail("server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		fail("server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		fail("database.host is required")
	}
	if c.Database.Port <= 0 {
		fail("database.port must be positive")
	}
	if c.Redis.Port <= 0 {
		fail("redis.port must be positive")
	}
	if c.Refund.LockTTL <= 0 {
		fail("refund.lock_ttl must be positive")
	}
	if c.Worker.BatchSize <= 0 {
		fail("worker.batch_size must be positive")
	}
	if c.Worker.ReconcileInterval <= 0 {
		fail("worker.reconcile_interval must be positive")
	}

	if env := os.Getenv("ENV"); env == "production" || env == "prod" {
		if c.Database.Password == "" {
			fail("database.password required in production")
		}
	}

	return errors.Join(errs...)
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.read_timeout":     "15s",
	"server.write_timeout":    "15s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "30s",
	"server.rate_limit":       100,

	"server.cors.allowed_origins":   []string{"*"},
	"server.cors.allow_credentials": false,

	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "refunds",
	"database.database":          "refunds",
	"database.max_connections":   25,
	"database.min_connections":   5,
	"database.conn_max_lifetime": "1h",
	"database.ssl_mode":          "disable",

	"redis.host":                "localhost",
	"redis.port":                6379,
	"redis.db":                  0,
	"redis.connect_retries":     5,
	"redis.connect_retry_delay": "1s",

	"worker.batch_size":           10,
	"worker.block_duration":       "5s",
	"worker.outbox_poll_interval": "2s",
	"worker.reconcile_interval":   "1m",
	"worker.reconcile_batch_size": 10,
	"worker.consumer_group":       "refunds-worker",

	"refund.use_atomic_procedure":      true,
	"refund.lock_ttl":                  "30s",
	"refund.circuit_breaker_threshold": 10,
	"refund.circuit_breaker_timeout":   "30s",

	"observability.log_level":       "info",
	"observability.jaeger_endpoint": "http://localhost:14268/api/traces",
	"observability.enable_metrics":  true,
	"observability.enable_tracing":  true,

	"instance_id": "refunds-1",
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
