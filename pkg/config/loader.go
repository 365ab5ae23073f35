package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env (if present), config.yaml from the usual locations and
// the environment, in increasing order of precedence
func Load() (*Config, error) {
	return LoadFrom("./configs", ".", "/app/configs")
}

// LoadFrom is Load with explicit config search paths
func LoadFrom(paths ...string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	v.BindEnv("webapp.base_url", "API_URL", "APP_WEBAPP_BASE_URL")
	v.BindEnv("telegram.init_data", "TELEGRAM_INIT_DATA", "APP_TELEGRAM_INIT_DATA")
	v.BindEnv("nats.url", "NATS_URL", "APP_NATS_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "totli-webapp")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("webapp.base_url", "http://localhost:5000")
	v.SetDefault("webapp.timeout", time.Duration(0))

	v.SetDefault("telegram.init_data_env", "TELEGRAM_INIT_DATA")

	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.transport", "socketio")
	v.SetDefault("realtime.path", "/socket.io/")
	v.SetDefault("realtime.namespace", "/")
	v.SetDefault("realtime.event", "refresh")
	v.SetDefault("realtime.subject", "webapp.refresh")
	v.SetDefault("realtime.channel", "webapp:refresh")
	v.SetDefault("realtime.reconnect_min", time.Second)
	v.SetDefault("realtime.reconnect_max", 30*time.Second)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.port", 8090)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("region.timezone", "Asia/Tashkent")
	v.SetDefault("region.locale", "uz-UZ")
	v.SetDefault("region.currency_suffix", "so'm")

	v.SetDefault("dashboard.feed_limit", 40)
	v.SetDefault("dashboard.resync_schedule", "")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", 60*time.Second)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.failure_threshold", 5)

	v.SetDefault("opentelemetry.enabled", false)
	v.SetDefault("opentelemetry.service_name", "totli-webapp")
	v.SetDefault("opentelemetry.jaeger.endpoint", "http://jaeger:14268/api/traces")
	v.SetDefault("opentelemetry.jaeger.sampler_param", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the settings the sync loop cannot run without
func (c *Config) Validate() error {
	u, err := url.Parse(c.WebApp.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid webapp.base_url %q: must be an absolute http(s) URL", c.WebApp.BaseURL)
	}
	if c.WebApp.Timeout < 0 {
		return fmt.Errorf("invalid webapp.timeout %s: must not be negative", c.WebApp.Timeout)
	}

	switch c.Realtime.Transport {
	case "socketio", "nats", "redis":
	default:
		return fmt.Errorf("invalid realtime.transport %q: want socketio, nats or redis", c.Realtime.Transport)
	}
	if c.Realtime.ReconnectMax < c.Realtime.ReconnectMin {
		return fmt.Errorf("invalid realtime reconnect window: max %s below min %s", c.Realtime.ReconnectMax, c.Realtime.ReconnectMin)
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	if c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("invalid circuit_breaker.failure_threshold %d: must be positive", c.CircuitBreaker.FailureThreshold)
	}
	return nil
}
