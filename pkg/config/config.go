package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	WebApp         WebAppConfig         `mapstructure:"webapp"`
	Telegram       TelegramConfig       `mapstructure:"telegram"`
	Realtime       RealtimeConfig       `mapstructure:"realtime"`
	NATS           NATSConfig           `mapstructure:"nats"`
	Redis          RedisConfig          `mapstructure:"redis"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Region         RegionConfig         `mapstructure:"region"`
	Dashboard      DashboardConfig      `mapstructure:"dashboard"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// WebAppConfig points at the backend serving the mini-app API.
// A zero timeout means requests are not time-limited.
type WebAppConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig says where the session token (Telegram initData) comes
// from. Sources are consulted in order: init_data, the init_data_env
// variable, then init_data_file.
type TelegramConfig struct {
	InitData     string `mapstructure:"init_data"`
	InitDataEnv  string `mapstructure:"init_data_env"`
	InitDataFile string `mapstructure:"init_data_file"`
}

type RealtimeConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Transport    string        `mapstructure:"transport"`
	Path         string        `mapstructure:"path"`
	Namespace    string        `mapstructure:"namespace"`
	Event        string        `mapstructure:"event"`
	Subject      string        `mapstructure:"subject"`
	Channel      string        `mapstructure:"channel"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// HTTPConfig configures the local presentation bridge
type HTTPConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type RegionConfig struct {
	Timezone       string `mapstructure:"timezone"`
	Locale         string `mapstructure:"locale"`
	CurrencySuffix string `mapstructure:"currency_suffix"`
}

type DashboardConfig struct {
	FeedLimit      int    `mapstructure:"feed_limit"`
	ResyncSchedule string `mapstructure:"resync_schedule"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
	ServiceName string       `mapstructure:"service_name"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
