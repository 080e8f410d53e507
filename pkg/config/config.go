package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Diagnostics struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"diagnostics"`

	Transport struct {
		Address             string        `yaml:"address"`
		ReconnectBackoffMin time.Duration `yaml:"reconnect_backoff_min"`
		ReconnectBackoffMax time.Duration `yaml:"reconnect_backoff_max"`
		ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"transport"`

	Roles struct {
		Source struct {
			Enabled         bool     `yaml:"enabled"`
			MaxPeers        int      `yaml:"max_peers"`
			CodecPriorities []string `yaml:"codec_priorities"`
		} `yaml:"source"`
		Sink struct {
			Enabled  bool `yaml:"enabled"`
			MaxPeers int  `yaml:"max_peers"`
		} `yaml:"sink"`
	} `yaml:"roles"`

	// Platform carries the host's hardware/feature capability flags, fed
	// into InitSource: the delay-report and absolute-volume flags select
	// Transport.Enable feature bits, and the two offload flags set
	// Role.OffloadCapable (§6).
	Platform struct {
		OffloadSupported           bool `yaml:"offload_supported"`
		OffloadDisabled            bool `yaml:"offload_disabled"`
		DelayReportingEnabled      bool `yaml:"delay_reporting_enabled"`
		AvrcpAbsoluteVolumeEnabled bool `yaml:"avrcp_absolute_volume_enabled"`
	} `yaml:"platform"`

	AudioSession struct {
		RetryMaxAttempts      int           `yaml:"retry_max_attempts"`
		RetryInitialDelay     time.Duration `yaml:"retry_initial_delay"`
		RetryMaxDelay         time.Duration `yaml:"retry_max_delay"`
		BreakerFailureThreshold int         `yaml:"breaker_failure_threshold"`
		BreakerTimeout        time.Duration `yaml:"breaker_timeout"`
		ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"audio_session"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		PrometheusPort    int           `yaml:"prometheus_port"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Snapshotter struct {
		Enabled         bool          `yaml:"enabled"`
		Interval        time.Duration `yaml:"interval"`
		RetentionDays   int           `yaml:"retention_days"`
		StorageDir      string        `yaml:"storage_dir"`
	} `yaml:"snapshotter"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Diagnostics.Address == "" {
		return fmt.Errorf("diagnostics.address must not be empty")
	}
	if c.Diagnostics.ReadTimeout <= 0 {
		return fmt.Errorf("diagnostics.read_timeout must be > 0")
	}
	if c.Diagnostics.WriteTimeout <= 0 {
		return fmt.Errorf("diagnostics.write_timeout must be > 0")
	}
	if c.Diagnostics.ShutdownTimeout <= 0 {
		return fmt.Errorf("diagnostics.shutdown_timeout must be > 0")
	}

	if c.Transport.Address == "" {
		return fmt.Errorf("transport.address must not be empty")
	}
	if c.Transport.ReconnectBackoffMin <= 0 {
		return fmt.Errorf("transport.reconnect_backoff_min must be > 0")
	}
	if c.Transport.ReconnectBackoffMax < c.Transport.ReconnectBackoffMin {
		return fmt.Errorf("transport.reconnect_backoff_max must be >= reconnect_backoff_min")
	}

	if c.Roles.Source.Enabled && c.Roles.Source.MaxPeers <= 0 {
		return fmt.Errorf("roles.source.max_peers must be > 0 when roles.source.enabled=true")
	}
	if c.Roles.Sink.Enabled && c.Roles.Sink.MaxPeers <= 0 {
		return fmt.Errorf("roles.sink.max_peers must be > 0 when roles.sink.enabled=true")
	}
	if !c.Roles.Source.Enabled && !c.Roles.Sink.Enabled {
		return fmt.Errorf("at least one of roles.source.enabled or roles.sink.enabled must be true")
	}

	if c.AudioSession.RetryMaxAttempts < 0 {
		return fmt.Errorf("audio_session.retry_max_attempts must be >= 0")
	}
	if c.AudioSession.BreakerFailureThreshold <= 0 {
		return fmt.Errorf("audio_session.breaker_failure_threshold must be > 0")
	}
	if c.AudioSession.ShutdownTimeout <= 0 {
		return fmt.Errorf("audio_session.shutdown_timeout must be > 0")
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}
	if c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.Snapshotter.Enabled {
		if c.Snapshotter.Interval <= 0 {
			return fmt.Errorf("snapshotter.interval must be > 0 when snapshotter.enabled=true")
		}
		if c.Snapshotter.RetentionDays <= 0 {
			return fmt.Errorf("snapshotter.retention_days must be > 0 when snapshotter.enabled=true")
		}
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Diagnostics.Address = ":8080"
	cfg.Diagnostics.ReadTimeout = 30 * time.Second
	cfg.Diagnostics.WriteTimeout = 30 * time.Second
	cfg.Diagnostics.ShutdownTimeout = 30 * time.Second

	cfg.Transport.Address = "ws://localhost:8090/transport"
	cfg.Transport.ReconnectBackoffMin = 500 * time.Millisecond
	cfg.Transport.ReconnectBackoffMax = 30 * time.Second
	cfg.Transport.ShutdownTimeout = 5 * time.Second

	cfg.Roles.Source.Enabled = true
	cfg.Roles.Source.MaxPeers = 1
	cfg.Roles.Source.CodecPriorities = []string{"aac", "sbc"}
	cfg.Roles.Sink.Enabled = false
	cfg.Roles.Sink.MaxPeers = 5

	cfg.Platform.OffloadSupported = false
	cfg.Platform.OffloadDisabled = false
	cfg.Platform.DelayReportingEnabled = true
	cfg.Platform.AvrcpAbsoluteVolumeEnabled = true

	cfg.AudioSession.RetryMaxAttempts = 3
	cfg.AudioSession.RetryInitialDelay = 100 * time.Millisecond
	cfg.AudioSession.RetryMaxDelay = 2 * time.Second
	cfg.AudioSession.BreakerFailureThreshold = 5
	cfg.AudioSession.BreakerTimeout = 30 * time.Second
	cfg.AudioSession.ShutdownTimeout = 1 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.MetricsInterval = 30 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Snapshotter.Enabled = true
	cfg.Snapshotter.Interval = 1 * time.Hour
	cfg.Snapshotter.RetentionDays = 7
	cfg.Snapshotter.StorageDir = "./snapshots"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("A2DPMGR_DIAGNOSTICS_ADDRESS"); addr != "" {
		c.Diagnostics.Address = addr
	}
	if addr := os.Getenv("A2DPMGR_TRANSPORT_ADDRESS"); addr != "" {
		c.Transport.Address = addr
	}
	if level := os.Getenv("A2DPMGR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("A2DPMGR_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
