package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Live aggregation engine
	Engine EngineConfig `mapstructure:"engine"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port           int    `mapstructure:"port"`
	Retention      string `mapstructure:"retention"`
	ScrapeInterval string `mapstructure:"scrape_interval"`
	Target         string `mapstructure:"target"`
}

// EngineConfig tunes the live view windows. Durations are Go duration
// strings; zero values fall back to the engine defaults.
type EngineConfig struct {
	FeedCapacity         int    `mapstructure:"feed_capacity"`
	FeedTTL              string `mapstructure:"feed_ttl"`
	PulseCapacity        int    `mapstructure:"pulse_capacity"`
	PulseTTL             string `mapstructure:"pulse_ttl"`
	DebounceWindow       string `mapstructure:"debounce_window"`
	RefreshInterval      string `mapstructure:"refresh_interval"`
	PresenceWindow       string `mapstructure:"presence_window"`
	DailyXPCap           int    `mapstructure:"daily_xp_cap"`
	CountryMode          string `mapstructure:"country_mode"`
	Timezone             string `mapstructure:"timezone"`
	RankSnapshotInterval string `mapstructure:"rank_snapshot_interval"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")
	v.BindEnv("postgres.min_conns", "PG_MIN_CONNS")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
	v.BindEnv("prometheus.retention", "PROM_RETENTION")
	v.BindEnv("prometheus.scrape_interval", "PROM_SCRAPE_INTERVAL")
	v.BindEnv("prometheus.target", "PROM_TARGET")

	// Engine
	v.BindEnv("engine.country_mode", "ENGINE_COUNTRY_MODE")
	v.BindEnv("engine.timezone", "ENGINE_TIMEZONE")
	v.BindEnv("engine.daily_xp_cap", "ENGINE_DAILY_XP_CAP")
}
