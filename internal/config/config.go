package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	// 容器镜像中可能没有 zoneinfo
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Mission   MissionConfig   `mapstructure:"mission"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"`
	Dir          string `mapstructure:"-"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool   `mapstructure:"parse_time"`
	SSLMode   string `mapstructure:"sslmode"`
	// 仅 sqlite 驱动使用
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type MissionConfig struct {
	WSURL       string `mapstructure:"ws_url"`
	ExpiresInMs int64  `mapstructure:"expires_in_ms"`
	// 额外的终止事件类型，统一映射为默认终止状态（EXPIRED）
	ExtraTerminalEvents []string `mapstructure:"extra_terminal_events"`
}

type AnalyticsConfig struct {
	Timezone    string `mapstructure:"timezone"`
	RecentLimit int    `mapstructure:"recent_limit"`
}

type WebSocketConfig struct {
	MaxMessageSize    int64   `mapstructure:"max_message_size"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Location 解析统计使用的时区，解析失败时回退到 UTC
func (c AnalyticsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/mission.db")
	v.SetDefault("log.path", "logs/app.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("mission.ws_url", "ws://localhost:8080/ws/missions")
	v.SetDefault("mission.expires_in_ms", 3600000)
	v.SetDefault("analytics.timezone", "UTC")
	v.SetDefault("analytics.recent_limit", 20)
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.messages_per_second", 30)
	v.SetDefault("websocket.burst", 50)
}

// ConfigFile 返回 LoadConfig 在 dir 下读取的配置文件路径
func ConfigFile(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Mission
	v.BindEnv("mission.ws_url", "MISSION_WS_URL")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Dir = path

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == DriverSQLite {
		dir := filepath.Dir(cfg.Database.Path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			os.MkdirAll(dir, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	// 生产环境不允许使用 sqlite
	if c.Server.Mode == "release" && c.Database.Driver == DriverSQLite {
		return fmt.Errorf("sqlite driver is not allowed in release mode")
	}

	if c.Mission.ExpiresInMs < 0 {
		return fmt.Errorf("mission.expires_in_ms must not be negative")
	}
	return nil
}
