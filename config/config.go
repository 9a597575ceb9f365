package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Source    SourceConfig    `mapstructure:"source"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Publish   PublishConfig   `mapstructure:"publish"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig 可选；Addr 为空时不启用分类缓存
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	CategoryTTL time.Duration `mapstructure:"category_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expire time.Duration `mapstructure:"expire"`
}

// AdminConfig 运维登录账号，PasswordHash 为 bcrypt 哈希
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type SchedulerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"` // accounts swept in parallel
}

type SourceConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

type AssistantConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	AssistantID       string        `mapstructure:"assistant_id"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Parallel          bool          `mapstructure:"parallel"`
}

type PublishConfig struct {
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
	CategoryTimeout time.Duration `mapstructure:"category_timeout"`
	CreateTimeout   time.Duration `mapstructure:"create_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	// manual generation waits for up to two assistant runs
	v.SetDefault("server.write_timeout", 5*time.Minute)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/autopress.db")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.category_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jwt.expire", 24*time.Hour)
	v.SetDefault("admin.username", "admin")

	v.SetDefault("sentry.environment", "development")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "autopress")

	v.SetDefault("scheduler.interval", 5*time.Minute)
	v.SetDefault("scheduler.concurrency", 4)

	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.retry_count", 3)

	v.SetDefault("assistant.base_url", "https://api.openai.com/v1")
	v.SetDefault("assistant.poll_interval", time.Second)
	v.SetDefault("assistant.max_attempts", 120)
	v.SetDefault("assistant.requests_per_second", 5.0)
	v.SetDefault("assistant.parallel", false)

	v.SetDefault("publish.download_timeout", 30*time.Second)
	v.SetDefault("publish.upload_timeout", 60*time.Second)
	v.SetDefault("publish.category_timeout", 10*time.Second)
	v.SetDefault("publish.create_timeout", 30*time.Second)
}

// Load 读取 config.yaml（可选）+ .env + AUTOPRESS_* 环境变量
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("AUTOPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("assistant.api_key", "AUTOPRESS_ASSISTANT_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("assistant.assistant_id", "AUTOPRESS_ASSISTANT_ASSISTANT_ID", "OPENAI_ASSISTANT_ID")
	_ = v.BindEnv("database.dsn", "AUTOPRESS_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("sentry.dsn", "AUTOPRESS_SENTRY_DSN", "SENTRY_DSN")

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
	return &cfg, nil
}
