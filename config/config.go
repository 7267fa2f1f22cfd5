package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	Trending     TrendingConfig     `mapstructure:"trending"`
	Hashtag      HashtagConfig      `mapstructure:"hashtag"`
	Retention    RetentionConfig    `mapstructure:"retention"`
	Notification NotificationConfig `mapstructure:"notification"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// GlobalRPS 进程级请求速率上限，0 表示不限制
	GlobalRPS   float64 `mapstructure:"global_rps"`
	GlobalBurst int     `mapstructure:"global_burst"`
	// AdminToken 运维接口令牌，为空时关闭运维接口
	AdminToken string `mapstructure:"admin_token"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expire time.Duration `mapstructure:"expire"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type TrendingConfig struct {
	Cron        string   `mapstructure:"cron"`
	Locations   []string `mapstructure:"locations"`
	MinActivity int      `mapstructure:"min_activity"`
}

type HashtagConfig struct {
	DailyResetCron   string `mapstructure:"daily_reset_cron"`
	WeeklyResetCron  string `mapstructure:"weekly_reset_cron"`
	MonthlyResetCron string `mapstructure:"monthly_reset_cron"`
}

type RetentionConfig struct {
	Cron string `mapstructure:"cron"`
}

type NotificationConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	Max     int64         `mapstructure:"max"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.global_burst", 200)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=socialgraph port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expire", 24*time.Hour)
	v.SetDefault("jwt.issuer", "socialgraph")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("trending.cron", "*/10 * * * *")
	v.SetDefault("trending.locations", []string{"global"})
	v.SetDefault("trending.min_activity", 5)

	v.SetDefault("hashtag.daily_reset_cron", "0 0 * * *")
	v.SetDefault("hashtag.weekly_reset_cron", "0 0 * * 1")
	v.SetDefault("hashtag.monthly_reset_cron", "0 0 1 * *")

	v.SetDefault("retention.cron", "0 3 * * *")

	v.SetDefault("notification.queue_size", 10000)
	v.SetDefault("notification.workers", 4)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.max", 60)

	v.SetDefault("tracing.service_name", "socialgraph")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)
}

// Load 读取 config/config.yaml（可选）并叠加 SOCIALGRAPH_ 前缀的环境变量
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SOCIALGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Trending.Locations) == 0 {
		cfg.Trending.Locations = []string{"global"}
	}
	return &cfg, nil
}
