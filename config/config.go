package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | sqlite_memory | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"` // empty = in-process cache
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// BattleConfig tunes the turn scheduler and the battle loop.
type BattleConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"` // pacing between turns
	InputTimeout time.Duration `mapstructure:"input_timeout"` // per player turn
	StallWarning time.Duration `mapstructure:"stall_warning"` // diagnostic only, never auto-advances
	MaxPartySize int           `mapstructure:"max_party_size"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/beastline.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("battle.tick_interval", "50ms")
	v.SetDefault("battle.input_timeout", "2m")
	v.SetDefault("battle.stall_warning", "5m")
	v.SetDefault("battle.max_party_size", 3)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
