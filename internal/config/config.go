package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv                string
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	MigrateOnStart        bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	ShopTimezone          string
	ShopName              string
	AuthSecret            string
	AccessTokenTTLMinutes int
	OwnerUsername         string
	OwnerPassword         string
	CashierUsername       string
	CashierPassword       string
	LogLevel              string
	LogFormat             string
	LogOutput             string
}

// Load reads configuration from the environment and an optional config.yaml
// in the working directory or /etc/habibdukan. Environment wins.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/habibdukan")

	v.SetDefault("app_env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("database_url", "")
	v.SetDefault("migrate_on_start", true)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("report_cache_ttl_seconds", 60)
	v.SetDefault("shop_timezone", "Asia/Karachi")
	v.SetDefault("shop_name", "Habib Dukan")
	v.SetDefault("auth_secret", "")
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("owner_username", "owner")
	v.SetDefault("owner_password", "")
	v.SetDefault("cashier_username", "cashier")
	v.SetDefault("cashier_password", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "")
	v.SetDefault("log_output", "stdout")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		AppEnv:                strings.TrimSpace(v.GetString("app_env")),
		Port:                  strings.TrimSpace(v.GetString("port")),
		AllowedOrigin:         v.GetString("allowed_origin"),
		DatabaseURL:           strings.TrimSpace(v.GetString("database_url")),
		MigrateOnStart:        v.GetBool("migrate_on_start"),
		RedisAddr:             strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               v.GetInt("redis_db"),
		ReportCacheTTLSeconds: v.GetInt("report_cache_ttl_seconds"),
		ShopTimezone:          strings.TrimSpace(v.GetString("shop_timezone")),
		ShopName:              strings.TrimSpace(v.GetString("shop_name")),
		AuthSecret:            strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes: v.GetInt("access_token_ttl_minutes"),
		OwnerUsername:         strings.TrimSpace(v.GetString("owner_username")),
		OwnerPassword:         strings.TrimSpace(v.GetString("owner_password")),
		CashierUsername:       strings.TrimSpace(v.GetString("cashier_username")),
		CashierPassword:       strings.TrimSpace(v.GetString("cashier_password")),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
		LogOutput:             v.GetString("log_output"),
	}
	applyDefaults(&cfg)

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ReportCacheTTLSeconds < 1 {
		cfg.ReportCacheTTLSeconds = 60
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.ShopTimezone == "" {
		cfg.ShopTimezone = "Asia/Karachi"
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "Habib Dukan"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.AppEnv == "production" {
			cfg.LogFormat = "json"
		}
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location is the timezone every calendar-day computation runs in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ShopTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SHOP_TIMEZONE %q: %w", c.ShopTimezone, err)
	}
	return loc, nil
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}
