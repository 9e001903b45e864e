package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Xray         XrayConfig         `mapstructure:"xray"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Admin        AdminConfig        `mapstructure:"admin"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout_ms"`
}

// XrayConfig describes the external tunnel engine: how to launch it and
// where its loopback websocket inbound listens. Command is the argv prefix;
// the generated config path is appended as the final argument.
type XrayConfig struct {
	Command     []string      `mapstructure:"command"`
	ConfigPath  string        `mapstructure:"config_path"`
	Port        int           `mapstructure:"port"`
	TunnelPath  string        `mapstructure:"tunnel_path"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	WarmupDelay time.Duration `mapstructure:"warmup_delay"`
}

type SubscriptionConfig struct {
	Host           string `mapstructure:"host"`
	UpdateInterval int    `mapstructure:"update_interval_hours"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("database.path", "data/vpn.db")
	viper.SetDefault("database.busy_timeout_ms", 5000)
	viper.SetDefault("xray.command", []string{"/usr/local/bin/xray", "run", "-config"})
	viper.SetDefault("xray.config_path", "data/xray_config.json")
	viper.SetDefault("xray.port", 10001)
	viper.SetDefault("xray.tunnel_path", "/tunnel")
	viper.SetDefault("xray.settle_delay", "1s")
	viper.SetDefault("xray.warmup_delay", "2s")
	viper.SetDefault("subscription.update_interval_hours", 6)
	viper.SetDefault("jwt.access_token_ttl", "12h")
	viper.SetDefault("scheduler.interval", "1h")
	viper.SetDefault("logging.level", "info")
}
