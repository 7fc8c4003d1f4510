package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "subsync/internal/shared/config"
)

type Config struct {
	Server     sharedConfig.ServerConfig     `mapstructure:"server"`
	Database   sharedConfig.DatabaseConfig   `mapstructure:"database"`
	Logger     sharedConfig.LoggerConfig     `mapstructure:"logger"`
	Redis      sharedConfig.RedisConfig      `mapstructure:"redis"`
	Webhook    sharedConfig.WebhookConfig    `mapstructure:"webhook"`
	BillingAPI sharedConfig.BillingAPIConfig `mapstructure:"billing_api"`
	Sweep      sharedConfig.SweepConfig      `mapstructure:"sweep"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env, configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("../configs")
		viper.AddConfigPath("../../configs")
	}

	// Set environment variable prefix and replacer
	viper.SetEnvPrefix("SUBSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// validate rejects configurations that would silently weaken the webhook
// boundary. Running without a signing secret requires an explicit opt-in.
func validate(cfg *Config) error {
	if cfg.Webhook.SigningSecret == "" && !cfg.Webhook.AllowUnsigned {
		return fmt.Errorf("webhook.signing_secret is empty; set it or explicitly enable webhook.allow_unsigned")
	}
	if cfg.Webhook.SignatureTTLSeconds <= 0 {
		return fmt.Errorf("webhook.signature_ttl_seconds must be positive")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "subsync_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Webhook defaults
	viper.SetDefault("webhook.signing_secret", "")
	viper.SetDefault("webhook.signature_ttl_seconds", 300)
	viper.SetDefault("webhook.allow_unsigned", false)

	// Billing API defaults
	viper.SetDefault("billing_api.base_url", "")
	viper.SetDefault("billing_api.key", "")
	viper.SetDefault("billing_api.secret", "")
	viper.SetDefault("billing_api.timeout_seconds", 30)

	// Sweep defaults
	viper.SetDefault("sweep.interval_minutes", 60)
	viper.SetDefault("sweep.page_size", 100)
}
