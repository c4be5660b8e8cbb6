package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultServerAddress = "http://localhost:8080"
	defaultLogLevel      = "info"
	defaultConfigDir     = ".fieldvisit"
)

// Client конфигурация клиента полевого техника
type Client struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	LogLevel      string `mapstructure:"log_level"`
	ConfigDir     string `mapstructure:"config_dir"`
	DataPath      string `mapstructure:"data_path"`

	// Синхронизация
	SyncIntervalMinutes  int  `mapstructure:"sync_interval_minutes"`
	SyncLockTTLMinutes   int  `mapstructure:"sync_lock_ttl_minutes"`
	RemoteWinsWhenNewer  bool `mapstructure:"sync_remote_wins_when_newer"`
	ProbeIntervalSeconds int  `mapstructure:"probe_interval_seconds"`
}

// Server конфигурация сервера синхронизации
type Server struct {
	Env         string `mapstructure:"app_env"`
	RunAddress  string `mapstructure:"run_address"`
	LogLevel    string `mapstructure:"log_level"`
	DatabaseURI string `mapstructure:"database_uri"`
}

// MustLoadClient загружает конфигурацию клиента из окружения и .env
func MustLoadClient() *Client {
	loadDotenv()
	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", EnvLocal)
	viper.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("SYNC_INTERVAL_MINUTES", 15)
	viper.SetDefault("SYNC_LOCK_TTL_MINUTES", 30)
	viper.SetDefault("SYNC_REMOTE_WINS_WHEN_NEWER", true)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", 30)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		panic(fmt.Sprintf("create config dir: %v", err))
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "visits.db")
	}

	cfg := &Client{
		Env:                  viper.GetString("APP_ENV"),
		ServerAddress:        viper.GetString("SERVER_ADDRESS"),
		LogLevel:             viper.GetString("LOG_LEVEL"),
		ConfigDir:            configDir,
		DataPath:             dataPath,
		SyncIntervalMinutes:  viper.GetInt("SYNC_INTERVAL_MINUTES"),
		SyncLockTTLMinutes:   viper.GetInt("SYNC_LOCK_TTL_MINUTES"),
		RemoteWinsWhenNewer:  viper.GetBool("SYNC_REMOTE_WINS_WHEN_NEWER"),
		ProbeIntervalSeconds: viper.GetInt("PROBE_INTERVAL_SECONDS"),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("client config: %v", err))
	}
	return cfg
}

// MustLoadServer загружает конфигурацию сервера из окружения и .env
func MustLoadServer() *Server {
	loadDotenv()
	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", EnvLocal)
	viper.SetDefault("RUN_ADDRESS", ":8080")
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)

	cfg := &Server{
		Env:         viper.GetString("APP_ENV"),
		RunAddress:  viper.GetString("RUN_ADDRESS"),
		LogLevel:    viper.GetString("LOG_LEVEL"),
		DatabaseURI: viper.GetString("DATABASE_URI"),
	}

	if cfg.DatabaseURI == "" {
		panic("server config: DATABASE_URI must be set")
	}
	return cfg
}

func (c *Client) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address must not be empty")
	}
	if c.SyncIntervalMinutes <= 0 {
		return fmt.Errorf("sync_interval_minutes must be positive")
	}
	return nil
}

// IsProd проверяет, prod ли окружение
func (c *Client) IsProd() bool {
	return c.Env == EnvProd
}

func loadDotenv() {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	}
}
