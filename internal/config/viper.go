// Package config loads the application configuration from .env files,
// environment variables and an optional config file, plus the per-source
// scraping settings from sources.yaml.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool

	// Config file
	ConfigFile string

	// HTTP server
	ServerAddr     string
	AllowedOrigins []string

	// Storage. Empty DatabaseURL selects the in-memory store.
	DatabaseURL string

	// Run tuning
	Workers    int
	MaxPages   int
	RunTimeout time.Duration

	// Geocoding
	GeocodeBatch int
	BANBaseURL   string

	// Per-source settings file
	SourcesFile string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.adjudex.yaml or --config)
// 5. Defaults
func Load() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".adjudex")
		}
	}

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),

		ConfigFile: viper.ConfigFileUsed(),

		ServerAddr:     viper.GetString("server_addr"),
		AllowedOrigins: viper.GetStringSlice("allowed_origins"),

		DatabaseURL: viper.GetString("database_url"),

		Workers:    viper.GetInt("workers"),
		MaxPages:   viper.GetInt("max_pages"),
		RunTimeout: viper.GetDuration("run_timeout"),

		GeocodeBatch: viper.GetInt("geocode_batch"),
		BANBaseURL:   viper.GetString("ban_base_url"),

		SourcesFile: viper.GetString("sources_file"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if config.ServerAddr == "" {
		config.ServerAddr = ":8080"
	}
	if config.SourcesFile == "" {
		config.SourcesFile = "sources.yaml"
	}

	return config, nil
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	envFiles := []string{
		".env",
		".env.local",
	}

	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
