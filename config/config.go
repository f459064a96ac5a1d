package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	MongoDatabase     string `mapstructure:"MONGO_DATABASE"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisDedupDB   int    `mapstructure:"REDIS_DEDUP_DB"`
	RedisContextDB int    `mapstructure:"REDIS_CONTEXT_DB"`
	RedisSweepDB   int    `mapstructure:"REDIS_SWEEP_DB"`

	// Negotiation tuning.
	MaxRounds        int `mapstructure:"MAX_ROUNDS"`
	SlotGridMinutes  int `mapstructure:"SLOT_GRID_MINUTES"`
	MaxCandidates    int `mapstructure:"MAX_CANDIDATES"`
	StaleSessionDays int `mapstructure:"STALE_SESSION_DAYS"`

	// Collaborator credentials.
	GeminiAPIKey       string `mapstructure:"GEMINI_API_KEY"`
	SlackBotToken      string `mapstructure:"SLACK_BOT_TOKEN"`
	SlackSigningSecret string `mapstructure:"SLACK_SIGNING_SECRET"`
	GoogleCredentials  string `mapstructure:"GOOGLE_CREDENTIALS_FILE"`
	CalendarTimeZone   string `mapstructure:"CALENDAR_TIMEZONE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_DEDUP_DB", 1)
	viper.SetDefault("REDIS_CONTEXT_DB", 2)
	viper.SetDefault("REDIS_SWEEP_DB", 3)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "meetsync")
	viper.SetDefault("MAX_ROUNDS", 3)
	viper.SetDefault("SLOT_GRID_MINUTES", 15)
	viper.SetDefault("MAX_CANDIDATES", 3)
	viper.SetDefault("STALE_SESSION_DAYS", 14)
	viper.SetDefault("CALENDAR_TIMEZONE", "Asia/Manila")
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("SLACK_BOT_TOKEN", "")
	viper.SetDefault("SLACK_SIGNING_SECRET", "")
	viper.SetDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
