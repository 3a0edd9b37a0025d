/**
 * @description
 * This package handles configuration management for the cycle engine. It uses
 * the Viper library to read configuration from environment variables (plus an
 * optional .env file for local development), providing a centralized and
 * straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the cycle engine.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string  `mapstructure:"SERVER_PORT"`
	DatabaseURL             string  `mapstructure:"DATABASE_URL"`
	RabbitMQURL             string  `mapstructure:"RABBITMQ_URL"`
	EventExchange           string  `mapstructure:"EVENT_EXCHANGE"`
	PaymentEventQueue       string  `mapstructure:"PAYMENT_EVENT_QUEUE"`
	InternalAPIKey          string  `mapstructure:"INTERNAL_API_KEY"`
	TickSchedule            string  `mapstructure:"TICK_SCHEDULE"`
	TickTimeoutSeconds      int     `mapstructure:"TICK_TIMEOUT_SECONDS"`
	GroupSweepConcurrency   int     `mapstructure:"GROUP_SWEEP_CONCURRENCY"`
	TxRetryAttempts         int     `mapstructure:"TX_RETRY_ATTEMPTS"`
	TxRetryBackoffMillis    int     `mapstructure:"TX_RETRY_BACKOFF_MILLIS"`
	PenaltyDailyRatePercent float64 `mapstructure:"PENALTY_DAILY_RATE_PERCENT"`
	PenaltyCapPercent       float64 `mapstructure:"PENALTY_CAP_PERCENT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8086")
	viper.SetDefault("EVENT_EXCHANGE", "smartajo.events")
	viper.SetDefault("PAYMENT_EVENT_QUEUE", "cycle_engine.payment_updates")
	viper.SetDefault("TICK_SCHEDULE", "0 * * * *") // hourly, on the hour
	viper.SetDefault("TICK_TIMEOUT_SECONDS", 300)
	viper.SetDefault("GROUP_SWEEP_CONCURRENCY", 8)
	viper.SetDefault("TX_RETRY_ATTEMPTS", 3)
	viper.SetDefault("TX_RETRY_BACKOFF_MILLIS", 150)
	viper.SetDefault("PENALTY_DAILY_RATE_PERCENT", 5.0)
	viper.SetDefault("PENALTY_CAP_PERCENT", 50.0)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("PAYMENT_EVENT_QUEUE")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "CYCLE_ENGINE_INTERNAL_API_KEY")
	_ = viper.BindEnv("TICK_SCHEDULE")
	_ = viper.BindEnv("TICK_TIMEOUT_SECONDS")
	_ = viper.BindEnv("GROUP_SWEEP_CONCURRENCY")
	_ = viper.BindEnv("TX_RETRY_ATTEMPTS")
	_ = viper.BindEnv("TX_RETRY_BACKOFF_MILLIS")
	_ = viper.BindEnv("PENALTY_DAILY_RATE_PERCENT")
	_ = viper.BindEnv("PENALTY_CAP_PERCENT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("CYCLE_ENGINE_INTERNAL_API_KEY"))
	}
	config.EventExchange = strings.TrimSpace(config.EventExchange)
	if config.EventExchange == "" {
		config.EventExchange = "smartajo.events"
	}
	config.PaymentEventQueue = strings.TrimSpace(config.PaymentEventQueue)
	if config.PaymentEventQueue == "" {
		config.PaymentEventQueue = "cycle_engine.payment_updates"
	}

	if config.TickTimeoutSeconds <= 0 {
		config.TickTimeoutSeconds = 300
	}
	if config.GroupSweepConcurrency <= 0 {
		config.GroupSweepConcurrency = 8
	}
	if config.TxRetryAttempts <= 0 {
		config.TxRetryAttempts = 3
	}
	if config.TxRetryBackoffMillis <= 0 {
		config.TxRetryBackoffMillis = 150
	}

	if config.PenaltyDailyRatePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative penalty daily rate configured; coercing to zero\" rate_percent=%f", config.PenaltyDailyRatePercent)
		config.PenaltyDailyRatePercent = 0
	}
	if config.PenaltyCapPercent < 0 {
		log.Printf("level=warn component=config msg=\"negative penalty cap configured; coercing to zero\" cap_percent=%f", config.PenaltyCapPercent)
		config.PenaltyCapPercent = 0
	}
	if config.PenaltyCapPercent > 100 {
		log.Printf("level=warn component=config msg=\"penalty cap too high; capping at 100\" cap_percent=%f", config.PenaltyCapPercent)
		config.PenaltyCapPercent = 100
	}

	return
}
