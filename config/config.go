package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost string
	HTTPPort string

	MySQLDSN     string
	MySQLMaxOpen int
	MySQLMaxIdle int
	MySQLMaxLife time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EmailProvider  string
	AWSRegion      string
	SESSourceEmail string

	QueueBatchSize    int
	QueuePollInterval time.Duration
	QueueSendTimeout  time.Duration
	LockBackend       string

	CleanupDays int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPHost: getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		MySQLDSN:     getEnv("MYSQL_DSN", "root:root@tcp(127.0.0.1:3306)/email_queue?parseTime=true"),
		MySQLMaxOpen: getEnvInt("MYSQL_MAX_OPEN_CONNS", 10),
		MySQLMaxIdle: getEnvInt("MYSQL_MAX_IDLE_CONNS", 5),
		MySQLMaxLife: getEnvDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		EmailProvider:  getEnv("EMAIL_PROVIDER", "ses"),
		AWSRegion:      getEnv("AWS_REGION", "eu-central-1"),
		SESSourceEmail: getEnv("SES_SOURCE_EMAIL", ""),

		QueueBatchSize:    getEnvInt("QUEUE_BATCH_SIZE", 10),
		QueuePollInterval: getEnvDuration("QUEUE_POLL_INTERVAL", 30*time.Second),
		QueueSendTimeout:  getEnvDuration("QUEUE_SEND_TIMEOUT", 30*time.Second),
		LockBackend:       getEnv("QUEUE_LOCK_BACKEND", "none"),

		CleanupDays: getEnvInt("CLEANUP_DAYS", 30),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
