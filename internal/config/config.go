package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBDSN         string
	LogFile       string
	ChannelID     string
	DefaultLocale string

	// AdminKeyHash is the bcrypt hash the X-Admin-Key header is checked against.
	AdminKeyHash string

	QueuePollInterval time.Duration

	// RestoreArrangingPayment controls whether an order that was moved back to
	// AddingItems for line removal is transitioned to ArrangingPayment again
	// afterwards, even when the removal emptied the order.
	RestoreArrangingPayment bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolenv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenvms(key string, defMs int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(defMs) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(defMs) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Port:                    getenv("PORT", "8080"),
		DBDSN:                   getenv("DB_DSN", "variantsync.db"),
		LogFile:                 getenv("LOG_FILE", "./variantsync.log"),
		ChannelID:               getenv("CHANNEL_ID", "default-channel"),
		DefaultLocale:           getenv("DEFAULT_LOCALE", "en"),
		AdminKeyHash:            getenv("ADMIN_KEY_HASH", ""),
		QueuePollInterval:       durenvms("QUEUE_POLL_INTERVAL_MS", 250),
		RestoreArrangingPayment: boolenv("RESTORE_ARRANGING_PAYMENT", true),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s CHANNEL_ID=%s QUEUE_POLL_INTERVAL=%s RESTORE_ARRANGING_PAYMENT=%t",
		cfg.Port, cfg.DBDSN, cfg.ChannelID, cfg.QueuePollInterval, cfg.RestoreArrangingPayment)
	return cfg
}
