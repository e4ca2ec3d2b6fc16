package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	RedisAddr   string
	KafkaAddr   string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	JWTSecret []byte

	GatewayURL     string
	GatewayTimeout time.Duration
	WebhookSecret  []byte

	TaxRate          float64
	BaseDeliveryFee  float64
	PerKmDeliveryFee float64

	// PromoCodes holds the accepted promo codes and their discount
	// amounts, e.g. "WELCOME50:5.00,FREESHIP:2.50".
	PromoCodes map[string]float64
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not found, using system environment: %v", err)
	}

	cfg := &Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		LogLevel:    envDefault("LOG_LEVEL", "info"),
		LogFormat:   envDefault("LOG_FORMAT", "json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		KafkaAddr:   os.Getenv("KAFKA_ADDRESS"),

		DBMaxOpenConns:    envIntDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envIntDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envDurationDefault("DB_CONN_MAX_LIFETIME", time.Hour),
		DBConnMaxIdleTime: envDurationDefault("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		GatewayURL:     os.Getenv("PAYMENT_GATEWAY_URL"),
		GatewayTimeout: envDurationDefault("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		WebhookSecret:  []byte(os.Getenv("PAYMENT_WEBHOOK_SECRET")),

		TaxRate:          envFloatDefault("TAX_RATE", 0.08),
		BaseDeliveryFee:  envFloatDefault("DELIVERY_BASE_FEE", 2.50),
		PerKmDeliveryFee: envFloatDefault("DELIVERY_PER_KM_FEE", 1.20),

		PromoCodes: parsePromoCodes(os.Getenv("PROMO_CODES")),
	}

	return cfg, nil
}

func parsePromoCodes(raw string) map[string]float64 {
	codes := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		code, amount, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(amount, 64)
		if err != nil || f <= 0 {
			log.Printf("notice: skipping malformed promo code entry %q", pair)
			continue
		}
		codes[code] = f
	}
	return codes
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
