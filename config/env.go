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
	Redis     RedisConfig
	DB        DBConfig
	Auth      AuthConfig
	Discounts DiscountsConfig
	GiftCards GiftCardsConfig
	POS       POSConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type DiscountsConfig struct {
	ServiceURL string
	Timeout    time.Duration
}

type GiftCardsConfig struct {
	ProviderURL string
	Timeout     time.Duration
}

type POSConfig struct {
	Port string
	// TaxRates are the configured jurisdiction rates in percent; the
	// combined rate is their plain sum, no compounding.
	TaxRates         []float64
	AutosaveDebounce time.Duration
	RestoreWindow    time.Duration
	// RateLimit is a limiter rate string such as "60-M".
	RateLimit string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, _ := time.ParseDuration(getEnv("AUTH_TOKEN_TTL", "12h"))
	discountTimeout, _ := time.ParseDuration(getEnv("DISCOUNT_SERVICE_TIMEOUT", "5s"))
	giftCardTimeout, _ := time.ParseDuration(getEnv("GIFTCARD_PROVIDER_TIMEOUT", "10s"))
	autosaveDebounce, _ := time.ParseDuration(getEnv("POS_AUTOSAVE_DEBOUNCE", "1s"))
	restoreWindow, _ := time.ParseDuration(getEnv("POS_RESTORE_WINDOW", "5m"))

	return Config{
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "bloompos"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
			TokenTTL:  tokenTTL,
		},
		Discounts: DiscountsConfig{
			ServiceURL: getEnv("DISCOUNT_SERVICE_URL", "http://localhost:9090"),
			Timeout:    discountTimeout,
		},
		GiftCards: GiftCardsConfig{
			ProviderURL: getEnv("GIFTCARD_PROVIDER_URL", "http://localhost:9091"),
			Timeout:     giftCardTimeout,
		},
		POS: POSConfig{
			Port:             getEnv("POS_PORT", ":8080"),
			TaxRates:         parseTaxRates(getEnv("POS_TAX_RATES", "0")),
			AutosaveDebounce: autosaveDebounce,
			RestoreWindow:    restoreWindow,
			RateLimit:        getEnv("POS_RATE_LIMIT", "60-M"),
		},
	}
}

func (d DBConfig) DSN() string {
	return "host=" + d.Host + " port=" + d.Port + " user=" + d.User +
		" password=" + d.Password + " dbname=" + d.Name + " sslmode=disable"
}

// parseTaxRates reads a comma separated list like "6.5,1.0" into percents.
func parseTaxRates(raw string) []float64 {
	parts := strings.Split(raw, ",")
	rates := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rate, err := strconv.ParseFloat(p, 64)
		if err != nil {
			log.Printf("Invalid tax rate %q ignored", p)
			continue
		}
		rates = append(rates, rate)
	}
	return rates
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
