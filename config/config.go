package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"washclub-checkout-api/database"
	"washclub-checkout-api/models"
	"washclub-checkout-api/services/email"
	"washclub-checkout-api/services/payment"
)

type Config struct {
	Database database.DatabaseConfig
	Stripe   StripeConfig
	SMTP     email.SMTPConfig
	Server   ServerConfig
	Redis    RedisConfig
	Session  SessionConfig
	Storage  StorageConfig
	Admin    AdminConfig
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	Prices         payment.PriceTable
}

type ServerConfig struct {
	Port       string
	LogLevel   string
	LogJSON    bool
	CORSOrigin string
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

type SessionConfig struct {
	Secret string
	Domain string
	MaxAge int
	Secure bool
}

// StorageConfig selects where checkout records live: "redis", "mysql" or "memory".
type StorageConfig struct {
	Backend string
	TTL     time.Duration
}

type AdminConfig struct {
	JWTSecret string
	Issuer    string
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("Invalid integer for %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// PriceEnvKey is the variable holding the Stripe price id for a plan and period,
// e.g. STRIPE_PRICE_WORKS_MONTHLY.
func PriceEnvKey(planID string, period models.Period) string {
	return fmt.Sprintf("STRIPE_PRICE_%s_%s", strings.ToUpper(planID), strings.ToUpper(string(period)))
}

func loadPrices() payment.PriceTable {
	prices := payment.PriceTable{}
	for _, plan := range models.Plans() {
		for _, period := range []models.Period{models.PeriodMonthly, models.PeriodYearly} {
			id := os.Getenv(PriceEnvKey(plan.ID, period))
			if id == "" {
				continue
			}
			if prices[plan.ID] == nil {
				prices[plan.ID] = map[models.Period]string{}
			}
			prices[plan.ID][period] = id
		}
	}
	return prices
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	workerConcurrency := getenvInt("WORKER_CONCURRENCY", 2)
	if workerConcurrency < 1 {
		workerConcurrency = 1
	} else if workerConcurrency > 8 {
		workerConcurrency = 8
	}

	cfg := &Config{
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Stripe: StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			Prices:         loadPrices(),
		},
		SMTP: email.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getenv("SMTP_FROM", "no-reply@washclub.example"),
		},
		Server: ServerConfig{
			Port:       getenv("SERVER_PORT", "8080"),
			LogLevel:   getenv("LOG_LEVEL", "info"),
			LogJSON:    getenv("LOG_FORMAT", "json") == "json",
			CORSOrigin: os.Getenv("CORS_ORIGIN"),
		},
		Redis: RedisConfig{
			URL:               getenv("REDIS_URL", "redis://localhost:6379/0"),
			WorkerConcurrency: workerConcurrency,
		},
		Session: SessionConfig{
			Secret: os.Getenv("SESSION_SECRET"),
			Domain: os.Getenv("SESSION_DOMAIN"),
			MaxAge: getenvInt("SESSION_MAX_AGE", 30*24*3600),
			Secure: getenv("SESSION_SECURE", "true") == "true",
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getenv("CHECKOUT_STORAGE", "redis")),
			TTL:     time.Duration(getenvInt("CHECKOUT_TTL_SECONDS", 0)) * time.Second,
		},
		Admin: AdminConfig{
			JWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
			Issuer:    getenv("ADMIN_JWT_ISSUER", "washclub-checkout-api"),
		},
	}

	log.WithFields(log.Fields{
		"port":    cfg.Server.Port,
		"storage": cfg.Storage.Backend,
		"workers": cfg.Redis.WorkerConcurrency,
		"prices":  len(cfg.Stripe.Prices),
	}).Info("Configuration loaded")

	return cfg
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if len(c.Session.Secret) < 32 {
		missing = append(missing, "SESSION_SECRET (32+ bytes)")
	}
	if c.Admin.JWTSecret == "" {
		missing = append(missing, "ADMIN_JWT_SECRET")
	}
	switch c.Storage.Backend {
	case "redis", "memory":
	case "mysql":
		if c.Database.Host == "" {
			missing = append(missing, "DB_HOST")
		}
	default:
		return fmt.Errorf("unknown CHECKOUT_STORAGE %q", c.Storage.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if strings.Contains(c.Server.CORSOrigin, "*") {
		return fmt.Errorf("CORS_ORIGIN must list front-end origins; the checkout cookie is not sent to %q", c.Server.CORSOrigin)
	}
	return nil
}
