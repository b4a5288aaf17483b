package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"property_system"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`

	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	MerchantID     string `envconfig:"GATEWAY_MERCHANT_ID" required:"true"`
	MerchantSecret string `envconfig:"GATEWAY_MERCHANT_SECRET" required:"true"`
	CheckoutURL    string `envconfig:"GATEWAY_CHECKOUT_URL" default:"https://sandbox.payhere.lk/pay/checkout"`
	Currency       string `envconfig:"GATEWAY_CURRENCY" default:"LKR"`
	// Comma separated; empty accepts notify calls from any address.
	AllowedGatewayCIDRs []string `envconfig:"GATEWAY_ALLOWED_CIDRS" default:""`

	CheckoutSessionTTL time.Duration `envconfig:"CHECKOUT_SESSION_TTL" default:"30m"`
	SweepInterval      time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`
	SweepBatch         int           `envconfig:"SWEEP_BATCH" default:"100"`
	LedgerTxRetries    int           `envconfig:"LEDGER_TX_RETRIES" default:"3"`
	DispatchTimeout    time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"10s"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
	RabbitURL        string `envconfig:"RABBIT_URL" default:""`
	RabbitExchange   string `envconfig:"RABBIT_EXCHANGE" default:"rental.payments"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	Environment  string `envconfig:"ENV" default:"dev"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.AllowedGatewayCIDRs = compact(cfg.AllowedGatewayCIDRs)

	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	if cfg.LedgerTxRetries <= 0 {
		cfg.LedgerTxRetries = 1
	}
	return &cfg, nil
}

// ReturnURL, NotifyURL and CancelURL are the callback endpoints handed to the gateway.
func (c *Config) ReturnURL() string { return c.endpoint("/payment/return") }
func (c *Config) NotifyURL() string { return c.endpoint("/payment/notify") }
func (c *Config) CancelURL() string { return c.endpoint("/payment/cancel") }

func (c *Config) endpoint(path string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + path
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
