package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	awspkg "github.com/scotthooker/commerce-stripe/aws"

	"github.com/joho/godotenv"
)

// Gateway modes.
const (
	ModeTest = "test"
	ModeLive = "live"
)

// GatewayConfig is the immutable provider configuration for one mode.
type GatewayConfig struct {
	Mode           string
	SecretKey      string
	PublishableKey string
}

// Config holds all configuration for the payment gateway service.
type Config struct {
	Env              string
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeMode               string
	StripeSecretKey          string // live
	StripePublishableKey     string // live
	StripeSecretKeyTest      string
	StripePublishableKeyTest string

	RedisURL           string
	KafkaBrokers       []string
	PaymentEventsTopic string
	PaymentSNSTopicARN string

	AWSRegion          string
	AWSEndpoint        string
	UseSecrets         bool
	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsNamespace   string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

// LoadConfig reads configuration from .env (when present) and the environment,
// then from Secrets Manager when AWS_USE_SECRETS=true.
func LoadConfig(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8087"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		StripeMode:               strings.ToLower(getEnv("STRIPE_MODE", ModeTest)),
		StripeSecretKey:          os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey:     os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeSecretKeyTest:      os.Getenv("STRIPE_SECRET_KEY_TEST"),
		StripePublishableKeyTest: os.Getenv("STRIPE_PUBLISHABLE_KEY_TEST"),

		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payment-events"),
		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),

		AWSRegion:          getEnv("AWS_REGION", "eu-west-2"),
		AWSEndpoint:        os.Getenv("AWS_ENDPOINT"),
		UseSecrets:         os.Getenv("AWS_USE_SECRETS") == "true",
		CloudWatchEnabled:  os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchLogGroup: os.Getenv("CLOUDWATCH_LOG_GROUP"),
		MetricsNamespace:   getEnv("CLOUDWATCH_NAMESPACE", "PaymentGateway"),

		RateLimitPerSecond: 5,
		RateLimitBurst:     10,
	}

	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplySecrets overrides database credentials and Stripe keys from the
// secret store. Missing secrets leave the environment values in place.
func (c *Config) ApplySecrets(ctx context.Context, sm awspkg.SecretGetter) error {
	if dbjson, err := sm.GetSecret(ctx, "payments/DB_CREDENTIALS"); err == nil && dbjson != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(dbjson), &m); err != nil {
			return fmt.Errorf("decode payments/DB_CREDENTIALS: %w", err)
		}
		setIf(&c.PostgresUser, m["POSTGRES_USER"])
		setIf(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		setIf(&c.PostgresDB, m["POSTGRES_DB"])
		setIf(&c.PostgresHost, m["POSTGRES_HOST"])
		setIf(&c.PostgresPort, m["POSTGRES_PORT"])
	}

	secrets := map[string]*string{
		"payments/STRIPE_SECRET_KEY":      &c.StripeSecretKey,
		"payments/STRIPE_SECRET_KEY_TEST": &c.StripeSecretKeyTest,
	}
	for name, dst := range secrets {
		if v, err := sm.GetSecret(ctx, name); err == nil {
			setIf(dst, v)
		}
	}
	return c.Validate()
}

// Validate checks that the database and the selected mode's keys are set.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.StripeMode != ModeTest && c.StripeMode != ModeLive {
		return fmt.Errorf("STRIPE_MODE must be %q or %q, got %q", ModeTest, ModeLive, c.StripeMode)
	}
	gw := c.Gateway()
	if gw.SecretKey == "" || gw.PublishableKey == "" {
		return fmt.Errorf("stripe keys for %s mode are not configured", gw.Mode)
	}
	return nil
}

// Gateway returns the key pair for the configured mode.
func (c *Config) Gateway() GatewayConfig {
	if c.StripeMode == ModeLive {
		return GatewayConfig{Mode: ModeLive, SecretKey: c.StripeSecretKey, PublishableKey: c.StripePublishableKey}
	}
	return GatewayConfig{Mode: ModeTest, SecretKey: c.StripeSecretKeyTest, PublishableKey: c.StripePublishableKeyTest}
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
