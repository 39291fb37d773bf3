package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB      DBConfig
	JWT     JWTConfig
	Server  ServerConfig
	OTP     OTPConfig
	SMTP    SMTPConfig
	Relay   RelayConfig
	Shopify ShopifyConfig
	Redis   RedisConfig
	Twilio  TwilioConfig
	Google  GoogleConfig
	Admin   AdminConfig
}

type DBConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret         string
	SessionExpiry  time.Duration
	ApprovalExpiry time.Duration
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

// OTPConfig is the single source of truth for challenge policy. The original
// service computed the 10-minute / 5-attempt constants in several places.
type OTPConfig struct {
	CodeLifetime  time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// Timeout bounds connect/greeting/socket. Kept intentionally short so a
	// dead SMTP host fails over to the relay quickly.
	Timeout time.Duration
}

type RelayConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	Timeout time.Duration
}

type ShopifyConfig struct {
	ShopName    string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

type AdminConfig struct {
	User         string
	PasswordHash string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "concierge.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "concierge"),
			Password: getEnv("DB_PASSWORD", "concierge_secret"),
			Name:     getEnv("DB_NAME", "concierge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", "change-me-in-production"),
			SessionExpiry:  getEnvAsDuration("SESSION_EXPIRY", 30*time.Minute),
			ApprovalExpiry: getEnvAsDuration("APPROVAL_TOKEN_EXPIRY", 1*time.Hour),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3001"),
		},
		OTP: OTPConfig{
			CodeLifetime:  getEnvAsDuration("OTP_CODE_LIFETIME", 10*time.Minute),
			MaxAttempts:   getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			SweepInterval: getEnvAsDuration("OTP_SWEEP_INTERVAL", 30*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("FROM_EMAIL", "collection@example.com"),
			FromName: getEnv("FROM_NAME", "PSA代行サービス"),
			Timeout:  getEnvAsDuration("SMTP_TIMEOUT", 15*time.Second),
		},
		Relay: RelayConfig{
			Enabled: getEnvAsBool("USE_RELAY_FALLBACK", false),
			URL:     getEnv("RELAY_API_URL", ""),
			APIKey:  getEnv("RELAY_API_KEY", ""),
			Timeout: getEnvAsDuration("RELAY_TIMEOUT", 30*time.Second),
		},
		Shopify: ShopifyConfig{
			ShopName:    getEnv("SHOPIFY_SHOP_NAME", ""),
			AccessToken: getEnv("SHOPIFY_ADMIN_ACCESS_TOKEN", ""),
			APIVersion:  getEnv("SHOPIFY_API_VERSION", "2024-10"),
			Timeout:     getEnvAsDuration("SHOPIFY_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Twilio: TwilioConfig{
			AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			PhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			CallbackURL:  getEnv("GOOGLE_CALLBACK_URL", "http://localhost:8080/api/auth/google/callback"),
		},
		Admin: AdminConfig{
			User:         getEnv("ADMIN_USER", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
