package config

import (
	"fmt"
	"strings"
	"time"

	"kyc_link_gateway/internal/apperrors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Partner  PartnerConfig  `mapstructure:"partner"`
	IDConfig IDConfig       `mapstructure:"id"`
	Callback CallbackConfig `mapstructure:"callback"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Issuance IssuanceConfig `mapstructure:"issuance"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProviderConfig содержит учетные данные партнера у провайдера верификации.
type ProviderConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	PartnerID string        `mapstructure:"partner_id"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type PartnerConfig struct {
	LinkName         string `mapstructure:"link_name"`
	MultiUseLinkName string `mapstructure:"multi_use_link_name"`
	CompanyName      string `mapstructure:"company_name"`
	CallbackURL      string `mapstructure:"callback_url"`
	PrivacyPolicyURL string `mapstructure:"privacy_policy_url"`
}

type IDConfig struct {
	Country            string `mapstructure:"country"`
	IDType             string `mapstructure:"type"`
	VerificationMethod string `mapstructure:"verification_method"`
}

// CallbackConfig: при RequireIssuance=false колбэк без записи о выдаче решается по статусу.
type CallbackConfig struct {
	Path               string        `mapstructure:"path"`
	DefaultRedirectURL string        `mapstructure:"default_redirect_url"`
	ExpiryThreshold    time.Duration `mapstructure:"expiry_threshold"`
	RequireIssuance    bool          `mapstructure:"require_issuance"`
}

type WebhookConfig struct {
	VerifySignature bool `mapstructure:"verify_signature"`
}

// IssuanceConfig выбирает хранилище времени выдачи ссылок: memory, redis или postgres.
// Retention должен быть не меньше порога истечения, иначе просроченные ссылки нельзя отличить от неизвестных.
type IssuanceConfig struct {
	Store     string        `mapstructure:"store"`
	Retention time.Duration `mapstructure:"retention"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Переменные окружения, имена которых не выводятся из ключей конфигурации.
var envAliases = map[string]string{
	"provider.api_key":     "SMILE_API_KEY",
	"provider.partner_id":  "SMILE_PARTNER_ID",
	"provider.base_url":    "SMILE_BASE_URL",
	"partner.callback_url": "CALLBACK_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)

	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.partner_id", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", 20*time.Second)

	v.SetDefault("partner.link_name", "User Registration Link")
	v.SetDefault("partner.multi_use_link_name", "General Onboarding Link")
	v.SetDefault("partner.company_name", "MyCompany Ltd")
	v.SetDefault("partner.callback_url", "")
	v.SetDefault("partner.privacy_policy_url", "https://mycompany.com")

	v.SetDefault("id.country", "KE")
	v.SetDefault("id.type", "ALIEN_CARD")
	v.SetDefault("id.verification_method", "biometric_kyc")

	v.SetDefault("callback.path", "/app/onboarding/identity-verification2")
	v.SetDefault("callback.default_redirect_url", "http://localhost:3000/app/onboarding/identity-verification2")
	v.SetDefault("callback.expiry_threshold", 5*time.Minute)
	v.SetDefault("callback.require_issuance", true)

	v.SetDefault("webhook.verify_signature", true)

	v.SetDefault("issuance.store", "memory")
	v.SetDefault("issuance.retention", time.Hour)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "kyc")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Load читает конфигурацию из окружения (и .env, если он есть) и проверяет обязательные поля.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет наличие учетных данных провайдера и поддерживаемое хранилище.
func (c *Config) Validate() error {
	required := []struct {
		value string
		field string
	}{
		{c.Provider.APIKey, "SMILE_API_KEY"},
		{c.Provider.PartnerID, "SMILE_PARTNER_ID"},
		{c.Provider.BaseURL, "SMILE_BASE_URL"},
		{c.Partner.CallbackURL, "CALLBACK_URL"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &apperrors.ConfigurationError{Field: r.field}
		}
	}

	switch c.Issuance.Store {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported issuance store %q", c.Issuance.Store)
	}

	if c.Callback.ExpiryThreshold <= 0 {
		return fmt.Errorf("callback expiry threshold must be positive, got %s", c.Callback.ExpiryThreshold)
	}

	if c.Issuance.Retention < c.Callback.ExpiryThreshold {
		return fmt.Errorf("issuance retention %s must not be shorter than expiry threshold %s",
			c.Issuance.Retention, c.Callback.ExpiryThreshold)
	}

	return nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
