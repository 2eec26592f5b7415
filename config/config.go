package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Plans      PlansConfig      `mapstructure:"plans"`
	Referral   ReferralConfig   `mapstructure:"referral"`
	Letters    LettersConfig    `mapstructure:"letters"`
	AI         AIConfig         `mapstructure:"ai"`
	Email      EmailConfig      `mapstructure:"email"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql | sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console | json
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig selects how bearer tokens issued by the identity provider are verified.
type AuthConfig struct {
	Provider    string `mapstructure:"provider"` // jwt | userinfo
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer"`
	UserInfoURL string `mapstructure:"userinfo_url"`
}

type PaymentConfig struct {
	Provider         string        `mapstructure:"provider"` // simulated | stripe
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
	StripeSecretKey  string        `mapstructure:"stripe_secret_key"`
	StripePriceIDs   PriceIDs      `mapstructure:"stripe_price_ids"`
	SuccessURL       string        `mapstructure:"success_url"`
	CancelURL        string        `mapstructure:"cancel_url"`
}

type PriceIDs struct {
	OneLetter   string `mapstructure:"one_letter"`
	FourMonthly string `mapstructure:"four_monthly"`
	EightYearly string `mapstructure:"eight_yearly"`
}

// PlansConfig holds base prices in cents.
type PlansConfig struct {
	OneLetterCents   int64 `mapstructure:"one_letter_cents"`
	FourMonthlyCents int64 `mapstructure:"four_monthly_cents"`
	EightYearlyCents int64 `mapstructure:"eight_yearly_cents"`
}

type ReferralConfig struct {
	CommissionRate            float64 `mapstructure:"commission_rate"`
	DefaultDiscountPercentage int     `mapstructure:"default_discount_percentage"`
	CodePrefix                string  `mapstructure:"code_prefix"`
}

type LettersConfig struct {
	RequireSubscription bool `mapstructure:"require_subscription"`
}

type AIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load reads config.yaml (optional) from ./configs or the working directory,
// then applies LEXPOST_* environment overrides. An explicit path wins.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("LEXPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with defaults only; used by tests and tooling.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8099")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:lexpost.db?_foreign_keys=on")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("auth.provider", "jwt")
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.userinfo_url", "")

	v.SetDefault("payment.provider", "simulated")
	v.SetDefault("payment.webhook_secret", "")
	v.SetDefault("payment.webhook_tolerance", 5*time.Minute)
	v.SetDefault("payment.success_url", "http://localhost:5173/checkout/success")
	v.SetDefault("payment.cancel_url", "http://localhost:5173/checkout/cancel")

	v.SetDefault("plans.one_letter_cents", 4999)
	v.SetDefault("plans.four_monthly_cents", 19999)
	v.SetDefault("plans.eight_yearly_cents", 59999)

	v.SetDefault("referral.commission_rate", 0.10)
	v.SetDefault("referral.default_discount_percentage", 20)
	v.SetDefault("referral.code_prefix", "EMP-")

	v.SetDefault("letters.require_subscription", false)

	v.SetDefault("ai.base_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from_address", "noreply@lexpost.local")
	v.SetDefault("email.from_name", "LexPost")

	v.SetDefault("redis.channel", "lexpost:events")

	v.SetDefault("cloudinary.folder", "lexpost/attachments")

	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", 60*time.Second)
}
