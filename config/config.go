// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configPath = pflag.String("config", "", "Path to the config.toml file")

	validLogLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers     = []string{"sqlite", "postgres"}
	validJWTAlgorithms = []string{"HS256", "HS384", "HS512"}
	validMailSecurity  = []string{"starttls", "ssl", "none"}
	validCacheTypes    = []string{"memory", "redis"}
)

// ErrMissingJWTSecret is returned when no signing secret was configured.
// The caller is expected to print a generated one and stop.
var ErrMissingJWTSecret = errors.New("jwt.secret is not set")

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Host      HostConfig      `mapstructure:"host"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Codes     CodesConfig     `mapstructure:"codes"`
	Mail      MailConfig      `mapstructure:"mail"`
	Security  SecurityConfig  `mapstructure:"security"`
	Argon     ArgonConfig     `mapstructure:"argon"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	AWS       AWSConfig       `mapstructure:"aws"`
	TTS       TTSConfig       `mapstructure:"tts"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	Env      string `mapstructure:"env"`
	// Prints raw verification codes to the log. Never enable in production
	DebugEmailCodes bool `mapstructure:"debug_email_codes"`
}

type HostConfig struct {
	Port   int      `mapstructure:"port"`
	Domain string   `mapstructure:"domain"`
	CORS   []string `mapstructure:"cors"`
	SSL    struct {
		Enabled            bool   `mapstructure:"enabled"`
		CertificatePath    string `mapstructure:"certificate_path"`
		CertificateKeyPath string `mapstructure:"certificate_key_path"`
	} `mapstructure:"ssl"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	Algorithm     string `mapstructure:"algorithm"`
	AccessMinutes int    `mapstructure:"access_minutes"`
	RefreshDays   int    `mapstructure:"refresh_days"`
}

func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessMinutes) * time.Minute
}

func (j JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshDays) * 24 * time.Hour
}

type CodesConfig struct {
	TTLMinutes      int    `mapstructure:"ttl_minutes"`
	MaxAttempts     int    `mapstructure:"max_attempts"`
	RetentionDays   int    `mapstructure:"retention_days"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

func (c CodesConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (c CodesConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type MailConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from"`
	Security   string `mapstructure:"security"`
	QueueSize  int    `mapstructure:"queue_size"`
	Workers    int    `mapstructure:"workers"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// Enabled reports whether an SMTP relay was configured. Without one mail
// is written to the log instead.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

type SecurityConfig struct {
	RateLimit int `mapstructure:"rate_limit"`
	Turnstile struct {
		Enabled     bool   `mapstructure:"enabled"`
		SecretToken string `mapstructure:"secret_token"`
	} `mapstructure:"turnstile"`
}

type ArgonConfig struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	ChatModel  string `mapstructure:"chat_model"`
	EmbedModel string `mapstructure:"embed_model"`
}

type RetrievalConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Dimensions  int     `mapstructure:"dimensions"`
	TopK        int     `mapstructure:"top_k"`
	MaxDistance float64 `mapstructure:"max_distance"`
	// Seconds a query embedding stays cached
	EmbedCacheTTL int `mapstructure:"embed_cache_ttl"`
}

type AWSConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	// Set for S3 compatible providers such as Cloudflare R2
	Endpoint string `mapstructure:"endpoint"`
}

type TTSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Voice   string `mapstructure:"voice"`
	Engine  string `mapstructure:"engine"`
	// Empty disables caching synthesized audio
	Bucket string `mapstructure:"bucket"`
}

type CacheConfig struct {
	Type          string `mapstructure:"type"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

var envKeys = []string{
	"app.log_level", "app.env", "app.debug_email_codes",
	"host.port", "host.domain", "host.cors",
	"host.ssl.enabled", "host.ssl.certificate_path", "host.ssl.certificate_key_path",
	"database.driver", "database.dsn",
	"jwt.secret", "jwt.algorithm", "jwt.access_minutes", "jwt.refresh_days",
	"codes.ttl_minutes", "codes.max_attempts", "codes.retention_days", "codes.cleanup_schedule",
	"mail.host", "mail.port", "mail.username", "mail.password", "mail.from", "mail.security",
	"mail.queue_size", "mail.workers", "mail.max_retries",
	"security.rate_limit", "security.turnstile.enabled", "security.turnstile.secret_token",
	"openai.api_key", "openai.base_url", "openai.chat_model", "openai.embed_model",
	"retrieval.dsn", "retrieval.dimensions", "retrieval.top_k", "retrieval.max_distance", "retrieval.embed_cache_ttl",
	"aws.access_key_id", "aws.secret_access_key", "aws.region", "aws.endpoint",
	"tts.enabled", "tts.voice", "tts.engine", "tts.bucket",
	"cache.type", "cache.redis_addr", "cache.redis_password", "cache.redis_db",
}

// GenSecret returns a random hex encoded secret suitable for jwt.secret
func GenSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses command line flags and loads the configuration. Function
// will return an error if something is critically wrong and the
// application can't run because of that.
func Setup() (*Config, error) {
	pflag.Parse()

	v := viper.New()
	v.BindPFlags(pflag.CommandLine)

	return Load(v, *configPath)
}

// Load reads the config file at path (or ./config.toml when empty) into a
// Config. Environment variables named after the key in upper snake case
// override file values.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	for _, k := range envKeys {
		v.BindEnv(k, strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, errors.New("config.toml file is missing")
		}

		return nil, fmt.Errorf("failed to read config file, %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug_email_codes", false)

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")
	v.SetDefault("host.cors", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.access_minutes", 60)
	v.SetDefault("jwt.refresh_days", 7)

	v.SetDefault("codes.ttl_minutes", 15)
	v.SetDefault("codes.max_attempts", 6)
	v.SetDefault("codes.retention_days", 30)
	v.SetDefault("codes.cleanup_schedule", "@daily")

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "no-reply@smart-librarian")
	v.SetDefault("mail.security", "starttls")
	v.SetDefault("mail.queue_size", 256)
	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.max_retries", 3)

	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.turnstile.enabled", false)

	v.SetDefault("argon.memory", 64*1024)
	v.SetDefault("argon.iterations", 3)
	v.SetDefault("argon.parallelism", 2)

	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.embed_model", "text-embedding-3-small")

	v.SetDefault("retrieval.dimensions", 1536)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.max_distance", 0.45)
	v.SetDefault("retrieval.embed_cache_ttl", 600)

	v.SetDefault("aws.region", "us-east-1")

	v.SetDefault("tts.enabled", false)
	v.SetDefault("tts.voice", "Joanna")
	v.SetDefault("tts.engine", "standard")

	v.SetDefault("cache.type", "memory")
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if c.Host.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if c.Host.SSL.Enabled {
		if c.Host.SSL.CertificatePath == "" {
			return errors.New("no ssl certificate path provided")
		}

		if c.Host.SSL.CertificateKeyPath == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if !slices.Contains(validDBDrivers, c.Database.Driver) {
		return errors.New("invalid database driver provided")
	}

	if c.Database.DSN == "" {
		return errors.New("database.dsn can't be empty")
	}

	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}

	if !slices.Contains(validJWTAlgorithms, c.JWT.Algorithm) {
		return errors.New("invalid jwt algorithm provided")
	}

	if c.JWT.AccessMinutes <= 0 || c.JWT.RefreshDays <= 0 {
		return errors.New("jwt token lifetimes must be bigger than 0")
	}

	if c.Codes.TTLMinutes <= 0 {
		return errors.New("codes.ttl_minutes must be bigger than 0")
	}

	if c.Codes.MaxAttempts <= 0 {
		return errors.New("codes.max_attempts must be bigger than 0")
	}

	if c.Codes.RetentionDays <= 0 {
		return errors.New("codes.retention_days must be bigger than 0")
	}

	if !slices.Contains(validMailSecurity, c.Mail.Security) {
		return errors.New("invalid mail security mode provided")
	}

	if c.Mail.QueueSize <= 0 || c.Mail.Workers <= 0 {
		return errors.New("mail queue size and workers must be bigger than 0")
	}

	if c.Mail.MaxRetries < 0 {
		return errors.New("mail.max_retries can't be negative")
	}

	if c.Security.RateLimit <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if c.Security.Turnstile.Enabled && c.Security.Turnstile.SecretToken == "" {
		return errors.New("turnstile secret token is missing")
	}

	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval.top_k must be bigger than 0")
	}

	if c.Retrieval.MaxDistance <= 0 {
		return errors.New("retrieval.max_distance must be bigger than 0")
	}

	if !slices.Contains(validCacheTypes, c.Cache.Type) {
		return errors.New("invalid cache type provided")
	}

	if c.Cache.Type == "redis" && c.Cache.RedisAddr == "" {
		return errors.New("cache.redis_addr can't be empty when using redis")
	}

	return nil
}
