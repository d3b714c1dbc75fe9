// Package config loads service configuration from YAML with environment
// overrides for secrets and deploy-specific values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPublicURL string `yaml:"minioPublicURL"`

	NotifyBackend string `yaml:"notifyBackend"` // "redis", "amqp" or "" for none
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	AMQPURL       string `yaml:"amqpURL"`

	AIBaseURL        string `yaml:"aiBaseURL"`
	AIAPIKey         string `yaml:"aiApiKey"`
	AIModel          string `yaml:"aiModel"`
	AITimeoutSeconds int    `yaml:"aiTimeoutSeconds"`

	PaymentBaseURL string `yaml:"paymentBaseURL"`
	PaymentAPIKey  string `yaml:"paymentApiKey"`

	ChainRPCURL    string `yaml:"chainRpcURL"`
	NFTContract    string `yaml:"nftContract"`
	IPFSGatewayURL string `yaml:"ipfsGatewayURL"`

	TokenSecret   string `yaml:"tokenSecret"`
	TokenIssuer   string `yaml:"tokenIssuer"`
	TokenAudience string `yaml:"tokenAudience"`
	InternalToken string `yaml:"internalToken"`

	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// AITimeout returns the analysis timeout as a duration.
func (c FileConfig) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("MINIO_PUBLIC_URL"); v != "" {
		cfg.MinioPublicURL = v
	}
	if v := os.Getenv("NOTIFY_BACKEND"); v != "" {
		cfg.NotifyBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		cfg.AIBaseURL = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AIAPIKey = v
	}
	if v := os.Getenv("AI_MODEL"); v != "" {
		cfg.AIModel = v
	}
	if v := os.Getenv("AI_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AITimeoutSeconds = n
		}
	}
	if v := os.Getenv("PAYMENT_BASE_URL"); v != "" {
		cfg.PaymentBaseURL = v
	}
	if v := os.Getenv("PAYMENT_API_KEY"); v != "" {
		cfg.PaymentAPIKey = v
	}
	if v := os.Getenv("CHAIN_RPC_URL"); v != "" {
		cfg.ChainRPCURL = v
	}
	if v := os.Getenv("NFT_CONTRACT"); v != "" {
		cfg.NFTContract = v
	}
	if v := os.Getenv("IDEAMINT_TOKEN_SECRET"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("IDEAMINT_INTERNAL_TOKEN"); v != "" {
		cfg.InternalToken = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml)")
	}
	if cfg.MinioAccessKey == "" {
		return errors.New("config: minioAccessKey is required (set in config.yaml)")
	}
	if cfg.MinioSecretKey == "" {
		return errors.New("config: minioSecretKey is required (set in config.yaml)")
	}
	if cfg.TokenSecret == "" {
		return errors.New("config: tokenSecret is required (set in config.yaml or IDEAMINT_TOKEN_SECRET)")
	}
	if cfg.InternalToken == "" {
		return errors.New("config: internalToken is required (set in config.yaml or IDEAMINT_INTERNAL_TOKEN)")
	}
	switch strings.TrimSpace(cfg.NotifyBackend) {
	case "", "none":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required when notifyBackend is redis")
		}
	case "amqp":
		if cfg.AMQPURL == "" {
			return errors.New("config: amqpURL is required when notifyBackend is amqp")
		}
	default:
		return fmt.Errorf("config: unknown notifyBackend %q", cfg.NotifyBackend)
	}
	if cfg.PaymentBaseURL == "" {
		return errors.New("config: paymentBaseURL is required (set in config.yaml)")
	}
	return nil
}
