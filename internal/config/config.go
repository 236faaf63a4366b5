package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"paygate/pkg/gateway"
	"paygate/pkg/signer"
)

type Config struct {
	Server  ServerConfig
	Gateway GatewayConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type GatewayConfig struct {
	MerchantID           string
	APIBaseURL           string
	PrivateKeyPath       string
	PrivateKeyPassword   string
	GatewayPublicKeyPath string
	Hash                 signer.HashAlgorithm
	ReturnURL            string
	ReturnMethod         string
	HTTPTimeout          time.Duration
	RetryBackoff         []time.Duration
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("GATEWAY_API_BASE_URL", "https://iapi.iplatebnibrana.csob.cz/api/v1.9")
	viper.SetDefault("GATEWAY_HASH", "sha256")
	viper.SetDefault("GATEWAY_RETURN_METHOD", "POST")
	viper.SetDefault("GATEWAY_HTTP_TIMEOUT", "10s")
	viper.SetDefault("GATEWAY_RETRY_BACKOFF", "1s,2s,4s")

	readTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_READ_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_WRITE_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	httpTimeout, err := parseDurationWithDefault(viper.GetString("GATEWAY_HTTP_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_HTTP_TIMEOUT: %w", err)
	}
	hash, err := signer.ParseHashAlgorithm(viper.GetString("GATEWAY_HASH"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_HASH: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetInt("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Gateway: GatewayConfig{
			MerchantID:           viper.GetString("GATEWAY_MERCHANT_ID"),
			APIBaseURL:           viper.GetString("GATEWAY_API_BASE_URL"),
			PrivateKeyPath:       viper.GetString("GATEWAY_PRIVATE_KEY_PATH"),
			PrivateKeyPassword:   viper.GetString("GATEWAY_PRIVATE_KEY_PASSWORD"),
			GatewayPublicKeyPath: viper.GetString("GATEWAY_PUBLIC_KEY_PATH"),
			Hash:                 hash,
			ReturnURL:            viper.GetString("GATEWAY_RETURN_URL"),
			ReturnMethod:         viper.GetString("GATEWAY_RETURN_METHOD"),
			HTTPTimeout:          httpTimeout,
			RetryBackoff:         parseBackoffDurations(viper.GetString("GATEWAY_RETRY_BACKOFF")),
		},
		Logging: LoggingConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ToGatewayConfig maps the environment sections onto the client config.
func (c *Config) ToGatewayConfig() gateway.Config {
	return gateway.Config{
		MerchantID:           c.Gateway.MerchantID,
		APIBaseURL:           c.Gateway.APIBaseURL,
		PrivateKeyPath:       c.Gateway.PrivateKeyPath,
		PrivateKeyPassword:   c.Gateway.PrivateKeyPassword,
		GatewayPublicKeyPath: c.Gateway.GatewayPublicKeyPath,
		Hash:                 c.Gateway.Hash,
		ReturnURL:            c.Gateway.ReturnURL,
		ReturnMethod:         c.Gateway.ReturnMethod,
		HTTPTimeout:          c.Gateway.HTTPTimeout,
		RetryBackoff:         c.Gateway.RetryBackoff,
	}
}

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.validateGateway(); err != nil {
		return fmt.Errorf("gateway config: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateGateway() error {
	if c.Gateway.MerchantID == "" {
		return fmt.Errorf("merchant id is required")
	}
	if c.Gateway.APIBaseURL == "" {
		return fmt.Errorf("api base url is required")
	}
	if c.Gateway.PrivateKeyPath == "" {
		return fmt.Errorf("private key path is required")
	}
	if c.Gateway.GatewayPublicKeyPath == "" {
		return fmt.Errorf("gateway public key path is required")
	}
	if c.Gateway.ReturnURL == "" {
		return fmt.Errorf("return url is required")
	}
	switch c.Gateway.ReturnMethod {
	case "GET", "POST":
	default:
		return fmt.Errorf("return method must be GET or POST, got %q", c.Gateway.ReturnMethod)
	}
	if c.Gateway.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be greater than 0")
	}
	return nil
}

func parseBackoffDurations(backoffStr string) []time.Duration {
	if backoffStr == "" {
		return []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	parts := strings.Split(backoffStr, ",")
	durations := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		duration, err := time.ParseDuration(part)
		if err != nil {
			continue
		}
		durations = append(durations, duration)
	}
	if len(durations) == 0 {
		return []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	return durations
}

func parseDurationWithDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(s)
}
