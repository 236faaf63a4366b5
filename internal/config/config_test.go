package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paygate/pkg/signer"
)

var requiredEnv = map[string]string{
	"GATEWAY_MERCHANT_ID":      "M1MIPS03",
	"GATEWAY_PRIVATE_KEY_PATH": "/keys/merchant.key",
	"GATEWAY_PUBLIC_KEY_PATH":  "/keys/gateway.pub",
	"GATEWAY_RETURN_URL":       "https://shop.example/return",
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for k, v := range requiredEnv {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range requiredEnv {
			os.Unsetenv(k)
		}
	})
}

func TestLoadConfig_Success(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "M1MIPS03", cfg.Gateway.MerchantID)
	assert.Equal(t, "https://iapi.iplatebnibrana.csob.cz/api/v1.9", cfg.Gateway.APIBaseURL)
	assert.Equal(t, signer.SHA256, cfg.Gateway.Hash)
	assert.Equal(t, "POST", cfg.Gateway.ReturnMethod)
	assert.Equal(t, 10*time.Second, cfg.Gateway.HTTPTimeout)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, cfg.Gateway.RetryBackoff)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_MissingMerchantID(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("GATEWAY_MERCHANT_ID")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "merchant id is required")
}

func TestLoadConfig_MissingPrivateKeyPath(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("GATEWAY_PRIVATE_KEY_PATH")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "private key path is required")
}

func TestLoadConfig_InvalidHash(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GATEWAY_HASH", "md5")
	defer os.Unsetenv("GATEWAY_HASH")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "GATEWAY_HASH")
}

func TestLoadConfig_Sha1Hash(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GATEWAY_HASH", "sha1")
	defer os.Unsetenv("GATEWAY_HASH")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, signer.SHA1, cfg.Gateway.Hash)
}

func TestLoadConfig_InvalidReturnMethod(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GATEWAY_RETURN_METHOD", "PUT")
	defer os.Unsetenv("GATEWAY_RETURN_METHOD")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "return method must be GET or POST")
}

func TestLoadConfig_CustomBackoff(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GATEWAY_RETRY_BACKOFF", "500ms, 1s ,2s")
	defer os.Unsetenv("GATEWAY_RETRY_BACKOFF")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, cfg.Gateway.RetryBackoff)
}

func TestLoadConfig_MalformedBackoffFallsBack(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("GATEWAY_RETRY_BACKOFF", "soon,later")
	defer os.Unsetenv("GATEWAY_RETRY_BACKOFF")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, cfg.Gateway.RetryBackoff)
}

func TestToGatewayConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	gw := cfg.ToGatewayConfig()
	assert.Equal(t, cfg.Gateway.MerchantID, gw.MerchantID)
	assert.Equal(t, cfg.Gateway.APIBaseURL, gw.APIBaseURL)
	assert.Equal(t, cfg.Gateway.PrivateKeyPath, gw.PrivateKeyPath)
	assert.Equal(t, cfg.Gateway.GatewayPublicKeyPath, gw.GatewayPublicKeyPath)
	assert.Equal(t, cfg.Gateway.Hash, gw.Hash)
	assert.Equal(t, cfg.Gateway.RetryBackoff, gw.RetryBackoff)
}
