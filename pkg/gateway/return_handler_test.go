package gateway

import (
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paygate/pkg/errors"
	"paygate/pkg/signer"
)

// signedReturnValues builds the redirect payload the gateway sends the
// customer back with: the listed fields joined in return order, signed with
// the gateway key.
func signedReturnValues(t *testing.T, key *rsa.PrivateKey, fields url.Values) url.Values {
	t.Helper()

	parts := make([]string, 0, len(returnOrder))
	for _, spec := range returnOrder {
		if v := fields.Get(spec.Path); v != "" {
			parts = append(parts, v)
		}
	}
	sig, err := signer.Sign(strings.Join(parts, "|"), key, signer.SHA256)
	require.NoError(t, err)

	fields.Set("signature", sig)
	return fields
}

func okReturnValues(t *testing.T, key *rsa.PrivateKey) url.Values {
	t.Helper()
	return signedReturnValues(t, key, url.Values{
		"payId":         {"d165e3c4b624fBD"},
		"dttm":          {"20140425131559"},
		"resultCode":    {"0"},
		"resultMessage": {"OK"},
		"paymentStatus": {"7"},
		"authCode":      {"123456"},
	})
}

func TestParseReturnResponse(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	resp, err := env.client.ParseReturnResponse(okReturnValues(t, env.gatewayKey))
	require.NoError(t, err)

	assert.Equal(t, "d165e3c4b624fBD", resp.PayID)
	assert.Equal(t, 0, resp.ResultCode)
	assert.Equal(t, "OK", resp.ResultMessage)
	assert.True(t, resp.HasPaymentStatus)
	assert.Equal(t, StatusAwaitingSettle, resp.PaymentStatus)
	assert.Equal(t, "123456", resp.AuthCode)
}

func TestParseReturnResponse_OptionalFieldsAbsent(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	// A declined payment comes back without paymentStatus, authCode or
	// merchantData; the base must elide them rather than keep empty slots.
	values := signedReturnValues(t, env.gatewayKey, url.Values{
		"payId":         {"d165e3c4b624fBD"},
		"dttm":          {"20140425131559"},
		"resultCode":    {"110"},
		"resultMessage": {"Invalid payId"},
	})

	resp, err := env.client.ParseReturnResponse(values)
	require.NoError(t, err)
	assert.Equal(t, 110, resp.ResultCode)
	assert.False(t, resp.HasPaymentStatus)
	assert.Empty(t, resp.AuthCode)
}

func TestParseReturnResponse_MerchantData(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	values := signedReturnValues(t, env.gatewayKey, url.Values{
		"payId":         {"d165e3c4b624fBD"},
		"dttm":          {"20140425131559"},
		"resultCode":    {"0"},
		"resultMessage": {"OK"},
		"paymentStatus": {"8"},
		"merchantData":  {"aGVsbG8="},
	})

	resp, err := env.client.ParseReturnResponse(values)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), resp.MerchantData)
}

func TestParseReturnResponse_Tampered(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	values := okReturnValues(t, env.gatewayKey)
	values.Set("resultCode", "900")

	_, err := env.client.ParseReturnResponse(values)
	require.Error(t, err)
	assert.True(t, errors.IsVerification(err))
}

func TestParseReturnResponse_Unsigned(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	values := okReturnValues(t, env.gatewayKey)
	values.Del("signature")

	_, err := env.client.ParseReturnResponse(values)
	require.Error(t, err)
	assert.True(t, errors.IsVerification(err))
}

func TestReturnHandler_POST(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	gin.SetMode(gin.TestMode)
	router := gin.New()

	var got *PaymentResponse
	router.POST("/return", ReturnHandler(env.client, zap.NewNop(),
		func(ctx *gin.Context, resp *PaymentResponse) {
			got = resp
			ctx.String(http.StatusOK, "thank you")
		}))

	form := okReturnValues(t, env.gatewayKey)
	req := httptest.NewRequest(http.MethodPost, "/return",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "d165e3c4b624fBD", got.PayID)
}

func TestReturnHandler_GET(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/return", ReturnHandler(env.client, zap.NewNop(),
		func(ctx *gin.Context, resp *PaymentResponse) {
			ctx.String(http.StatusOK, resp.PayID)
		}))

	query := okReturnValues(t, env.gatewayKey)
	req := httptest.NewRequest(http.MethodGet, "/return?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "d165e3c4b624fBD", rec.Body.String())
}

func TestReturnHandler_RejectsTamperedRedirect(t *testing.T) {
	env := newTestEnv(t, http.NotFoundHandler())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/return", ReturnHandler(env.client, zap.NewNop(),
		func(ctx *gin.Context, resp *PaymentResponse) {
			t.Fatal("callback must not run for a tampered redirect")
		}))

	query := okReturnValues(t, env.gatewayKey)
	query.Set("paymentStatus", "8")
	req := httptest.NewRequest(http.MethodGet, "/return?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
