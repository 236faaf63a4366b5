// Package gateway is the merchant-side client for the payment gateway API.
// Every request carries an RSA signature over a pipe-delimited canonical
// string of its fields in documented order, and every response is verified
// the same way before any field of it is trusted.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paygate/pkg/canonical"
	"paygate/pkg/errors"
	"paygate/pkg/extension"
	"paygate/pkg/signer"
)

// Config carries everything the client needs to talk to one gateway
// account. Key material is referenced by path and loaded fresh for each
// sign/verify call.
type Config struct {
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

// Metrics is the subset of instrumentation the client records. A nil
// implementation disables it.
type Metrics interface {
	RecordSignatureGenerated()
	RecordSignatureVerification(result string)
	RecordAPIRequest(operation, status string)
	RecordAPIRequestDuration(operation string, duration time.Duration)
	RecordRetry()
}

// Client issues signed gateway operations. It is safe for concurrent use;
// all per-operation state lives in the arguments, not the client.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
	metrics    Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetrics attaches an instrumentation sink.
func WithMetrics(m Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a gateway client.
func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		logger:     logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Sign signs a canonical string with the merchant private key. The key is
// loaded for the duration of the call. Implements extension.Signer.
func (c *Client) Sign(message string) (string, error) {
	sig, err := signer.SignWithKeyFile(message, c.cfg.PrivateKeyPath, c.cfg.PrivateKeyPassword, c.cfg.Hash)
	if err != nil {
		return "", err
	}
	if c.metrics != nil {
		c.metrics.RecordSignatureGenerated()
	}
	return sig, nil
}

// Verify checks a base64 signature with the gateway public key.
// Implements extension.Verifier.
func (c *Client) Verify(message, signature string) (bool, error) {
	ok, err := signer.VerifyWithKeyFile(message, signature, c.cfg.GatewayPublicKeyPath, c.cfg.Hash)
	if c.metrics != nil && err == nil {
		result := "ok"
		if !ok {
			result = "fail"
		}
		c.metrics.RecordSignatureVerification(result)
	}
	return ok, err
}

// dttmNow renders the request timestamp in the gateway's compact format.
func dttmNow() string {
	return time.Now().Format("20060102150405")
}

// PaymentInit registers a new payment with the gateway. Extensions that
// contribute request blocks are built and signed here; response-capable
// extensions among exts receive and verify their sub-blocks.
func (c *Client) PaymentInit(ctx context.Context, p *Payment, exts ...extension.Attachment) (*PaymentResponse, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	stamp := dttmNow()
	payload := canonical.FilterEmpty(p.requestData(c.cfg, stamp))

	payload, err := c.signPayload("payment/init", payload)
	if err != nil {
		return nil, err
	}

	blocks, err := c.buildExtensionBlocks(stamp, exts)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		payload = append(payload, canonical.Field{Key: "extensions", Value: blocks})
	}

	body, err := c.send(ctx, http.MethodPost, "payment/init", payload, "payment/init")
	if err != nil {
		return nil, err
	}
	return c.parseAndVerifyResponse(body, exts)
}

// PaymentStatus fetches the current state of a payment over a signed GET URL.
func (c *Client) PaymentStatus(ctx context.Context, payID string, exts ...extension.Attachment) (*PaymentResponse, error) {
	path, err := c.signedPath("payment/status", payID)
	if err != nil {
		return nil, err
	}
	body, err := c.send(ctx, http.MethodGet, path, nil, "payment/status")
	if err != nil {
		return nil, err
	}
	return c.parseAndVerifyResponse(body, exts)
}

// PaymentReverse cancels a payment that has not been settled yet.
func (c *Client) PaymentReverse(ctx context.Context, payID string, exts ...extension.Attachment) (*PaymentResponse, error) {
	return c.payIDOperation(ctx, http.MethodPut, "payment/reverse", payID, exts)
}

// PaymentClose moves an authorized payment into settlement, optionally for
// a lower amount. Zero means the full authorized amount.
func (c *Client) PaymentClose(ctx context.Context, payID string, amount int, exts ...extension.Attachment) (*PaymentResponse, error) {
	return c.payIDAmountOperation(ctx, "payment/close", payID, amount, exts)
}

// PaymentRefund returns money to the customer. Zero amount means a full
// refund; a positive amount is a partial refund.
func (c *Client) PaymentRefund(ctx context.Context, payID string, amount int, exts ...extension.Attachment) (*PaymentResponse, error) {
	return c.payIDAmountOperation(ctx, "payment/refund", payID, amount, exts)
}

// Echo verifies connectivity, key configuration and merchant id with the
// gateway without touching any payment.
func (c *Client) Echo(ctx context.Context) error {
	payload := canonical.Map{
		{Key: "merchantId", Value: canonical.String(c.cfg.MerchantID)},
		{Key: "dttm", Value: canonical.String(dttmNow())},
	}
	payload, err := c.signPayload("echo", payload)
	if err != nil {
		return err
	}

	body, err := c.send(ctx, http.MethodPost, "echo", payload, "echo")
	if err != nil {
		return err
	}
	resp, err := c.parseAndVerifyResponse(body, nil)
	if err != nil {
		return err
	}
	if resp.ResultCode != ResultOK {
		return errors.New(errors.KindTransport, "echo rejected",
			fmt.Sprintf("resultCode %d: %s", resp.ResultCode, resp.ResultMessage))
	}
	return nil
}

// ProcessURL builds the signed redirect URL the customer's browser is sent
// to for entering card data. No HTTP call is made.
func (c *Client) ProcessURL(payID string) (string, error) {
	path, err := c.signedPath("payment/process", payID)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(c.cfg.APIBaseURL, "/") + "/" + path, nil
}

func (c *Client) payIDOperation(ctx context.Context, method, op, payID string, exts []extension.Attachment) (*PaymentResponse, error) {
	payload := canonical.Map{
		{Key: "merchantId", Value: canonical.String(c.cfg.MerchantID)},
		{Key: "payId", Value: canonical.String(payID)},
		{Key: "dttm", Value: canonical.String(dttmNow())},
	}
	payload, err := c.signPayload(op, payload)
	if err != nil {
		return nil, err
	}
	body, err := c.send(ctx, method, op, payload, op)
	if err != nil {
		return nil, err
	}
	return c.parseAndVerifyResponse(body, exts)
}

func (c *Client) payIDAmountOperation(ctx context.Context, op, payID string, amount int, exts []extension.Attachment) (*PaymentResponse, error) {
	var amountValue canonical.Value = canonical.Null{}
	if amount > 0 {
		amountValue = canonical.Int(int64(amount))
	}
	payload := canonical.FilterEmpty(canonical.Map{
		{Key: "merchantId", Value: canonical.String(c.cfg.MerchantID)},
		{Key: "payId", Value: canonical.String(payID)},
		{Key: "dttm", Value: canonical.String(dttmNow())},
		{Key: "amount", Value: amountValue},
	})
	payload, err := c.signPayload(op, payload)
	if err != nil {
		return nil, err
	}
	body, err := c.send(ctx, http.MethodPut, op, payload, op)
	if err != nil {
		return nil, err
	}
	return c.parseAndVerifyResponse(body, exts)
}

// signPayload linearizes the payload in its field order, signs the base and
// appends the signature field. The base is built fresh for every call; it
// depends on live data and the dttm stamp.
func (c *Client) signPayload(operation string, payload canonical.Map) (canonical.Map, error) {
	base := canonical.Linearize(payload)
	c.logger.Debug("request signature base",
		zap.String("operation", operation),
		zap.String("base", base),
	)
	sig, err := c.Sign(base)
	if err != nil {
		return nil, err
	}
	return append(payload, canonical.Field{Key: "signature", Value: canonical.String(sig)}), nil
}

// signedPath builds "{op}/{merchantId}/{payId}/{dttm}/{signature}" with the
// signature computed over merchantId|payId|dttm.
func (c *Client) signedPath(op, payID string) (string, error) {
	stamp := dttmNow()
	base := strings.Join([]string{c.cfg.MerchantID, payID, stamp}, canonical.Separator)
	c.logger.Debug("request signature base",
		zap.String("operation", op),
		zap.String("base", base),
	)
	sig, err := c.Sign(base)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		op,
		url.PathEscape(c.cfg.MerchantID),
		url.PathEscape(payID),
		stamp,
		url.PathEscape(sig),
	}, "/"), nil
}

func (c *Client) buildExtensionBlocks(dttm string, exts []extension.Attachment) (canonical.List, error) {
	var blocks canonical.List
	for _, ext := range exts {
		contributor, ok := ext.(extension.RequestContributor)
		if !ok {
			continue
		}
		block, err := contributor.BuildRequestBlock(dttm, c)
		if err != nil {
			return nil, err
		}
		if block != nil {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

// send issues the HTTP call with the configured bounded-backoff retry.
// Network failures and 5xx responses are retried; anything else is final.
func (c *Client) send(ctx context.Context, method, path string, payload canonical.Map, operation string) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindTransport, "request serialization failed", operation)
		}
	}

	endpoint := strings.TrimSuffix(c.cfg.APIBaseURL, "/") + "/" + path
	traceID := uuid.NewString()
	start := time.Now()

	var respBody []byte
	err := c.doWithRetry(ctx, operation, func() (bool, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return false, errors.Wrap(err, errors.KindTransport, "failed to create request", operation)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return true, errors.Wrap(err, errors.KindTransport, "http request failed", operation)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return true, errors.Wrap(err, errors.KindTransport, "failed to read response", operation)
		}

		if resp.StatusCode >= 500 {
			return true, errors.New(errors.KindTransport, "gateway error",
				fmt.Sprintf("%s: status %d", operation, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return false, errors.New(errors.KindTransport, "gateway rejected request",
				fmt.Sprintf("%s: status %d", operation, resp.StatusCode))
		}
		return false, nil
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordAPIRequest(operation, status)
		c.metrics.RecordAPIRequestDuration(operation, time.Since(start))
	}
	c.logger.Info("gateway request",
		zap.String("operation", operation),
		zap.String("trace_id", traceID),
		zap.String("status", status),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		return nil, err
	}
	return respBody, nil
}
