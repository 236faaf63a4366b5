package gateway

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"paygate/pkg/canonical"
	"paygate/pkg/errors"
	"paygate/pkg/extension"
)

// ResultOK is the gateway result code for a successfully processed request.
const ResultOK = 0

// Payment lifecycle states reported in paymentStatus.
const (
	StatusCreated          = 1
	StatusInProgress       = 2
	StatusCanceled         = 3
	StatusConfirmed        = 4
	StatusReversed         = 5
	StatusDeclined         = 6
	StatusAwaitingSettle   = 7
	StatusSettled          = 8
	StatusRefundInProgress = 9
	StatusRefunded         = 10
)

// PaymentResponse is the typed view of a verified gateway response. Raw
// keeps the decoded payload in wire order for callers that need fields not
// modeled here.
type PaymentResponse struct {
	PayID            string
	DTTM             string
	ResultCode       int
	ResultMessage    string
	PaymentStatus    int
	HasPaymentStatus bool
	AuthCode         string
	MerchantData     []byte
	Raw              canonical.Map
}

// returnOrder is the documented field order of the signed redirect the
// gateway sends the customer back with. paymentStatus, authCode and
// merchantData may be absent and are then elided from the base entirely.
var returnOrder = canonical.ParseOrder([]string{
	"payId",
	"dttm",
	"resultCode",
	"resultMessage",
	"?paymentStatus",
	"?authCode",
	"?merchantData",
})

// parseAndVerifyResponse decodes the body in wire order, verifies the
// top-level signature over the natural field order and dispatches extension
// sub-blocks to their handlers. An unverifiable response is an error: the
// merchant must never act on an unauthenticated response.
func (c *Client) parseAndVerifyResponse(body []byte, exts []extension.Attachment) (*PaymentResponse, error) {
	data, err := canonical.DecodeJSON(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "malformed response", "")
	}

	signature, present := data.GetString("signature")
	if !present {
		return nil, errors.New(errors.KindVerification, "response is not signed", "")
	}

	stripped := data.Without("signature").Without("extensions")
	base := canonical.Linearize(stripped)
	c.logger.Debug("response signature base", zap.String("base", base))

	ok, err := c.Verify(base, signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.KindVerification, "response signature verification failed", "")
	}

	if err := c.dispatchExtensions(data, exts); err != nil {
		return nil, err
	}
	return parsePaymentResponse(data), nil
}

// dispatchExtensions hands each response sub-block to the handler with the
// matching id. Strict handlers surface their own verification failures;
// non-strict ones record the result and are only logged here.
func (c *Client) dispatchExtensions(data canonical.Map, exts []extension.Attachment) error {
	raw, ok := data.Get("extensions")
	if !ok {
		return nil
	}
	list, ok := raw.(canonical.List)
	if !ok {
		return nil
	}

	for _, el := range list {
		block, ok := el.(canonical.Map)
		if !ok {
			continue
		}
		id, _ := block.GetString(extension.FieldExtension)
		handler := findResponseHandler(exts, id)
		if handler == nil {
			c.logger.Debug("unhandled response extension", zap.String("extension", id))
			continue
		}
		if err := handler.SetResponseData(block); err != nil {
			return err
		}
		verified, err := handler.VerifySignature(c)
		if err != nil {
			return err
		}
		if !verified {
			c.logger.Warn("extension signature verification failed",
				zap.String("extension", id))
		}
	}
	return nil
}

func findResponseHandler(exts []extension.Attachment, id string) extension.ResponseHandler {
	for _, ext := range exts {
		handler, ok := ext.(extension.ResponseHandler)
		if !ok {
			continue
		}
		if handler.ID() == id {
			return handler
		}
	}
	return nil
}

// ParseReturnResponse verifies and parses the signed payload of the
// customer's return redirect (query or form values, per the configured
// return method). The signature base is resolved over the documented return
// order, with absent optional fields elided.
func (c *Client) ParseReturnResponse(values url.Values) (*PaymentResponse, error) {
	signature := values.Get("signature")
	if signature == "" {
		return nil, errors.New(errors.KindVerification, "return payload is not signed", "")
	}

	var data canonical.Map
	for _, spec := range returnOrder {
		if v := values.Get(spec.Path); v != "" {
			data = append(data, canonical.Field{Key: spec.Path, Value: canonical.String(v)})
		}
	}

	base := canonical.ResolveOrderedString(data, returnOrder)
	c.logger.Debug("return signature base", zap.String("base", base))

	ok, err := c.Verify(base, signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.KindVerification, "return signature verification failed", "")
	}
	return parsePaymentResponse(data), nil
}

func parsePaymentResponse(data canonical.Map) *PaymentResponse {
	resp := &PaymentResponse{Raw: data}
	resp.PayID, _ = data.GetString("payId")
	resp.DTTM, _ = data.GetString("dttm")
	resp.ResultCode, _ = intField(data, "resultCode")
	resp.ResultMessage, _ = data.GetString("resultMessage")
	resp.PaymentStatus, resp.HasPaymentStatus = intField(data, "paymentStatus")
	resp.AuthCode, _ = data.GetString("authCode")
	if md, ok := data.GetString("merchantData"); ok {
		resp.MerchantData = decodeMerchantData(md)
	}
	return resp
}

// intField reads a numeric field that may arrive as a JSON number or, on
// return redirects, as a decimal string.
func intField(data canonical.Map, key string) (int, bool) {
	v, ok := data.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case canonical.Int:
		return int(t), true
	case canonical.String:
		n, err := strconv.Atoi(string(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func decodeMerchantData(encoded string) []byte {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	return decoded
}

// StatusText names a payment status for logs and error messages.
func StatusText(status int) string {
	switch status {
	case StatusCreated:
		return "created"
	case StatusInProgress:
		return "in progress"
	case StatusCanceled:
		return "canceled"
	case StatusConfirmed:
		return "confirmed"
	case StatusReversed:
		return "reversed"
	case StatusDeclined:
		return "declined"
	case StatusAwaitingSettle:
		return "awaiting settlement"
	case StatusSettled:
		return "settled"
	case StatusRefundInProgress:
		return "refund in progress"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown (%d)", status)
	}
}
