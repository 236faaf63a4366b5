// Package extension implements the optional add-on blocks of the gateway
// protocol. Every extension block carries the extension id, a dttm timestamp
// and a trailing signature, and is signed independently of the enclosing
// request or response. One instance serves one logical operation: it is
// primed before the request, fed the response sub-block afterwards, then
// discarded. Instances must not be shared across concurrent operations.
package extension

import (
	"go.uber.org/zap"

	"paygate/pkg/canonical"
	"paygate/pkg/errors"
)

// Field names every extension block carries on the wire.
const (
	FieldExtension = "extension"
	FieldDTTM      = "dttm"
	FieldSignature = "signature"
)

// Signer signs a canonical string with the merchant's private key.
type Signer interface {
	Sign(message string) (string, error)
}

// Verifier verifies a base64 signature over a canonical string with the
// gateway's public key. A mismatch is (false, nil), not an error.
type Verifier interface {
	Verify(message, signature string) (bool, error)
}

// Attachment is any extension attached to a gateway operation. Callers
// discover the request and response capabilities by interface assertion.
type Attachment interface {
	ID() string
}

// RequestContributor is the outgoing capability: an extension that merges
// an independently signed block into a request.
type RequestContributor interface {
	ID() string
	BuildRequestBlock(dttm string, s Signer) (canonical.Map, error)
}

// ResponseHandler is the incoming capability: an extension that parses and
// verifies its response sub-block. Response-only extension variants
// implement this interface but not RequestContributor, so calling a request
// setter on them is a compile error rather than a runtime guard.
type ResponseHandler interface {
	ID() string
	Strict() bool
	SetResponseData(data canonical.Map) error
	VerifySignature(v Verifier) (bool, error)
	SignatureCorrect() (ok bool, evaluated bool)
}

type settings struct {
	strict bool
	logger *zap.Logger
}

// Option configures an extension at construction.
type Option func(*settings)

// WithStrict escalates a failed response-signature verification to an error
// instead of recording it as a boolean.
func WithStrict() Option {
	return func(s *settings) { s.strict = true }
}

// WithLogger sets the diagnostic trace sink for signature base strings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func applyOptions(opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// responseCore carries the incoming track shared by all extension variants:
// the expected field order, the raw response sub-block and the cached
// verification result.
type responseCore struct {
	id          string
	strict      bool
	logger      *zap.Logger
	order       []canonical.FieldSpec
	response    canonical.Map
	responseSet bool
	verified    bool
	evaluated   bool
}

func (c *responseCore) ID() string {
	return c.id
}

func (c *responseCore) Strict() bool {
	return c.strict
}

// ResponseData returns the raw response sub-block, or nil before one is set.
func (c *responseCore) ResponseData() canonical.Map {
	return c.response
}

func (c *responseCore) setResponse(data canonical.Map) error {
	if c.responseSet {
		return errors.New(errors.KindProtocolMisuse, "response data already set", c.id)
	}
	c.response = data
	c.responseSet = true
	return nil
}

// SignatureCorrect returns the cached verification result and whether
// VerifySignature has run at all.
func (c *responseCore) SignatureCorrect() (ok bool, evaluated bool) {
	return c.verified, c.evaluated
}

// VerifySignature strips the signature field, resolves the canonical string
// over the declared field order and checks it against the block's signature.
// A missing or mismatched signature yields false; in strict mode the
// mismatch is returned as a verification error as well. The result is
// cached on the instance.
func (c *responseCore) VerifySignature(v Verifier) (bool, error) {
	if !c.responseSet {
		return false, errors.New(errors.KindProtocolMisuse, "response data not set", c.id)
	}
	if len(c.order) == 0 {
		return false, errors.New(errors.KindProtocolMisuse, "expected response order not set", c.id)
	}

	ok, err := c.verifyOnce(v)
	if err != nil {
		return false, err
	}
	c.verified = ok
	c.evaluated = true

	if !ok && c.strict {
		return false, errors.New(errors.KindVerification, "extension signature verification failed", c.id)
	}
	return ok, nil
}

func (c *responseCore) verifyOnce(v Verifier) (bool, error) {
	signature, present := c.response.GetString(FieldSignature)
	if !present {
		// Absent or malformed signature is a failed verification, never a throw.
		return false, nil
	}

	data := c.response.Without(FieldSignature)
	base := canonical.ResolveOrderedString(data, c.order)
	c.logger.Debug("extension response signature base",
		zap.String("extension", c.id),
		zap.String("base", base),
	)
	return v.Verify(base, signature)
}

// Extension is the generic add-on: both tracks are open and the field
// layouts are supplied by the caller. Gateway-defined add-ons with fixed
// layouts have their own types in this package.
type Extension struct {
	responseCore
	input    canonical.Map
	inputSet bool
}

// New creates a generic extension with the given wire id.
func New(id string, opts ...Option) *Extension {
	s := applyOptions(opts)
	return &Extension{
		responseCore: responseCore{
			id:     id,
			strict: s.strict,
			logger: s.logger,
		},
	}
}

// SetInput records the ordered field list to be merged into the outgoing
// request. Entries for the extension id and dttm may be left empty; they
// are filled at signing time. Setting input twice is a protocol misuse.
func (e *Extension) SetInput(input canonical.Map) error {
	if e.inputSet {
		return errors.New(errors.KindProtocolMisuse, "input already set", e.id)
	}
	e.input = input
	e.inputSet = true
	return nil
}

// SetExpectedOrder declares the ordered/optional field list used to verify
// the response sub-block.
func (e *Extension) SetExpectedOrder(order []canonical.FieldSpec) error {
	if e.evaluated {
		return errors.New(errors.KindProtocolMisuse, "signature already verified", e.id)
	}
	e.order = order
	return nil
}

// SetResponseData stores the raw response sub-block for verification.
func (e *Extension) SetResponseData(data canonical.Map) error {
	return e.setResponse(data)
}

// BuildRequestBlock fills the extension id and dttm placeholders, signs the
// block over its natural field order and returns it with the signature
// appended. An extension with no input contributes nothing to the request
// and returns nil.
func (e *Extension) BuildRequestBlock(dttm string, s Signer) (canonical.Map, error) {
	if !e.inputSet {
		return nil, nil
	}

	block := make(canonical.Map, 0, len(e.input)+1)
	for _, f := range e.input {
		block = append(block, fillPlaceholder(f, e.id, dttm))
	}

	base := canonical.Linearize(block)
	e.logger.Debug("extension request signature base",
		zap.String("extension", e.id),
		zap.String("base", base),
	)

	signature, err := s.Sign(base)
	if err != nil {
		return nil, err
	}
	return append(block, canonical.Field{Key: FieldSignature, Value: canonical.String(signature)}), nil
}

func fillPlaceholder(f canonical.Field, id, dttm string) canonical.Field {
	if !isEmpty(f.Value) {
		return f
	}
	switch f.Key {
	case FieldExtension:
		f.Value = canonical.String(id)
	case FieldDTTM:
		f.Value = canonical.String(dttm)
	}
	return f
}

func isEmpty(v canonical.Value) bool {
	switch t := v.(type) {
	case nil:
		return true
	case canonical.Null:
		return true
	case canonical.String:
		return t == ""
	}
	return false
}
