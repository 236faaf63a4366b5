package extension

import (
	"paygate/pkg/canonical"
)

// MaskedCardID is the wire id of the masked card number add-on.
const MaskedCardID = "maskClnRP"

// MaskedCardExtension exposes the masked card number and expiration the
// gateway reports for a repeated/recurring payment. Response-only.
type MaskedCardExtension struct {
	responseCore
}

// NewMaskedCard creates the maskClnRP response handler with the gateway's
// fixed field order.
func NewMaskedCard(opts ...Option) *MaskedCardExtension {
	s := applyOptions(opts)
	return &MaskedCardExtension{
		responseCore: responseCore{
			id:     MaskedCardID,
			strict: s.strict,
			logger: s.logger,
			order: canonical.ParseOrder([]string{
				FieldExtension,
				FieldDTTM,
				"maskedCln",
				"expiration",
				"longMaskedCln",
			}),
		},
	}
}

// SetResponseData stores the sub-block.
func (e *MaskedCardExtension) SetResponseData(data canonical.Map) error {
	return e.setResponse(data)
}

// MaskedNumber returns the short masked card number, e.g. "****1234".
func (e *MaskedCardExtension) MaskedNumber() string {
	v, _ := e.response.GetString("maskedCln")
	return v
}

// Expiration returns the card expiration in the gateway's MM/YY form.
func (e *MaskedCardExtension) Expiration() string {
	v, _ := e.response.GetString("expiration")
	return v
}

// LongMaskedNumber returns the long masked card number, e.g. "415461****1234".
func (e *MaskedCardExtension) LongMaskedNumber() string {
	v, _ := e.response.GetString("longMaskedCln")
	return v
}
