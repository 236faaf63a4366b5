package extension

import (
	"time"

	"paygate/pkg/canonical"
)

// TransactionDatesID is the wire id of the transaction dates add-on.
const TransactionDatesID = "trxDates"

// Compact timestamp layouts the gateway uses inside the trxDates block.
const (
	createdDateLayout    = "2006-01-02T15:04:05"
	authDateLayout       = "20060102150405"
	settlementDateLayout = "20060102"
)

// TransactionDatesExtension reports when a transaction was created,
// authorized and settled. It is response-only: the type has no input
// setter, so it cannot be asked to contribute to a request.
type TransactionDatesExtension struct {
	responseCore

	createdDate    time.Time
	createdSet     bool
	authDate       time.Time
	authSet        bool
	settlementDate time.Time
	settlementSet  bool
}

// NewTransactionDates creates the trxDates response handler. All three date
// fields are optional in the gateway's documented order.
func NewTransactionDates(opts ...Option) *TransactionDatesExtension {
	s := applyOptions(opts)
	return &TransactionDatesExtension{
		responseCore: responseCore{
			id:     TransactionDatesID,
			strict: s.strict,
			logger: s.logger,
			order: canonical.ParseOrder([]string{
				FieldExtension,
				FieldDTTM,
				"?createdDate",
				"?authDate",
				"?settlementDate",
			}),
		},
	}
}

// SetResponseData stores the sub-block and extracts the typed dates.
// An unparsable or absent date is stored as absent, not as an error: the
// raw block still verifies against its declared order either way.
func (e *TransactionDatesExtension) SetResponseData(data canonical.Map) error {
	if err := e.setResponse(data); err != nil {
		return err
	}
	e.createdDate, e.createdSet = parseDate(data, "createdDate", createdDateLayout)
	e.authDate, e.authSet = parseDate(data, "authDate", authDateLayout)
	e.settlementDate, e.settlementSet = parseDate(data, "settlementDate", settlementDateLayout)
	return nil
}

// CreatedDate returns when the transaction was created on the gateway.
func (e *TransactionDatesExtension) CreatedDate() (time.Time, bool) {
	return e.createdDate, e.createdSet
}

// AuthDate returns when the transaction was authorized.
func (e *TransactionDatesExtension) AuthDate() (time.Time, bool) {
	return e.authDate, e.authSet
}

// SettlementDate returns the day the transaction was settled.
func (e *TransactionDatesExtension) SettlementDate() (time.Time, bool) {
	return e.settlementDate, e.settlementSet
}

func parseDate(data canonical.Map, key, layout string) (time.Time, bool) {
	raw, ok := data.GetString(key)
	if !ok {
		return time.Time{}, false
	}
	parsed, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
