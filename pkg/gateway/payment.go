package gateway

import (
	"encoding/base64"
	"fmt"

	"paygate/pkg/canonical"
	"paygate/pkg/errors"
)

// Payment operation defaults per the gateway contract.
const (
	PayOperationPayment = "payment"
	PayMethodCard       = "card"

	// The gateway accepts at most two cart items and an order number of at
	// most ten digits.
	maxCartItems    = 2
	maxOrderNoLen   = 10
	maxMerchantData = 255
)

// CartItem is one line of the cart shown on the gateway's payment page.
// Amount is in the smallest currency units (hundredths).
type CartItem struct {
	Name        string
	Quantity    int
	Amount      int
	Description string
}

// Payment describes one payment to initialize. Amounts are in the smallest
// currency units. MerchantData is raw bytes; it is base64-encoded on the
// wire and echoed back on return redirects.
type Payment struct {
	OrderNo      string
	TotalAmount  int
	Currency     string
	ClosePayment bool
	PayOperation string
	PayMethod    string
	Description  string
	MerchantData []byte
	CustomerID   string
	Language     string
	TTLSec       int

	cart []CartItem
}

// NewPayment creates a payment with the gateway defaults: a card payment
// that closes (settles) automatically, priced in CZK, Czech payment page.
func NewPayment(orderNo string) *Payment {
	return &Payment{
		OrderNo:      orderNo,
		Currency:     "CZK",
		ClosePayment: true,
		PayOperation: PayOperationPayment,
		PayMethod:    PayMethodCard,
		Language:     "CZ",
	}
}

// AddCartItem appends a cart line. The gateway caps the cart at two items.
func (p *Payment) AddCartItem(name string, quantity, amount int, description string) error {
	if len(p.cart) >= maxCartItems {
		return errors.New(errors.KindValidation, "too many cart items",
			fmt.Sprintf("gateway accepts at most %d", maxCartItems))
	}
	if name == "" {
		return errors.New(errors.KindValidation, "cart item name is required", "")
	}
	if quantity < 1 {
		return errors.New(errors.KindValidation, "cart item quantity must be at least 1", "")
	}
	p.cart = append(p.cart, CartItem{
		Name:        name,
		Quantity:    quantity,
		Amount:      amount,
		Description: description,
	})
	return nil
}

// Cart returns the cart lines added so far.
func (p *Payment) Cart() []CartItem {
	return p.cart
}

// Validate checks the payment against the gateway contract before signing.
func (p *Payment) Validate() error {
	if p.OrderNo == "" {
		return errors.New(errors.KindValidation, "order number is required", "")
	}
	if len(p.OrderNo) > maxOrderNoLen {
		return errors.New(errors.KindValidation, "order number too long",
			fmt.Sprintf("at most %d digits", maxOrderNoLen))
	}
	for _, r := range p.OrderNo {
		if r < '0' || r > '9' {
			return errors.New(errors.KindValidation, "order number must be numeric", p.OrderNo)
		}
	}
	if p.TotalAmount <= 0 {
		return errors.New(errors.KindValidation, "total amount must be positive", "")
	}
	if len(p.cart) == 0 {
		return errors.New(errors.KindValidation, "cart must not be empty", "add at least one cart item")
	}
	cartTotal := 0
	for _, item := range p.cart {
		cartTotal += item.Amount
	}
	if cartTotal != p.TotalAmount {
		return errors.New(errors.KindValidation, "cart amounts do not add up to total",
			fmt.Sprintf("cart %d, total %d", cartTotal, p.TotalAmount))
	}
	if encoded := base64.StdEncoding.EncodedLen(len(p.MerchantData)); encoded > maxMerchantData {
		return errors.New(errors.KindValidation, "merchant data too long",
			fmt.Sprintf("base64 form is %d bytes, limit %d", encoded, maxMerchantData))
	}
	return nil
}

// requestData assembles the ordered payment/init payload. The field order
// here is the signature base order; do not reorder.
func (p *Payment) requestData(cfg Config, dttm string) canonical.Map {
	cart := make(canonical.List, 0, len(p.cart))
	for _, item := range p.cart {
		cart = append(cart, canonical.FilterEmpty(canonical.Map{
			{Key: "name", Value: canonical.String(item.Name)},
			{Key: "quantity", Value: canonical.Int(int64(item.Quantity))},
			{Key: "amount", Value: canonical.Int(int64(item.Amount))},
			{Key: "description", Value: canonical.String(item.Description)},
		}))
	}

	var merchantData canonical.Value = canonical.Null{}
	if len(p.MerchantData) > 0 {
		merchantData = canonical.String(base64.StdEncoding.EncodeToString(p.MerchantData))
	}

	var ttl canonical.Value = canonical.Null{}
	if p.TTLSec > 0 {
		ttl = canonical.Int(int64(p.TTLSec))
	}

	return canonical.Map{
		{Key: "merchantId", Value: canonical.String(cfg.MerchantID)},
		{Key: "orderNo", Value: canonical.String(p.OrderNo)},
		{Key: "dttm", Value: canonical.String(dttm)},
		{Key: "payOperation", Value: canonical.String(p.PayOperation)},
		{Key: "payMethod", Value: canonical.String(p.PayMethod)},
		{Key: "totalAmount", Value: canonical.Int(int64(p.TotalAmount))},
		{Key: "currency", Value: canonical.String(p.Currency)},
		{Key: "closePayment", Value: canonical.Bool(p.ClosePayment)},
		{Key: "returnUrl", Value: canonical.String(cfg.ReturnURL)},
		{Key: "returnMethod", Value: canonical.String(cfg.ReturnMethod)},
		{Key: "cart", Value: cart},
		{Key: "description", Value: canonical.String(p.Description)},
		{Key: "merchantData", Value: merchantData},
		{Key: "customerId", Value: canonical.String(p.CustomerID)},
		{Key: "language", Value: canonical.String(p.Language)},
		{Key: "ttlSec", Value: ttl},
	}
}
