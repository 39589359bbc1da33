package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// now is swapped out in tests that need a deterministic clock.
var now = time.Now

// ContactInfo is a billing or shipping address snapshot. Gateways report
// customer fields piecemeal across notifications, so fields are merged in
// rather than overwritten, see MergeCustomerInfo.
type ContactInfo struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Street1    string `json:"street1"`
	Street2    string `json:"street2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResponse is the single gateway-specific scratch record kept per
// cart, holding whatever the last request/confirmation round left behind.
// It is overwritten, never appended.
type PaymentResponse struct {
	ResponseCode int    `json:"response_code"`
	ResponseText string `json:"response_text"`
}

// Cart collects information about an order and tracks its state.
//
// Totals are derived, never hand-set: Recalc recomputes SubTotal and Total
// from the line items before every persistence. The cart's ID is the
// externally exposed UUID gateways echo back as an invoice/order id.
type Cart struct {
	ID           uuid.UUID        `json:"id"`
	State        State            `json:"state"`
	Gateway      string           `json:"gateway"`
	SubTotal     decimal.Decimal  `json:"sub_total"`
	Total        decimal.Decimal  `json:"total"`
	Discount     decimal.Decimal  `json:"discount"`
	Tax          decimal.Decimal  `json:"tax"`
	ShippingCost decimal.Decimal  `json:"shipping_cost"`
	BillTo       ContactInfo      `json:"bill_to"`
	ShipTo       ContactInfo      `json:"ship_to"`
	SuccessURL   string           `json:"success_url"`
	FailureURL   string           `json:"failure_url"`
	LastResponse *PaymentResponse `json:"last_response,omitempty"`

	LineItems      []*LineItem          `json:"line_items"`
	RecurringItems []*RecurringLineItem `json:"recurring_items"`
	Payments       []*Payment           `json:"payments"`

	// GracePeriod is the configured default expiration tolerance. When nil
	// and no explicit grace period is supplied, subscriptions never expire
	// through IsItemExpired.
	GracePeriod *time.Duration `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New() *Cart {
	createdAt := now()
	return &Cart{
		ID:           uuid.New(),
		State:        StateOpen,
		SubTotal:     decimal.Zero,
		Total:        decimal.Zero,
		Discount:     decimal.Zero,
		Tax:          decimal.Zero,
		ShippingCost: decimal.Zero,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// Recalc recomputes the derived totals. It runs before every save so the
// invariant total == sum(lineitem.total) + tax + shipping - discount holds.
func (c *Cart) Recalc() {
	subTotal := decimal.Zero
	total := decimal.Zero
	for _, li := range c.LineItems {
		subTotal = subTotal.Add(li.SubTotal())
		total = total.Add(li.Total())
	}
	for _, li := range c.RecurringItems {
		subTotal = subTotal.Add(li.SubTotal())
		total = total.Add(li.Total())
	}
	c.SubTotal = subTotal
	c.Total = total.Add(c.Tax).Add(c.ShippingCost).Sub(c.Discount)
	c.UpdatedAt = now()
}

// Clone deep-copies the cart and its line items into a fresh OPEN cart with
// a new identity. Payments and gateway-specific scratch state are not
// carried over.
func (c *Cart) Clone() *Cart {
	dupe := New()
	dupe.Discount = c.Discount
	dupe.Tax = c.Tax
	dupe.ShippingCost = c.ShippingCost
	dupe.BillTo = c.BillTo
	dupe.ShipTo = c.ShipTo
	dupe.SuccessURL = c.SuccessURL
	dupe.FailureURL = c.FailureURL
	dupe.GracePeriod = c.GracePeriod
	for _, li := range c.LineItems {
		dupe.LineItems = append(dupe.LineItems, li.clone(dupe.ID))
	}
	for _, li := range c.RecurringItems {
		dupe.RecurringItems = append(dupe.RecurringItems, li.clone(dupe.ID))
	}
	dupe.Recalc()
	return dupe
}

// MergeCustomerInfo fills empty billing fields from a notification's
// customer fields, never overwriting known-good data. Shipping fields
// default to mirroring billing unless independently provided.
func (c *Cart) MergeCustomerInfo(info ContactInfo) {
	mergeContact(&c.BillTo, info)
	mergeContact(&c.ShipTo, c.BillTo)
}

func mergeContact(dst *ContactInfo, src ContactInfo) {
	if dst.FirstName == "" {
		dst.FirstName = src.FirstName
	}
	if dst.LastName == "" {
		dst.LastName = src.LastName
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.Street1 == "" {
		dst.Street1 = src.Street1
	}
	if dst.Street2 == "" {
		dst.Street2 = src.Street2
	}
	if dst.City == "" {
		dst.City = src.City
	}
	if dst.Region == "" {
		dst.Region = src.Region
	}
	if dst.PostalCode == "" {
		dst.PostalCode = src.PostalCode
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
}

// SetPaymentResponse overwrites the cart's gateway scratch record.
func (c *Cart) SetPaymentResponse(code int, text string) {
	c.LastResponse = &PaymentResponse{ResponseCode: code, ResponseText: text}
}
