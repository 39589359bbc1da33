package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecalc(t *testing.T) {
	crt := New()
	crt.Tax = decimal.NewFromInt(5)
	crt.ShippingCost = decimal.NewFromInt(7)
	crt.Discount = decimal.NewFromInt(2)
	crt.LineItems = append(crt.LineItems,
		&LineItem{
			CartID:    crt.ID,
			SKU:       "SKU-1",
			Quantity:  3,
			UnitPrice: decimal.NewFromInt(10),
			Discount:  decimal.NewFromInt(4),
		},
		&LineItem{
			CartID:    crt.ID,
			SKU:       "SKU-2",
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(20),
		},
	)
	crt.RecurringItems = append(crt.RecurringItems, &RecurringLineItem{
		CartID:            crt.ID,
		SKU:               "SUB-1",
		Quantity:          2,
		RecurringPrice:    decimal.NewFromInt(15),
		RecurringShipping: decimal.NewFromInt(3),
	})
	crt.Recalc()

	// sub_total: 3*10 + 1*20 + 2*15 = 80
	assert.True(t, decimal.NewFromInt(80).Equal(crt.SubTotal), "sub_total=%s", crt.SubTotal)
	// total: (30-4) + 20 + (30+3) + tax 5 + shipping 7 - discount 2 = 89
	assert.True(t, decimal.NewFromInt(89).Equal(crt.Total), "total=%s", crt.Total)
}

func TestClone(t *testing.T) {
	crt := New()
	crt.Gateway = "comp"
	crt.State = StateCompleted
	crt.Tax = decimal.NewFromInt(1)
	crt.SuccessURL = "https://example.com/thanks"
	crt.BillTo = ContactInfo{FirstName: "Ada", Email: "ada@example.com"}
	crt.SetPaymentResponse(200, "ok")
	crt.LineItems = append(crt.LineItems, &LineItem{
		ID:        crt.ID,
		CartID:    crt.ID,
		SKU:       "SKU-1",
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(10),
	})
	crt.RecurringItems = append(crt.RecurringItems, &RecurringLineItem{
		CartID:         crt.ID,
		SKU:            "SUB-1",
		Quantity:       1,
		IsActive:       true,
		PaymentToken:   "token-1",
		RecurringPrice: decimal.NewFromInt(5),
	})
	crt.AddPayment(decimal.NewFromInt(15), "tx-1", PaymentPaid)
	crt.Recalc()

	dupe := crt.Clone()

	assert.NotEqual(t, crt.ID, dupe.ID)
	assert.Equal(t, StateOpen, dupe.State)
	assert.Empty(t, dupe.Gateway)
	assert.Nil(t, dupe.LastResponse)
	assert.Empty(t, dupe.Payments)

	assert.Equal(t, crt.BillTo, dupe.BillTo)
	assert.Equal(t, crt.SuccessURL, dupe.SuccessURL)
	assert.True(t, crt.Total.Equal(dupe.Total))

	assert.Len(t, dupe.LineItems, 1)
	assert.Equal(t, "SKU-1", dupe.LineItems[0].SKU)
	assert.NotEqual(t, crt.LineItems[0].ID, dupe.LineItems[0].ID)
	assert.Equal(t, dupe.ID, dupe.LineItems[0].CartID)

	assert.Len(t, dupe.RecurringItems, 1)
	assert.Equal(t, dupe.ID, dupe.RecurringItems[0].CartID)
}

func TestMergeCustomerInfo(t *testing.T) {
	crt := New()
	crt.BillTo = ContactInfo{FirstName: "Ada", City: "London"}

	crt.MergeCustomerInfo(ContactInfo{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		City:      "New York",
	})

	// Known-good fields are kept, empty fields are filled in.
	assert.Equal(t, "Ada", crt.BillTo.FirstName)
	assert.Equal(t, "London", crt.BillTo.City)
	assert.Equal(t, "Hopper", crt.BillTo.LastName)
	assert.Equal(t, "grace@example.com", crt.BillTo.Email)

	// Shipping mirrors billing when not independently set.
	assert.Equal(t, crt.BillTo, crt.ShipTo)
}

func TestMergeCustomerInfoKeepsShipping(t *testing.T) {
	crt := New()
	crt.ShipTo = ContactInfo{FirstName: "Warehouse", Street1: "1 Dock Rd"}

	crt.MergeCustomerInfo(ContactInfo{FirstName: "Grace", Street1: "2 Main St"})

	assert.Equal(t, "Warehouse", crt.ShipTo.FirstName)
	assert.Equal(t, "1 Dock Rd", crt.ShipTo.Street1)
	assert.Equal(t, "Grace", crt.BillTo.FirstName)
}

func TestPaymentsByTransactionID(t *testing.T) {
	crt := New()
	crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPaid)
	crt.AddPayment(decimal.NewFromInt(-10), "tx-2", PaymentRefund)
	crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPending)

	assert.Len(t, crt.PaymentsByTransactionID("tx-1"), 2)
	assert.Len(t, crt.PaymentsByTransactionID("tx-2"), 1)
	assert.Empty(t, crt.PaymentsByTransactionID("tx-3"))
}

func TestTotals(t *testing.T) {
	crt := New()
	crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPaid)
	crt.AddPayment(decimal.NewFromInt(50), "tx-2", PaymentPending)
	crt.AddPayment(decimal.NewFromInt(25), "tx-3", PaymentPaid)
	crt.AddPayment(decimal.NewFromInt(-40), "tx-4", PaymentRefund)

	assert.True(t, decimal.NewFromInt(125).Equal(crt.TotalPaid()))
	assert.True(t, decimal.NewFromInt(40).Equal(crt.TotalRefunded()))
}

func TestPaymentSetState(t *testing.T) {
	crt := New()
	payment := crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPending)

	event := payment.SetState(PaymentPaid)
	assert.NotNil(t, event)
	assert.Equal(t, PaymentPending, event.OldState)
	assert.Equal(t, PaymentPaid, event.NewState)
	assert.Equal(t, crt.ID, event.CartID)

	assert.Nil(t, payment.SetState(PaymentPaid))
}
