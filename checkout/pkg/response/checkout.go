package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/hiicart/internal/cart"
)

type Cart struct {
	ID           uuid.UUID        `json:"id"`
	State        string           `json:"state"`
	Gateway      string           `json:"gateway"`
	SubTotal     decimal.Decimal  `json:"sub_total"`
	Total        decimal.Decimal  `json:"total"`
	Discount     decimal.Decimal  `json:"discount"`
	Tax          decimal.Decimal  `json:"tax"`
	ShippingCost decimal.Decimal  `json:"shipping_cost"`
	BillTo       cart.ContactInfo `json:"bill_to"`
	ShipTo       cart.ContactInfo `json:"ship_to"`
	SuccessURL   string           `json:"success_url"`
	FailureURL   string           `json:"failure_url"`

	LineItems      []LineItem          `json:"line_items"`
	RecurringItems []RecurringLineItem `json:"recurring_items"`
	Payments       []Payment           `json:"payments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	Ordering    int             `json:"ordering"`
}

type RecurringLineItem struct {
	ID             uuid.UUID       `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Quantity       int64           `json:"quantity"`
	Duration       int             `json:"duration"`
	DurationUnit   string          `json:"duration_unit"`
	IsActive       bool            `json:"is_active"`
	RecurringPrice decimal.Decimal `json:"recurring_price"`
	Total          decimal.Decimal `json:"total"`
	Ordering       int             `json:"ordering"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	State         string          `json:"state"`
	Gateway       string          `json:"gateway"`
	TransactionID string          `json:"transaction_id"`
	Notes         []string        `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func FromCart(crt *cart.Cart) Cart {
	lineItems := []LineItem{}
	for _, li := range crt.LineItems {
		lineItems = append(lineItems, LineItem{
			ID:          li.ID,
			SKU:         li.SKU,
			Name:        li.Name,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Discount:    li.Discount,
			Total:       li.Total(),
			Ordering:    li.Ordering,
		})
	}
	recurringItems := []RecurringLineItem{}
	for _, li := range crt.RecurringItems {
		recurringItems = append(recurringItems, RecurringLineItem{
			ID:             li.ID,
			SKU:            li.SKU,
			Name:           li.Name,
			Description:    li.Description,
			Quantity:       li.Quantity,
			Duration:       li.Duration,
			DurationUnit:   string(li.DurationUnit),
			IsActive:       li.IsActive,
			RecurringPrice: li.RecurringPrice,
			Total:          li.Total(),
			Ordering:       li.Ordering,
		})
	}
	payments := []Payment{}
	for _, payment := range crt.Payments {
		payments = append(payments, Payment{
			ID:            payment.ID,
			Amount:        payment.Amount,
			State:         string(payment.State),
			Gateway:       payment.Gateway,
			TransactionID: payment.TransactionID,
			Notes:         payment.Notes,
			CreatedAt:     payment.CreatedAt,
			UpdatedAt:     payment.UpdatedAt,
		})
	}
	return Cart{
		ID:             crt.ID,
		State:          string(crt.State),
		Gateway:        crt.Gateway,
		SubTotal:       crt.SubTotal,
		Total:          crt.Total,
		Discount:       crt.Discount,
		Tax:            crt.Tax,
		ShippingCost:   crt.ShippingCost,
		BillTo:         crt.BillTo,
		ShipTo:         crt.ShipTo,
		SuccessURL:     crt.SuccessURL,
		FailureURL:     crt.FailureURL,
		LineItems:      lineItems,
		RecurringItems: recurringItems,
		Payments:       payments,
		CreatedAt:      crt.CreatedAt,
		UpdatedAt:      crt.UpdatedAt,
	}
}
