package request

import (
	"github.com/shopspring/decimal"
)

type CreateCart struct {
	LineItems      []LineItem          `validate:"dive"           json:"line_items"`
	RecurringItems []RecurringLineItem `validate:"dive"           json:"recurring_items"`
	BillTo         ContactInfo         `                          json:"bill_to"`
	ShipTo         ContactInfo         `                          json:"ship_to"`
	SuccessURL     string              `validate:"omitempty,url"  json:"success_url"`
	FailureURL     string              `validate:"omitempty,url"  json:"failure_url"`
	Discount       decimal.Decimal     `                          json:"discount"`
	Tax            decimal.Decimal     `                          json:"tax"`
	ShippingCost   decimal.Decimal     `                          json:"shipping_cost"`
}

type LineItem struct {
	SKU         string          `validate:"required"      json:"sku"`
	Name        string          `validate:"required"      json:"name"`
	Description string          `                         json:"description"`
	Quantity    int64           `validate:"required,gte=1" json:"quantity"`
	UnitPrice   decimal.Decimal `validate:"required"      json:"unit_price"`
	Discount    decimal.Decimal `                         json:"discount"`
	Ordering    int             `                         json:"ordering"`
}

type RecurringLineItem struct {
	SKU               string          `validate:"required"              json:"sku"`
	Name              string          `validate:"required"              json:"name"`
	Description       string          `                                 json:"description"`
	Quantity          int64           `validate:"required,gte=1"        json:"quantity"`
	Discount          decimal.Decimal `                                 json:"discount"`
	Duration          int             `validate:"required,gte=1"        json:"duration"`
	DurationUnit      string          `validate:"oneof=DAY MONTH"       json:"duration_unit"`
	RecurringPrice    decimal.Decimal `validate:"required"              json:"recurring_price"`
	RecurringShipping decimal.Decimal `                                 json:"recurring_shipping"`
	RecurringTimes    int             `validate:"gte=0"                 json:"recurring_times"`
	Trial             bool            `                                 json:"trial"`
	TrialPrice        decimal.Decimal `                                 json:"trial_price"`
	TrialLength       int             `validate:"gte=0"                 json:"trial_length"`
	TrialTimes        int             `validate:"gte=0"                 json:"trial_times"`
	Ordering          int             `                                 json:"ordering"`
}

type ContactInfo struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `validate:"omitempty,email" json:"email"`
	Phone      string `json:"phone"`
	Street1    string `json:"street1"`
	Street2    string `json:"street2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type SubmitCart struct {
	Gateway string `validate:"required" json:"gateway"`
}

type CancelRecurring struct {
	SkipPendCancel bool `json:"skip_pendcancel"`
}
