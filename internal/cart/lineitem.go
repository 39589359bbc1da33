package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DurationUnit string

const (
	UnitDay   DurationUnit = "DAY"
	UnitMonth DurationUnit = "MONTH"
)

// LineItem is a single one-time purchase within a cart.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	CartID      uuid.UUID       `json:"cart_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Ordering    int             `json:"ordering"`
}

func (li *LineItem) SubTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

func (li *LineItem) Total() decimal.Decimal {
	return li.SubTotal().Sub(li.Discount)
}

func (li *LineItem) clone(cartID uuid.UUID) *LineItem {
	dupe := *li
	dupe.ID = uuid.New()
	dupe.CartID = cartID
	return &dupe
}

// RecurringLineItem represents a subscription within a cart.
//
// To make a trial, put the trial price into a companion LineItem and mark
// this item Trial=true with the trial length and times. PaymentToken is the
// opaque subscription handle the gateway hands back on activation.
type RecurringLineItem struct {
	ID                uuid.UUID       `json:"id"`
	CartID            uuid.UUID       `json:"cart_id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Quantity          int64           `json:"quantity"`
	Discount          decimal.Decimal `json:"discount"`
	Duration          int             `json:"duration"`
	DurationUnit      DurationUnit    `json:"duration_unit"`
	IsActive          bool            `json:"is_active"`
	PaymentToken      string          `json:"payment_token"`
	RecurringPrice    decimal.Decimal `json:"recurring_price"`
	RecurringShipping decimal.Decimal `json:"recurring_shipping"`
	// RecurringTimes caps the number of billing cycles, 0 means unlimited.
	RecurringTimes int `json:"recurring_times"`
	// RecurringStart allows a delayed start to the subscription.
	RecurringStart time.Time       `json:"recurring_start"`
	Trial          bool            `json:"trial"`
	TrialPrice     decimal.Decimal `json:"trial_price"`
	TrialLength    int             `json:"trial_length"`
	TrialTimes     int             `json:"trial_times"`
	Ordering       int             `json:"ordering"`
}

func (li *RecurringLineItem) SubTotal() decimal.Decimal {
	return li.RecurringPrice.Mul(decimal.NewFromInt(li.Quantity))
}

func (li *RecurringLineItem) Total() decimal.Decimal {
	return li.SubTotal().Sub(li.Discount).Add(li.RecurringShipping)
}

func (li *RecurringLineItem) clone(cartID uuid.UUID) *RecurringLineItem {
	dupe := *li
	dupe.ID = uuid.New()
	dupe.CartID = cartID
	return &dupe
}

// addDuration advances t by one billing cycle. Month arithmetic is
// calendar-aware and clamps to the last day of a shorter target month
// (Jan 31 + 1 month is Feb 28, not Mar 3).
func addDuration(t time.Time, duration int, unit DurationUnit) time.Time {
	if unit == UnitDay {
		return t.AddDate(0, 0, duration)
	}
	year, month, day := t.Date()
	month += time.Month(duration)
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
