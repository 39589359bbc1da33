package cart

import "time"

// ActiveRecurringItem returns the first active recurring line item, or nil.
// Only one subscription per cart is supported; multi-subscription carts are
// a documented limitation, not a bug to silently fix.
func (c *Cart) ActiveRecurringItem() *RecurringLineItem {
	for _, li := range c.RecurringItems {
		if li.IsActive {
			return li
		}
	}
	return nil
}

// ExpirationOf computes the expiration/next billing date for a recurring
// item: last_paid_date + duration, where last_paid_date is the most recent
// PAID payment with a positive amount, recurring_start - duration when no
// payment exists yet, or the cart creation time as a final fallback.
func (c *Cart) ExpirationOf(li *RecurringLineItem) time.Time {
	lastPaid, ok := c.lastPaidDate()
	if !ok {
		if !li.RecurringStart.IsZero() {
			lastPaid = addDuration(li.RecurringStart, -li.Duration, li.DurationUnit)
		} else {
			lastPaid = c.CreatedAt
		}
	}
	return addDuration(lastPaid, li.Duration, li.DurationUnit)
}

// Expiration returns the latest expiration across recurring items. The
// second return is false when the cart has no recurring items.
func (c *Cart) Expiration() (time.Time, bool) {
	var latest time.Time
	found := false
	for _, li := range c.RecurringItems {
		if exp := c.ExpirationOf(li); !found || exp.After(latest) {
			latest = exp
			found = true
		}
	}
	return latest, found
}

// IsItemExpired reports whether the subscription has lapsed past its
// expiration plus a grace period. An explicit grace period wins over the
// cart's configured default; when neither is present the subscription is
// treated as never expiring, the caller must supply a grace period to get
// a determinate answer.
func (c *Cart) IsItemExpired(li *RecurringLineItem, grace *time.Duration) bool {
	switch {
	case grace != nil:
		return now().After(c.ExpirationOf(li).Add(*grace))
	case c.GracePeriod != nil:
		return now().After(c.ExpirationOf(li).Add(*c.GracePeriod))
	default:
		return false
	}
}

func (c *Cart) allRecurringExpired() bool {
	for _, li := range c.RecurringItems {
		if !c.IsItemExpired(li, nil) {
			return false
		}
	}
	return true
}

// CancelIfExpired moves a PENDCANCEL or RECURRING cart to CANCELLED once
// all of its recurring items have expired.
func (c *Cart) CancelIfExpired(grace *time.Duration) (*StateChanged, error) {
	if c.State != StatePendCancel && c.State != StateRecurring {
		return nil, nil
	}
	for _, li := range c.RecurringItems {
		if !c.IsItemExpired(li, grace) {
			return nil, nil
		}
	}
	return c.SetState(StateCancelled)
}

// DeactivateRecurring flips every recurring item inactive, returning true
// when any item actually changed.
func (c *Cart) DeactivateRecurring() bool {
	changed := false
	for _, li := range c.RecurringItems {
		if li.IsActive {
			li.IsActive = false
			changed = true
		}
	}
	return changed
}
