package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/Alturino/hiicart/internal/cart"
)

// Store persists cart aggregates. A cart and its line items and payments
// are saved as one unit.
type Store interface {
	// FindCartByID loads the aggregate or reports errors.ErrUnknownCart.
	FindCartByID(c context.Context, id uuid.UUID) (*cart.Cart, error)
	// SaveCart upserts the cart, its line items and its payments.
	SaveCart(c context.Context, crt *cart.Cart) error
	// WithCartLock loads the cart under a per-cart serialization boundary,
	// runs fn against it, and persists the aggregate when fn returns nil.
	// Two concurrent notifications for the same cart therefore cannot both
	// observe "no existing payment" for one transaction id.
	WithCartLock(c context.Context, id uuid.UUID, fn func(c context.Context, crt *cart.Cart) error) error
	// ListCartIDsByState returns ids of carts currently in any of the
	// given states, used by the recurring billing sweep.
	ListCartIDsByState(c context.Context, states ...cart.State) ([]uuid.UUID, error)
}
