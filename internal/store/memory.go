package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Alturino/hiicart/internal/cart"
	"github.com/Alturino/hiicart/internal/errors"
)

// MemoryStore keeps cart aggregates in process memory with a mutex per
// cart standing in for the database's row lock. It backs tests and the
// comp-only development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[uuid.UUID]*cart.Cart
	locks map[uuid.UUID]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: map[uuid.UUID]*cart.Cart{},
		locks: map[uuid.UUID]*sync.Mutex{},
	}
}

func (s *MemoryStore) FindCartByID(c context.Context, id uuid.UUID) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	crt, ok := s.carts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownCart, id)
	}
	return copyCart(crt), nil
}

func (s *MemoryStore) SaveCart(c context.Context, crt *cart.Cart) error {
	crt.Recalc()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[crt.ID] = copyCart(crt)
	if _, ok := s.locks[crt.ID]; !ok {
		s.locks[crt.ID] = &sync.Mutex{}
	}
	return nil
}

func (s *MemoryStore) WithCartLock(
	c context.Context,
	id uuid.UUID,
	fn func(c context.Context, crt *cart.Cart) error,
) error {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		if _, found := s.carts[id]; !found {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", errors.ErrUnknownCart, id)
		}
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	crt, err := s.FindCartByID(c, id)
	if err != nil {
		return err
	}
	if err := fn(c, crt); err != nil {
		return err
	}
	return s.SaveCart(c, crt)
}

func (s *MemoryStore) ListCartIDsByState(
	c context.Context,
	states ...cart.State,
) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []uuid.UUID{}
	for id, crt := range s.carts {
		for _, state := range states {
			if crt.State == state {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func copyCart(crt *cart.Cart) *cart.Cart {
	dupe := *crt
	if crt.LastResponse != nil {
		response := *crt.LastResponse
		dupe.LastResponse = &response
	}
	dupe.LineItems = make([]*cart.LineItem, 0, len(crt.LineItems))
	for _, li := range crt.LineItems {
		item := *li
		dupe.LineItems = append(dupe.LineItems, &item)
	}
	dupe.RecurringItems = make([]*cart.RecurringLineItem, 0, len(crt.RecurringItems))
	for _, li := range crt.RecurringItems {
		item := *li
		dupe.RecurringItems = append(dupe.RecurringItems, &item)
	}
	dupe.Payments = make([]*cart.Payment, 0, len(crt.Payments))
	for _, p := range crt.Payments {
		payment := *p
		payment.Notes = append([]string(nil), p.Notes...)
		dupe.Payments = append(dupe.Payments, &payment)
	}
	return &dupe
}
