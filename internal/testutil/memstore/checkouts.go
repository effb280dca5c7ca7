package memstore

import (
	"context"
	"fmt"
	checkoutserrors "smartdorm/internal/checkouts/errors"
	"smartdorm/internal/checkouts/repository"
	"smartdorm/pkg/model"
	"time"
)

type checkoutRepo struct{ s *Store }

func (s *Store) Checkouts() repository.CheckoutRepository { return checkoutRepo{s} }

func (s *Store) Checkout(id string) (model.Checkout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	checkout, ok := s.checkouts[id]
	return checkout, ok
}

func (r checkoutRepo) Create(_ context.Context, checkout *model.Checkout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.checkouts {
		if c.BookingID == checkout.BookingID && c.Status == model.CheckoutRequested {
			return fmt.Errorf("%w: %s", checkoutserrors.ErrAlreadyPending, checkout.BookingID)
		}
	}
	checkout.ID = newID()
	checkout.CreatedAt = now()
	checkout.UpdatedAt = checkout.CreatedAt
	r.s.checkouts[checkout.ID] = *checkout
	return nil
}

func (r checkoutRepo) FindByID(_ context.Context, id string) (*model.Checkout, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", checkoutserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	checkout, ok := r.s.checkouts[id]
	if !ok {
		return nil, checkoutserrors.ErrNotFound
	}
	return &checkout, nil
}

func (r checkoutRepo) FindPendingByBooking(_ context.Context, bookingID string) (*model.Checkout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.checkouts {
		if c.BookingID == bookingID && c.Status == model.CheckoutRequested {
			return &c, nil
		}
	}
	return nil, checkoutserrors.ErrNotFound
}

func (r checkoutRepo) FindAll(_ context.Context, status string, limit int, offset int64) ([]*model.Checkout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	checkouts := r.filter(status)
	sortSlice(checkouts, func(a, b *model.Checkout) bool {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return page(checkouts, limit, offset), nil
}

func (r checkoutRepo) Count(_ context.Context, status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(status))), nil
}

func (r checkoutRepo) filter(status string) []*model.Checkout {
	var out []*model.Checkout
	for _, c := range r.s.checkouts {
		if status != "" && c.Status != status {
			continue
		}
		c := c
		out = append(out, &c)
	}
	return out
}

func (r checkoutRepo) Complete(_ context.Context, id string, at time.Time, refund float64) (*model.Checkout, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", checkoutserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	checkout, ok := r.s.checkouts[id]
	if !ok {
		return nil, checkoutserrors.ErrNotFound
	}
	if checkout.Status != model.CheckoutRequested {
		return nil, fmt.Errorf("%w: %s", checkoutserrors.ErrStateChanged, id)
	}
	checkout.Status = model.CheckoutCompleted
	checkout.ActualCheckout = &at
	checkout.Refund = refund
	checkout.UpdatedAt = now()
	r.s.checkouts[id] = checkout
	return &checkout, nil
}
