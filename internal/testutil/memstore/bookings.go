package memstore

import (
	"context"
	"fmt"
	bookingserrors "smartdorm/internal/bookings/errors"
	"smartdorm/internal/bookings/repository"
	"smartdorm/pkg/model"
	"time"
)

type bookingRepo struct{ s *Store }

func (s *Store) Bookings() repository.BookingRepository { return bookingRepo{s} }

// PutBooking stores booking, assigning an id when it has none.
func (s *Store) PutBooking(booking model.Booking) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.ID == "" {
		booking.ID = newID()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now()
	}
	s.bookings[booking.ID] = booking
	return booking
}

func (s *Store) Booking(id string) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[id]
	return booking, ok
}

func (s *Store) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (r bookingRepo) Create(_ context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("bookings.Create"); err != nil {
		return err
	}
	booking.ID = newID()
	booking.CreatedAt = now()
	booking.UpdatedAt = booking.CreatedAt
	r.s.bookings[booking.ID] = *booking
	return nil
}

func (r bookingRepo) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booking, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &booking, nil
}

func (r bookingRepo) FindAll(_ context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bookings := r.filter(filter)
	sortSlice(bookings, func(a, b *model.Booking) bool {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return page(bookings, limit, offset), nil
}

func (r bookingRepo) Count(_ context.Context, filter model.BookingFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(filter))), nil
}

func (r bookingRepo) filter(f model.BookingFilter) []*model.Booking {
	var out []*model.Booking
	for _, b := range r.s.bookings {
		if f.Approval != "" && b.Approval != f.Approval {
			continue
		}
		if f.RoomNumber != "" && b.RoomNumber != f.RoomNumber {
			continue
		}
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		if f.ExternalID != "" && b.ExternalID != f.ExternalID {
			continue
		}
		b := b
		out = append(out, &b)
	}
	return out
}

func (r bookingRepo) FindActiveByRoom(_ context.Context, roomNumber string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var active *model.Booking
	for _, b := range r.filter(model.BookingFilter{RoomNumber: roomNumber}) {
		if !b.IsActive() {
			continue
		}
		if active == nil || newestFirst(b.CreatedAt, active.CreatedAt, b.ID, active.ID) {
			active = b
		}
	}
	if active == nil {
		return nil, bookingserrors.ErrNotFound
	}
	return active, nil
}

func (r bookingRepo) CountByRoom(ctx context.Context, roomNumber string) (int64, error) {
	return r.Count(ctx, model.BookingFilter{RoomNumber: roomNumber})
}

func (r bookingRepo) TransitionApproval(_ context.Context, id string, from, to string) (*model.Booking, error) {
	return r.conditionalSet(id, func(b *model.Booking) bool {
		return b.Approval == from
	}, func(b *model.Booking) {
		b.Approval = to
	})
}

func (r bookingRepo) MarkArrived(_ context.Context, id string, at time.Time) (*model.Booking, error) {
	return r.conditionalSet(id, func(b *model.Booking) bool {
		return b.Approval == model.ApprovalApproved && b.Checkin == model.CheckinNotArrived
	}, func(b *model.Booking) {
		b.Checkin = model.CheckinArrived
		b.ActualCheckin = &at
	})
}

func (r bookingRepo) MarkCheckedOut(_ context.Context, id string, at time.Time) (*model.Booking, error) {
	return r.conditionalSet(id, func(b *model.Booking) bool {
		return b.Approval == model.ApprovalApproved && b.ActualCheckout == nil
	}, func(b *model.Booking) {
		b.ActualCheckout = &at
	})
}

func (r bookingRepo) UpdateDates(_ context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	return r.conditionalSet(id, func(*model.Booking) bool { return true }, func(b *model.Booking) {
		if update.CheckinDate != nil {
			b.CheckinDate = *update.CheckinDate
		}
		if update.CheckoutDate != nil {
			b.CheckoutDate = update.CheckoutDate
		}
	})
}

func (r bookingRepo) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	delete(r.s.bookings, id)
	return nil
}

func (r bookingRepo) conditionalSet(id string, guard func(*model.Booking) bool, set func(*model.Booking)) (*model.Booking, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	booking, ok := r.s.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if !guard(&booking) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrStateChanged, id)
	}
	set(&booking)
	booking.UpdatedAt = now()
	r.s.bookings[id] = booking
	return &booking, nil
}
