package memstore

import (
	"context"
	"fmt"
	billingerrors "smartdorm/internal/billing/errors"
	"smartdorm/internal/billing/repository"
	"smartdorm/pkg/model"
	"time"
)

type billRepo struct{ s *Store }

func (s *Store) Bills() repository.BillRepository { return billRepo{s} }

// PutBill stores bill, assigning an id when it has none.
func (s *Store) PutBill(bill model.Bill) model.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bill.ID == "" {
		bill.ID = newID()
	}
	s.bills[bill.ID] = bill
	return bill
}

func (s *Store) Bill(id string) (model.Bill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bill, ok := s.bills[id]
	return bill, ok
}

func (s *Store) BillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bills)
}

func (r billRepo) Create(_ context.Context, bill *model.Bill) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("bills.Create"); err != nil {
		return err
	}
	for _, b := range r.s.bills {
		if b.RoomNumber == bill.RoomNumber && b.Period.Equal(bill.Period) {
			return fmt.Errorf("%w: %s %s", billingerrors.ErrDuplicateBill, bill.RoomNumber, bill.Period.Format("2006-01"))
		}
	}
	bill.ID = newID()
	bill.CreatedAt = now()
	bill.UpdatedAt = bill.CreatedAt
	r.s.bills[bill.ID] = *bill
	return nil
}

func (r billRepo) FindByID(_ context.Context, id string) (*model.Bill, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bill, ok := r.s.bills[id]
	if !ok {
		return nil, billingerrors.ErrNotFound
	}
	return &bill, nil
}

func (r billRepo) FindByRoomAndPeriod(_ context.Context, roomNumber string, period time.Time) (*model.Bill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bills {
		if b.RoomNumber == roomNumber && b.Period.Equal(period) {
			return &b, nil
		}
	}
	return nil, billingerrors.ErrNotFound
}

func (r billRepo) FindLatestBefore(_ context.Context, roomNumber string, period time.Time) (*model.Bill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *model.Bill
	for _, b := range r.s.bills {
		if b.RoomNumber != roomNumber || !b.Period.Before(period) {
			continue
		}
		if latest == nil || b.Period.After(latest.Period) {
			b := b
			latest = &b
		}
	}
	if latest == nil {
		return nil, billingerrors.ErrNotFound
	}
	return latest, nil
}

func (r billRepo) FindAll(_ context.Context, filter model.BillFilter, limit int, offset int64) ([]*model.Bill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bills := r.filter(filter)
	sortSlice(bills, func(a, b *model.Bill) bool {
		if !a.Period.Equal(b.Period) {
			return a.Period.After(b.Period)
		}
		return a.RoomNumber < b.RoomNumber
	})
	return page(bills, limit, offset), nil
}

func (r billRepo) Count(_ context.Context, filter model.BillFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(filter))), nil
}

func (r billRepo) filter(f model.BillFilter) []*model.Bill {
	var out []*model.Bill
	for _, b := range r.s.bills {
		if f.Status != "" && b.Status != f.Status {
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
		if f.Period != nil && !b.Period.Equal(*f.Period) {
			continue
		}
		b := b
		out = append(out, &b)
	}
	return out
}

func (r billRepo) FindOverdue(_ context.Context, at time.Time) ([]*model.Bill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("bills.FindOverdue"); err != nil {
		return nil, err
	}
	var out []*model.Bill
	for _, b := range r.s.bills {
		if b.Status == model.BillUnpaid && b.DueDate.Before(at) {
			b := b
			out = append(out, &b)
		}
	}
	sortSlice(out, func(a, b *model.Bill) bool { return a.DueDate.Before(b.DueDate) })
	return out, nil
}

func (r billRepo) CountByRoom(ctx context.Context, roomNumber string) (int64, error) {
	return r.Count(ctx, model.BillFilter{RoomNumber: roomNumber})
}

func (r billRepo) TransitionStatus(_ context.Context, id string, from, to string, paidAt *time.Time) (*model.Bill, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("bills.TransitionStatus"); err != nil {
		return nil, err
	}
	bill, ok := r.s.bills[id]
	if !ok {
		return nil, billingerrors.ErrNotFound
	}
	if bill.Status != from {
		return nil, fmt.Errorf("%w: %s", billingerrors.ErrStateChanged, id)
	}
	bill.Status = to
	bill.PaidAt = paidAt
	bill.UpdatedAt = now()
	r.s.bills[id] = bill
	return &bill, nil
}

func (r billRepo) ApplyOverdue(_ context.Context, id string, update model.OverdueUpdate, notNotifiedSince *time.Time) (bool, error) {
	if !validID(id) {
		return false, fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("bills.ApplyOverdue"); err != nil {
		return false, err
	}
	bill, ok := r.s.bills[id]
	if !ok || bill.Status != model.BillUnpaid {
		return false, nil
	}
	if notNotifiedSince != nil && bill.LastOverdueNotifyAt != nil && !bill.LastOverdueNotifyAt.Before(*notNotifiedSince) {
		return false, nil
	}
	notifiedAt := update.NotifiedAt
	bill.OverdueDays = update.Days
	bill.Fine = update.Fine
	bill.Total = update.Total
	bill.LastOverdueNotifyAt = &notifiedAt
	bill.UpdatedAt = now()
	r.s.bills[id] = bill
	return true, nil
}

func (r billRepo) Delete(_ context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", billingerrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bills[id]; !ok {
		return billingerrors.ErrNotFound
	}
	delete(r.s.bills, id)
	return nil
}
