package memstore

import (
	"context"
	"fmt"
	paymentserrors "smartdorm/internal/payments/errors"
	"smartdorm/internal/payments/repository"
	"smartdorm/pkg/model"
	"time"
)

type paymentRepo struct{ s *Store }

func (s *Store) Payments() repository.PaymentRepository { return paymentRepo{s} }

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (r paymentRepo) Create(_ context.Context, payment *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("payments.Create"); err != nil {
		return err
	}
	payment.ID = newID()
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r paymentRepo) FindByBill(_ context.Context, billID string) ([]*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.byBill(billID, ""), nil
}

func (r paymentRepo) FindLatestByBill(_ context.Context, billID string, status string) (*model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payments := r.byBill(billID, status)
	if len(payments) == 0 {
		return nil, paymentserrors.ErrNotFound
	}
	return payments[0], nil
}

func (r paymentRepo) CountByBill(_ context.Context, billID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.byBill(billID, ""))), nil
}

func (r paymentRepo) byBill(billID, status string) []*model.Payment {
	out := []*model.Payment{}
	for _, p := range r.s.payments {
		if p.BillID != billID || (status != "" && p.Status != status) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sortSlice(out, func(a, b *model.Payment) bool {
		return newestFirst(a.SubmittedAt, b.SubmittedAt, a.ID, b.ID)
	})
	return out
}

func (r paymentRepo) Review(_ context.Context, id string, status string, at time.Time) (*model.Payment, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", paymentserrors.ErrInvalidID, id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	payment, ok := r.s.payments[id]
	if !ok || payment.Status != model.PaymentSubmitted {
		return nil, paymentserrors.ErrNotFound
	}
	payment.Status = status
	payment.ReviewedAt = &at
	r.s.payments[id] = payment
	return &payment, nil
}
