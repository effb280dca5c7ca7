package service

import (
	"context"
	"fmt"
	"smartdorm/internal/billing/calculator"
	"smartdorm/internal/billing/repository"
	billservice "smartdorm/internal/billing/service"
	"smartdorm/internal/notices"
	"smartdorm/pkg/config"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/model"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Summary reports the outcome of one overdue pass.
type Summary struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type OverdueService interface {
	// RunPass accrues fines on every unpaid bill past its due date. A bill
	// already accrued on now's calendar day is skipped.
	RunPass(ctx context.Context, now time.Time) (Summary, error)
	// RunForBill accrues the fine of one bill regardless of whether it was
	// already accrued today.
	RunForBill(ctx context.Context, billID string, now time.Time) (*model.Bill, error)
}

type overdueService struct {
	repo    repository.BillRepository
	notices *notices.Publisher
	cfg     *config.Config
}

func NewOverdueService(repo repository.BillRepository, notices *notices.Publisher, cfg *config.Config) OverdueService {
	return &overdueService{
		repo:    repo,
		notices: notices,
		cfg:     cfg,
	}
}

func (s *overdueService) RunPass(ctx context.Context, now time.Time) (Summary, error) {
	bills, err := s.repo.FindOverdue(ctx, now)
	if err != nil {
		s.cfg.Log.Error("Failed to load overdue bills", "error", err)
		return Summary{}, apperrors.Internal("Failed to load overdue bills", err)
	}

	var updated, skipped, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(max(s.cfg.OverdueWorkers, 1))
	for _, bill := range bills {
		g.Go(func() error {
			applied, err := s.accrue(ctx, bill, now, true)
			switch {
			case err != nil:
				failed.Add(1)
				s.cfg.Log.Error("Failed to accrue overdue fine", "bill_id", bill.ID, "room", bill.RoomNumber, "error", err)
			case applied:
				updated.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Scanned: len(bills),
		Updated: int(updated.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	s.cfg.Log.Info("Overdue pass finished",
		"scanned", summary.Scanned,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (s *overdueService) RunForBill(ctx context.Context, billID string, now time.Time) (*model.Bill, error) {
	if billID == "" {
		return nil, apperrors.InvalidInput("Bill ID cannot be empty")
	}

	bill, err := s.repo.FindByID(ctx, billID)
	if err != nil {
		return nil, billservice.MapError(err, billID)
	}
	if bill.Status != model.BillUnpaid {
		return nil, apperrors.InvalidState(fmt.Sprintf("Bill is %s, only unpaid bills accrue fines", bill.Status))
	}

	applied, err := s.accrue(ctx, bill, now, false)
	if err != nil {
		return nil, apperrors.Internal("Failed to accrue overdue fine", err)
	}
	if !applied {
		return bill, nil
	}

	bill, err = s.repo.FindByID(ctx, billID)
	if err != nil {
		return nil, billservice.MapError(err, billID)
	}
	s.cfg.Log.Info("Overdue fine accrued manually", "bill_id", billID, "days", bill.OverdueDays, "fine", bill.Fine)
	return bill, nil
}

// accrue recomputes the fine and total of bill from its base costs. With
// guarded set the write only lands if the bill was not accrued earlier on
// the same calendar day.
func (s *overdueService) accrue(ctx context.Context, bill *model.Bill, now time.Time, guarded bool) (bool, error) {
	loc := s.cfg.Loc()

	days := calculator.OverdueDays(bill.DueDate, now, loc)
	if days <= 0 {
		return false, nil
	}

	var notNotifiedSince *time.Time
	if guarded {
		if bill.LastOverdueNotifyAt != nil && calculator.SameDay(*bill.LastOverdueNotifyAt, now, loc) {
			return false, nil
		}
		startOfDay := calculator.StartOfDay(now, loc)
		notNotifiedSince = &startOfDay
	}

	fine := calculator.Fine(days, s.cfg.Rates.FinePerDay)
	update := model.OverdueUpdate{
		Days:       days,
		Fine:       fine,
		Total:      calculator.TotalWithFine(bill, fine),
		NotifiedAt: now.UTC(),
	}

	applied, err := s.repo.ApplyOverdue(ctx, bill.ID, update, notNotifiedSince)
	if err != nil || !applied {
		return false, err
	}

	accrued := *bill
	accrued.OverdueDays = update.Days
	accrued.Fine = update.Fine
	accrued.Total = update.Total
	s.notices.ToBoth(ctx, bill.CustomerID, notices.Message{
		Event:   notices.EventBillOverdue,
		Subject: fmt.Sprintf("Bill for room %s, %s is %d days overdue", bill.RoomNumber, notices.Month(bill.Period), days),
		Fields:  notices.BillFields(&accrued),
		Path:    "/bills/" + bill.ID,
	})
	return true, nil
}
