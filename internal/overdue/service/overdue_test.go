package service

import (
	"context"
	"errors"
	"smartdorm/internal/notices"
	"smartdorm/internal/testutil"
	"smartdorm/internal/testutil/memstore"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/model"
	"sync"
	"testing"
	"time"
)

type fixture struct {
	svc      OverdueService
	store    *memstore.Store
	notifier *testutil.Notifier
	bill     model.Bill
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutil.NewConfig(testutil.NewClock(time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)))
	store := memstore.New()
	notifier := &testutil.Notifier{}

	customer := store.PutCustomer(model.Customer{ExternalID: "UA", Phone: "+66812345678"})
	bill := store.PutBill(januaryBill(customer.ID, "101", model.BillUnpaid))
	return &fixture{
		svc:      NewOverdueService(store.Bills(), notices.NewPublisher(notifier, store.Customers(), cfg), cfg),
		store:    store,
		notifier: notifier,
		bill:     bill,
	}
}

func januaryBill(customerID, room, status string) model.Bill {
	return model.Bill{
		RoomNumber:   room,
		CustomerID:   customerID,
		ExternalID:   "UA",
		Period:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Rent:         3000,
		ServiceFee:   50,
		WaterCost:    190,
		ElectricCost: 210,
		Total:        3450,
		DueDate:      time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
		Status:       status,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2025, 2, day, hour, 0, 0, 0, time.UTC)
}

func TestRunPass_AccruesOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.svc.RunPass(ctx, at(10, 9))
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if summary.Scanned != 1 || summary.Updated != 1 {
		t.Fatalf("summary = %+v, want 1 scanned and updated", summary)
	}
	bill, _ := f.store.Bill(f.bill.ID)
	if bill.OverdueDays != 5 || bill.Fine != 250 || bill.Total != 3700 {
		t.Fatalf("bill = %d days fine %v total %v, want 5/250/3700", bill.OverdueDays, bill.Fine, bill.Total)
	}
	if events := f.notifier.Events("UA"); len(events) != 1 || events[0] != notices.EventBillOverdue {
		t.Errorf("customer events = %v", events)
	}
	if events := f.notifier.Events("admin"); len(events) != 1 {
		t.Errorf("admin events = %v", events)
	}

	summary, err = f.svc.RunPass(ctx, at(10, 18))
	if err != nil {
		t.Fatalf("second RunPass() error = %v", err)
	}
	if summary.Updated != 0 || summary.Skipped != 1 {
		t.Errorf("same-day summary = %+v, want skipped", summary)
	}
	if again, _ := f.store.Bill(f.bill.ID); again.Fine != 250 || again.Total != 3700 {
		t.Errorf("same-day rerun changed the bill: fine %v total %v", again.Fine, again.Total)
	}
	if n := len(f.notifier.Sent()); n != 2 {
		t.Errorf("notifications = %d, want no repeat on the same day", n)
	}

	if _, err := f.svc.RunPass(ctx, at(11, 9)); err != nil {
		t.Fatalf("next-day RunPass() error = %v", err)
	}
	bill, _ = f.store.Bill(f.bill.ID)
	if bill.OverdueDays != 6 || bill.Fine != 300 || bill.Total != 3750 {
		t.Errorf("next day bill = %d days fine %v total %v, want 6/300/3750", bill.OverdueDays, bill.Fine, bill.Total)
	}
}

func TestRunPass_ConcurrentPassesAccrueOnce(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	summaries := make(chan Summary, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := f.svc.RunPass(context.Background(), at(10, 9))
			if err != nil {
				t.Errorf("RunPass() error = %v", err)
			}
			summaries <- summary
		}()
	}
	wg.Wait()
	close(summaries)

	var updated, skipped int
	for summary := range summaries {
		updated += summary.Updated
		skipped += summary.Skipped
	}
	if updated != 1 || skipped != 1 {
		t.Fatalf("updated = %d, skipped = %d, want 1 and 1", updated, skipped)
	}
	if bill, _ := f.store.Bill(f.bill.ID); bill.Fine != 250 || bill.Total != 3700 {
		t.Errorf("bill fine %v total %v, want 250/3700", bill.Fine, bill.Total)
	}
	if events := f.notifier.Events("UA"); len(events) != 1 {
		t.Errorf("customer events = %v, want one overdue notice", events)
	}
	if events := f.notifier.Events("admin"); len(events) != 1 {
		t.Errorf("admin events = %v, want one overdue notice", events)
	}
}

func TestRunPass_IgnoresPaidAndNotYetDue(t *testing.T) {
	f := newFixture(t)
	paid := f.store.PutBill(januaryBill(f.bill.CustomerID, "102", model.BillPaid))
	verifying := f.store.PutBill(januaryBill(f.bill.CustomerID, "103", model.BillVerifying))
	notDue := januaryBill(f.bill.CustomerID, "104", model.BillUnpaid)
	notDue.DueDate = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	notDue = f.store.PutBill(notDue)

	summary, err := f.svc.RunPass(context.Background(), at(10, 9))
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if summary.Scanned != 1 || summary.Updated != 1 {
		t.Errorf("summary = %+v, want only the unpaid overdue bill", summary)
	}
	for _, id := range []string{paid.ID, verifying.ID, notDue.ID} {
		if bill, _ := f.store.Bill(id); bill.Fine != 0 || bill.Total != 3450 {
			t.Errorf("bill %s (%s) was fined", bill.RoomNumber, bill.Status)
		}
	}
}

func TestRunPass_DueTodayIsNotOverdue(t *testing.T) {
	f := newFixture(t)

	summary, err := f.svc.RunPass(context.Background(), at(5, 9))
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if summary.Updated != 0 {
		t.Errorf("summary = %+v, a bill due today accrues nothing", summary)
	}
}

func TestRunPass_CountsFailures(t *testing.T) {
	f := newFixture(t)
	f.store.Fail("bills.ApplyOverdue", errors.New("primary stepped down"))

	summary, err := f.svc.RunPass(context.Background(), at(10, 9))
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if summary.Failed != 1 || summary.Updated != 0 {
		t.Errorf("summary = %+v, want one failure", summary)
	}

	f.store.Fail("bills.FindOverdue", errors.New("timeout"))
	if _, err := f.svc.RunPass(context.Background(), at(10, 9)); !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Errorf("RunPass() error = %v, want internal", err)
	}
}

func TestRunForBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RunPass(ctx, at(10, 9)); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	bill, err := f.svc.RunForBill(ctx, f.bill.ID, at(10, 12))
	if err != nil {
		t.Fatalf("RunForBill() error = %v", err)
	}
	if bill.Fine != 250 || bill.Total != 3700 {
		t.Errorf("bill = fine %v total %v, want 250/3700", bill.Fine, bill.Total)
	}
	if n := len(f.notifier.Events("UA")); n != 2 {
		t.Errorf("customer notifications = %d, manual runs always notify", n)
	}

	paid := f.store.PutBill(januaryBill(f.bill.CustomerID, "102", model.BillPaid))
	if _, err := f.svc.RunForBill(ctx, paid.ID, at(10, 12)); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Errorf("RunForBill(paid) error = %v, want invalid state", err)
	}
	if _, err := f.svc.RunForBill(ctx, "65a000000000000000000000", at(10, 12)); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("RunForBill(missing) error = %v, want not found", err)
	}
}
