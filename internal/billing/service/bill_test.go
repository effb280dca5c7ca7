package service

import (
	"context"
	"errors"
	billingerrors "smartdorm/internal/billing/errors"
	customerservice "smartdorm/internal/customers/service"
	"smartdorm/internal/notices"
	roomservice "smartdorm/internal/rooms/service"
	"smartdorm/internal/testutil"
	"smartdorm/internal/testutil/memstore"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/config"
	"smartdorm/pkg/validator"
	"sync"
	"testing"
	"time"
)

type fixture struct {
	svc      BillService
	store    *memstore.Store
	notifier *testutil.Notifier
	customer model.Customer
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutil.NewConfig(testutil.NewClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)))
	store := memstore.New()
	v := validator.New(cfg.Log)
	notifier := &testutil.Notifier{}

	verifier := identity.NewStaticVerifier()
	verifier.Add("tok-a", identity.Identity{Subject: "UA"})

	svc := NewBillService(Dependencies{
		Repo:      store.Bills(),
		Rooms:     roomservice.NewRoomService(store.Rooms(), store, v, cfg),
		Occupants: store.Bookings(),
		Payments:  store.Payments(),
		Auth:      customerservice.NewCustomerService(store.Customers(), verifier, v, cfg),
		Notices:   notices.NewPublisher(notifier, store.Customers(), cfg),
		Validator: v,
		Config:    cfg,
	})

	customer := store.PutCustomer(model.Customer{ExternalID: "UA", FirstName: "Anong", Phone: "+66812345678"})
	store.PutRoom(model.Room{Number: "101", Rent: 3000, Deposit: 6000, Status: model.RoomLocked})
	store.PutBooking(model.Booking{
		RoomNumber: "101",
		CustomerID: customer.ID,
		ExternalID: customer.ExternalID,
		Approval:   model.ApprovalApproved,
		Checkin:    model.CheckinArrived,
	})
	return &fixture{svc: svc, store: store, notifier: notifier, customer: customer, cfg: cfg}
}

func month(year int, m time.Month) string {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func float(v float64) *float64 { return &v }

func TestCreate_CarriesReadingsForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	january, err := f.svc.Create(ctx, &model.BillRequest{
		RoomNumber:     "101",
		Period:         month(2025, time.January),
		WaterBefore:    float(100),
		WaterAfter:     110,
		ElectricBefore: float(200),
		ElectricAfter:  230,
	})
	if err != nil {
		t.Fatalf("Create(january) error = %v", err)
	}
	if january.Total != 3450 || january.BaselineSource != model.BaselineSupplied {
		t.Fatalf("january total = %v source = %s, want 3450 SUPPLIED", january.Total, january.BaselineSource)
	}
	if want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC); !january.Period.Equal(want) {
		t.Errorf("period = %v, want %v", january.Period, want)
	}
	if want := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC); !january.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", january.DueDate, want)
	}
	if january.Status != model.BillUnpaid || january.CustomerID != f.customer.ID {
		t.Errorf("bill = %s for %s", january.Status, january.CustomerID)
	}

	february, err := f.svc.Create(ctx, &model.BillRequest{
		RoomNumber:    "101",
		Period:        month(2025, time.February),
		WaterAfter:    125,
		ElectricAfter: 260,
	})
	if err != nil {
		t.Fatalf("Create(february) error = %v", err)
	}
	if february.WaterBefore != 110 || february.ElectricBefore != 230 {
		t.Errorf("february baseline = %v/%v, want 110/230", february.WaterBefore, february.ElectricBefore)
	}
	if february.WaterCost != 285 || february.ElectricCost != 210 || february.Total != 3545 {
		t.Errorf("february = water %v electric %v total %v, want 285/210/3545", february.WaterCost, february.ElectricCost, february.Total)
	}
	if february.BaselineSource != model.BaselinePreviousBill {
		t.Errorf("source = %s, want PREVIOUS_BILL", february.BaselineSource)
	}

	if events := f.notifier.Events("UA"); len(events) != 2 || events[0] != notices.EventBillIssued {
		t.Errorf("customer events = %v", events)
	}
	if events := f.notifier.Events("admin"); len(events) != 0 {
		t.Errorf("admin events = %v, bills only notify the tenant", events)
	}
}

func TestCreate_GapFallsBackToSupplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, &model.BillRequest{RoomNumber: "101", Period: month(2025, time.January), WaterAfter: 110, ElectricAfter: 230}); err != nil {
		t.Fatalf("Create(january) error = %v", err)
	}

	march, err := f.svc.Create(ctx, &model.BillRequest{
		RoomNumber:     "101",
		Period:         month(2025, time.March),
		WaterBefore:    float(120),
		WaterAfter:     130,
		ElectricBefore: float(250),
		ElectricAfter:  260,
	})
	if err != nil {
		t.Fatalf("Create(march) error = %v", err)
	}
	if march.BaselineSource != model.BaselineSuppliedGap {
		t.Errorf("source = %s, want SUPPLIED_GAP", march.BaselineSource)
	}
	if march.WaterBefore != 120 || march.WaterUnits != 10 {
		t.Errorf("march water = %v before, %v units", march.WaterBefore, march.WaterUnits)
	}
}

func TestCreate_ResolvesPeriodInDormitoryZone(t *testing.T) {
	f := newFixture(t)
	bangkok := time.FixedZone("ICT", 7*3600)
	f.cfg.TimeZone = "Asia/Bangkok"
	f.cfg.Location = bangkok

	bill, err := f.svc.Create(context.Background(), &model.BillRequest{
		RoomNumber:    "101",
		Period:        time.Date(2025, 2, 1, 0, 0, 0, 0, bangkok).Format(time.RFC3339),
		WaterAfter:    10,
		ElectricAfter: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC); !bill.Period.Equal(want) {
		t.Errorf("period = %v, want %v", bill.Period, want)
	}
	if want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC); !bill.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", bill.DueDate, want)
	}

	_, err = f.svc.Create(context.Background(), &model.BillRequest{RoomNumber: "101", Period: "2025-02"})
	if !errors.Is(err, billingerrors.ErrDuplicateBill) {
		t.Errorf("Create(2025-02) error = %v, want ErrDuplicateBill for the same month", err)
	}
	if n := f.store.BillCount(); n != 1 {
		t.Errorf("bill count = %d, want 1", n)
	}
}

func TestCreate_RejectsUnreadablePeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.BillRequest{RoomNumber: "101", Period: "Feb 2025"})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("Create() error = %v, want validation", err)
	}
}

func TestCreate_ConcurrentRequestsForOnePeriod(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), &model.BillRequest{
				RoomNumber:    "101",
				Period:        month(2025, time.January),
				WaterAfter:    10,
				ElectricAfter: 10,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, duplicate int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, billingerrors.ErrDuplicateBill):
			duplicate++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || duplicate != 1 {
		t.Fatalf("succeeded = %d, duplicate = %d, want 1 and 1", succeeded, duplicate)
	}
	if n := f.store.BillCount(); n != 1 {
		t.Errorf("bill count = %d, want 1", n)
	}
	if events := f.notifier.Events("UA"); len(events) != 1 {
		t.Errorf("customer events = %v, want one bill notice", events)
	}
}

func TestCreate_ClampsMeterRollback(t *testing.T) {
	f := newFixture(t)

	bill, err := f.svc.Create(context.Background(), &model.BillRequest{
		RoomNumber:     "101",
		Period:         month(2025, time.January),
		WaterBefore:    float(120),
		WaterAfter:     100,
		ElectricBefore: float(50),
		ElectricAfter:  60,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if bill.WaterUnits != 0 || bill.WaterCost != 0 || bill.Total != 3120 {
		t.Errorf("bill = water %v/%v total %v, want 0/0/3120", bill.WaterUnits, bill.WaterCost, bill.Total)
	}
}

func TestCreate_DuplicatePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := func() *model.BillRequest {
		return &model.BillRequest{RoomNumber: "101", Period: month(2025, time.January), WaterAfter: 10, ElectricAfter: 10}
	}

	if _, err := f.svc.Create(ctx, req()); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := f.svc.Create(ctx, req())
	if !apperrors.HasCode(err, apperrors.CodeConflict) || !errors.Is(err, billingerrors.ErrDuplicateBill) {
		t.Fatalf("second Create() error = %v, want ErrDuplicateBill", err)
	}
	if n := f.store.BillCount(); n != 1 {
		t.Errorf("bill count = %d, want 1", n)
	}
}

func TestCreate_RequiresApprovedOccupant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutRoom(model.Room{Number: "102", Rent: 2500, Status: model.RoomAvailable})
	f.store.PutRoom(model.Room{Number: "103", Rent: 2500, Status: model.RoomLocked})
	f.store.PutBooking(model.Booking{RoomNumber: "103", CustomerID: f.customer.ID, Approval: model.ApprovalPending})

	for _, room := range []string{"102", "103"} {
		_, err := f.svc.Create(ctx, &model.BillRequest{RoomNumber: room, Period: month(2025, time.January)})
		if !apperrors.HasCode(err, apperrors.CodeInvalidState) || !errors.Is(err, billingerrors.ErrNoOccupant) {
			t.Errorf("Create(%s) error = %v, want ErrNoOccupant", room, err)
		}
	}

	_, err := f.svc.Create(ctx, &model.BillRequest{RoomNumber: "999", Period: month(2025, time.January)})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("Create(999) error = %v, want not found", err)
	}
}

func TestCreate_RejectsNonFiniteReadings(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.BillRequest{RoomNumber: "101", Period: month(2025, time.January), WaterAfter: -5})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("Create() error = %v, want validation", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bill, err := f.svc.Create(ctx, &model.BillRequest{RoomNumber: "101", Period: month(2025, time.January), WaterAfter: 10, ElectricAfter: 10})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	paid := f.store.PutBill(model.Bill{RoomNumber: "101", Period: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), Status: model.BillPaid})
	err = f.svc.Delete(ctx, paid.ID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) || !errors.Is(err, billingerrors.ErrNotDeletable) {
		t.Fatalf("Delete(paid) error = %v, want ErrNotDeletable", err)
	}

	if err := f.svc.Delete(ctx, bill.ID); err != nil {
		t.Fatalf("Delete(unpaid) error = %v", err)
	}
	if _, ok := f.store.Bill(bill.ID); ok {
		t.Error("bill still stored")
	}
}

func TestGetAll_FiltersByPeriodAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, m := range []time.Month{time.January, time.February} {
		if _, err := f.svc.Create(ctx, &model.BillRequest{RoomNumber: "101", Period: month(2025, m), WaterAfter: 10, ElectricAfter: 10}); err != nil {
			t.Fatalf("Create(%s) error = %v", m, err)
		}
	}

	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	bills, total, err := f.svc.GetAll(ctx, model.BillFilter{Period: &feb, Status: "unpaid"}, 10, 0)
	if err != nil || total != 1 || len(bills) != 1 {
		t.Fatalf("GetAll() = %d (total %d), %v", len(bills), total, err)
	}
	if bills[0].Period.Month() != time.February {
		t.Errorf("period = %v", bills[0].Period)
	}

	mine, total, err := f.svc.GetMine(ctx, "tok-a", 10, 0)
	if err != nil || total != 2 {
		t.Fatalf("GetMine() = %d (total %d), %v", len(mine), total, err)
	}
	if !mine[0].Period.After(mine[1].Period) {
		t.Error("bills should be listed newest period first")
	}
}
