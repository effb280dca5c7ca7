package service

import (
	"context"
	"errors"
	bookingserrors "smartdorm/internal/bookings/errors"
	customerservice "smartdorm/internal/customers/service"
	"smartdorm/internal/notices"
	roomserrors "smartdorm/internal/rooms/errors"
	roomservice "smartdorm/internal/rooms/service"
	"smartdorm/internal/testutil"
	"smartdorm/internal/testutil/memstore"
	"smartdorm/pkg/blob"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/validator"
	"sync"
	"testing"
	"time"
)

var slip = []byte("\x89PNG\r\n\x1a\nslip")

type fixture struct {
	svc      BookingService
	store    *memstore.Store
	blobs    *blob.MemoryStorage
	notifier *testutil.Notifier
	clock    *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC))
	cfg := testutil.NewConfig(clock)
	store := memstore.New()
	v := validator.New(cfg.Log)

	verifier := identity.NewStaticVerifier()
	verifier.Add("tok-a", identity.Identity{Subject: "UA", Name: "Anong"})
	verifier.Add("tok-b", identity.Identity{Subject: "UB", Name: "Boon"})

	notifier := &testutil.Notifier{}
	blobs := blob.NewMemoryStorage()
	svc := NewBookingService(Dependencies{
		Repo:      store.Bookings(),
		Rooms:     roomservice.NewRoomService(store.Rooms(), store, v, cfg),
		Customers: customerservice.NewCustomerService(store.Customers(), verifier, v, cfg),
		Blobs:     blobs,
		TxManager: store,
		Notices:   notices.NewPublisher(notifier, store.Customers(), cfg),
		Validator: v,
		Config:    cfg,
	})

	store.PutRoom(model.Room{Number: "101", Rent: 3000, Deposit: 6000, Status: model.RoomAvailable})
	return &fixture{svc: svc, store: store, blobs: blobs, notifier: notifier, clock: clock}
}

func request(token string) *model.BookingRequest {
	return &model.BookingRequest{
		AccessToken:     token,
		RoomNumber:      "101",
		CheckinDate:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Profile:         model.CustomerProfile{FirstName: "Anong", LastName: "Suk", Phone: "+66812345678"},
		Slip:            slip,
		SlipContentType: "image/png",
	}
}

func (f *fixture) roomStatus(t *testing.T) string {
	t.Helper()
	room, ok := f.store.Room("101")
	if !ok {
		t.Fatal("room 101 missing")
	}
	return room.Status
}

func TestCreate_LocksRoomAndNotifies(t *testing.T) {
	f := newFixture(t)

	booking, err := f.svc.Create(context.Background(), request("tok-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if booking.Approval != model.ApprovalPending || booking.Checkin != model.CheckinNotArrived {
		t.Errorf("booking = %s/%s, want PENDING/NOT_ARRIVED", booking.Approval, booking.Checkin)
	}
	if booking.ExternalID != "UA" || booking.CustomerID == "" {
		t.Errorf("booking customer = %q/%q", booking.CustomerID, booking.ExternalID)
	}
	if !f.blobs.Has(booking.SlipURL) {
		t.Errorf("slip %q not stored", booking.SlipURL)
	}
	if got := f.roomStatus(t); got != model.RoomLocked {
		t.Errorf("room status = %q, want LOCKED", got)
	}
	if events := f.notifier.Events("UA"); len(events) != 1 || events[0] != notices.EventBookingCreated {
		t.Errorf("customer events = %v", events)
	}
	if events := f.notifier.Events("admin"); len(events) != 1 || events[0] != notices.EventBookingCreated {
		t.Errorf("admin events = %v", events)
	}
}

func TestCreate_LockedRoom(t *testing.T) {
	f := newFixture(t)
	f.store.PutRoom(model.Room{Number: "101", Rent: 3000, Status: model.RoomLocked})

	_, err := f.svc.Create(context.Background(), request("tok-a"))
	if !apperrors.HasCode(err, apperrors.CodeConflict) || !errors.Is(err, roomserrors.ErrUnavailable) {
		t.Fatalf("Create() error = %v, want conflict wrapping ErrUnavailable", err)
	}
	if n := f.store.BookingCount(); n != 0 {
		t.Errorf("booking count = %d, want 0", n)
	}
	if f.blobs.Len() != 0 {
		t.Error("slip uploaded for an unavailable room")
	}
	if len(f.notifier.Sent()) != 0 {
		t.Error("notification sent for a failed booking")
	}
}

func TestCreate_ConcurrentRequestsForOneRoom(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, token := range []string{"tok-a", "tok-b"} {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), request(token))
			results <- err
		}(token)
	}
	wg.Wait()
	close(results)

	var succeeded, unavailable int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, roomserrors.ErrUnavailable):
			unavailable++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || unavailable != 1 {
		t.Fatalf("succeeded = %d, unavailable = %d, want 1 and 1", succeeded, unavailable)
	}
	if n := f.store.BookingCount(); n != 1 {
		t.Errorf("booking count = %d, want 1", n)
	}
	if f.blobs.Len() != 1 {
		t.Errorf("stored slips = %d, want only the winner's", f.blobs.Len())
	}
	if n := f.store.CustomerCount(); n != 1 {
		t.Errorf("customer count = %d, the loser's upsert should roll back", n)
	}
}

func TestCreate_RollsBackWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.store.Fail("bookings.Create", errors.New("disk full"))

	_, err := f.svc.Create(context.Background(), request("tok-a"))
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Fatalf("Create() error = %v, want internal", err)
	}
	if got := f.roomStatus(t); got != model.RoomAvailable {
		t.Errorf("room status = %q, want AVAILABLE after rollback", got)
	}
	if f.blobs.Len() != 0 {
		t.Error("slip left behind after failed booking")
	}
}

func TestCreate_SlipStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.blobs.FailStore = errors.New("bucket unreachable")

	_, err := f.svc.Create(context.Background(), request("tok-a"))
	if !apperrors.HasCode(err, apperrors.CodeUpstream) {
		t.Fatalf("Create() error = %v, want upstream", err)
	}
	if got := f.roomStatus(t); got != model.RoomAvailable {
		t.Errorf("room status = %q, want AVAILABLE", got)
	}
}

func TestCreate_RejectsBadSlipAndToken(t *testing.T) {
	f := newFixture(t)

	req := request("tok-a")
	req.SlipContentType = "text/plain"
	if _, err := f.svc.Create(context.Background(), req); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("Create(text slip) error = %v, want validation", err)
	}

	if _, err := f.svc.Create(context.Background(), request("tok-unknown")); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("Create(unknown token) error = %v, want unauthorized", err)
	}

	req = request("tok-a")
	before := req.CheckinDate.Add(-24 * time.Hour)
	req.CheckoutDate = &before
	if _, err := f.svc.Create(context.Background(), req); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("Create(checkout before checkin) error = %v, want validation", err)
	}
}

func TestApproveAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, request("tok-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	approved, err := f.svc.Approve(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Approval != model.ApprovalApproved {
		t.Errorf("approval = %q", approved.Approval)
	}
	if got := f.roomStatus(t); got != model.RoomLocked {
		t.Errorf("room status = %q, want LOCKED", got)
	}

	_, err = f.svc.Reject(ctx, booking.ID)
	if !apperrors.HasCode(err, apperrors.CodeConflict) || !errors.Is(err, bookingserrors.ErrAlreadyDecided) {
		t.Fatalf("Reject() after approval error = %v, want ErrAlreadyDecided", err)
	}
	if got := f.roomStatus(t); got != model.RoomLocked {
		t.Errorf("room status = %q after refused reject, want LOCKED", got)
	}
}

func TestReject_ReleasesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, request("tok-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rejected, err := f.svc.Reject(ctx, booking.ID)
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Approval != model.ApprovalRejected {
		t.Errorf("approval = %q", rejected.Approval)
	}
	if got := f.roomStatus(t); got != model.RoomAvailable {
		t.Errorf("room status = %q, want AVAILABLE", got)
	}

	if _, err := f.svc.Create(ctx, request("tok-b")); err != nil {
		t.Errorf("booking a released room failed: %v", err)
	}
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, request("tok-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = f.svc.CheckIn(ctx, booking.ID)
	if !apperrors.HasCode(err, apperrors.CodeInvalidState) || !errors.Is(err, bookingserrors.ErrNotApproved) {
		t.Fatalf("CheckIn() on pending error = %v, want ErrNotApproved", err)
	}

	if _, err := f.svc.Approve(ctx, booking.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	checkedIn, err := f.svc.CheckIn(ctx, booking.ID)
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if checkedIn.Checkin != model.CheckinArrived || checkedIn.ActualCheckin == nil {
		t.Errorf("booking = %+v, want ARRIVED with actual check-in", checkedIn)
	}
	if !checkedIn.ActualCheckin.Equal(f.clock.Now()) {
		t.Errorf("actual check-in = %v, want %v", checkedIn.ActualCheckin, f.clock.Now())
	}

	_, err = f.svc.CheckIn(ctx, booking.ID)
	if !errors.Is(err, bookingserrors.ErrAlreadyCheckedIn) {
		t.Errorf("second CheckIn() error = %v, want ErrAlreadyCheckedIn", err)
	}
}

func TestUpdate_ValidatesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, request("tok-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	early := booking.CheckinDate.Add(-48 * time.Hour)
	_, err = f.svc.Update(ctx, booking.ID, &model.BookingUpdate{CheckoutDate: &early})
	if !errors.Is(err, bookingserrors.ErrInvalidDates) {
		t.Fatalf("Update() error = %v, want ErrInvalidDates", err)
	}

	later := booking.CheckinDate.AddDate(0, 6, 0)
	updated, err := f.svc.Update(ctx, booking.ID, &model.BookingUpdate{CheckoutDate: &later})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.CheckoutDate == nil || !updated.CheckoutDate.Equal(later) {
		t.Errorf("checkout date = %v, want %v", updated.CheckoutDate, later)
	}
}

func TestDelete_ReleasesRoomAndSlip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, request("tok-a"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := f.svc.Delete(ctx, booking.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := f.roomStatus(t); got != model.RoomAvailable {
		t.Errorf("room status = %q, want AVAILABLE", got)
	}
	if f.blobs.Has(booking.SlipURL) {
		t.Error("slip still stored after delete")
	}

	err = f.svc.Delete(ctx, booking.ID)
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestGetAll_And_GetMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutRoom(model.Room{Number: "102", Rent: 3000, Status: model.RoomAvailable})

	if _, err := f.svc.Create(ctx, request("tok-a")); err != nil {
		t.Fatalf("Create(a) error = %v", err)
	}
	req := request("tok-b")
	req.RoomNumber = "102"
	if _, err := f.svc.Create(ctx, req); err != nil {
		t.Fatalf("Create(b) error = %v", err)
	}

	all, total, err := f.svc.GetAll(ctx, model.BookingFilter{Approval: "pending"}, 10, 0)
	if err != nil || total != 2 || len(all) != 2 {
		t.Fatalf("GetAll() = %d (total %d), %v", len(all), total, err)
	}
	mine, total, err := f.svc.GetMine(ctx, "tok-b", 10, 0)
	if err != nil || total != 1 || mine[0].RoomNumber != "102" {
		t.Fatalf("GetMine() = %v (total %d), %v", mine, total, err)
	}

	if _, _, err := f.svc.GetAll(ctx, model.BookingFilter{Approval: "maybe"}, 10, 0); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("GetAll(maybe) error = %v, want invalid input", err)
	}
}
