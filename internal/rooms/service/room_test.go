package service

import (
	"context"
	"errors"
	roomserrors "smartdorm/internal/rooms/errors"
	"smartdorm/internal/testutil"
	"smartdorm/internal/testutil/memstore"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/model"
	"smartdorm/pkg/validator"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

type countFunc func(ctx context.Context, number string) (int64, error)

func (f countFunc) CountByRoom(ctx context.Context, number string) (int64, error) {
	return f(ctx, number)
}

func newTestService(t *testing.T, refs ...ReferenceCounter) (RoomService, *memstore.Store) {
	t.Helper()
	cfg := testutil.NewConfig(testutil.NewClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))
	store := memstore.New()
	return NewRoomService(store.Rooms(), store, validator.New(cfg.Log), cfg, refs...), store
}

func TestCreate_DefaultsAndNormalizes(t *testing.T) {
	svc, store := newTestService(t)

	room := &model.Room{Number: " a-101 ", Size: "  large   studio ", Rent: 3000, Deposit: 6000}
	if err := svc.Create(context.Background(), room); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stored, ok := store.Room("A-101")
	if !ok {
		t.Fatal("room A-101 was not stored")
	}
	if stored.Status != model.RoomAvailable {
		t.Errorf("status = %q, want AVAILABLE", stored.Status)
	}
	if stored.Size != "large studio" {
		t.Errorf("size = %q, want %q", stored.Size, "large studio")
	}
}

func TestCreate_IgnoresClientStatus(t *testing.T) {
	svc, store := newTestService(t)

	for _, status := range []string{model.RoomLocked, "CLOSED"} {
		room := &model.Room{Number: "10" + status[:1], Rent: 3000, Status: status}
		if err := svc.Create(context.Background(), room); err != nil {
			t.Fatalf("Create(status %s) error = %v", status, err)
		}
		stored, _ := store.Room(room.Number)
		if stored.Status != model.RoomAvailable {
			t.Errorf("Create(status %s) stored %q, want AVAILABLE", status, stored.Status)
		}
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Create(ctx, &model.Room{Number: "101", Rent: 3000}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	err := svc.Create(ctx, &model.Room{Number: "101", Rent: 3500})
	if !apperrors.HasCode(err, apperrors.CodeConflict) || !errors.Is(err, roomserrors.ErrDuplicate) {
		t.Fatalf("second Create() error = %v, want conflict wrapping ErrDuplicate", err)
	}
}

func TestCreate_RejectsInvalidRoom(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		room *model.Room
	}{
		{"nil room", nil},
		{"bad number", &model.Room{Number: "room 1!", Rent: 100}},
		{"negative rent", &model.Room{Number: "102", Rent: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.room)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.HasCode(err, apperrors.CodeValidation) && !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
				t.Errorf("error = %v, want validation or invalid input", err)
			}
		})
	}
}

func TestLockUnlock_Idempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.PutRoom(model.Room{Number: "201", Status: model.RoomAvailable})

	for i := 0; i < 2; i++ {
		room, err := svc.Lock(ctx, "201")
		if err != nil {
			t.Fatalf("Lock() #%d error = %v", i+1, err)
		}
		if room.Status != model.RoomLocked {
			t.Fatalf("Lock() #%d status = %q", i+1, room.Status)
		}
	}
	for i := 0; i < 2; i++ {
		room, err := svc.Unlock(ctx, "201")
		if err != nil {
			t.Fatalf("Unlock() #%d error = %v", i+1, err)
		}
		if room.Status != model.RoomAvailable {
			t.Fatalf("Unlock() #%d status = %q", i+1, room.Status)
		}
	}
}

func TestLock_MissingRoom(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Lock(context.Background(), "404")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) || !errors.Is(err, roomserrors.ErrNotFound) {
		t.Fatalf("Lock() error = %v, want not found", err)
	}
}

func TestAcquire_OnlyFromAvailable(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	store.PutRoom(model.Room{Number: "301", Status: model.RoomAvailable})

	if _, err := svc.Acquire(ctx, "301"); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	_, err := svc.Acquire(ctx, "301")
	if !errors.Is(err, roomserrors.ErrUnavailable) {
		t.Fatalf("second Acquire() error = %v, want ErrUnavailable", err)
	}
	if room, _ := store.Room("301"); room.Status != model.RoomLocked {
		t.Errorf("status = %q, want LOCKED", room.Status)
	}
}

func TestDelete_RefusesReferencedRoom(t *testing.T) {
	refs := countFunc(func(_ context.Context, number string) (int64, error) {
		if number == "401" {
			return 2, nil
		}
		return 0, nil
	})
	svc, store := newTestService(t, refs)
	ctx := context.Background()
	store.PutRoom(model.Room{Number: "401", Status: model.RoomAvailable})
	store.PutRoom(model.Room{Number: "402", Status: model.RoomAvailable})

	err := svc.Delete(ctx, "401")
	if !apperrors.HasCode(err, apperrors.CodeConflict) || !errors.Is(err, roomserrors.ErrInUse) {
		t.Fatalf("Delete(401) error = %v, want conflict wrapping ErrInUse", err)
	}
	if _, ok := store.Room("401"); !ok {
		t.Error("referenced room was deleted")
	}

	if err := svc.Delete(ctx, "402"); err != nil {
		t.Fatalf("Delete(402) error = %v", err)
	}
	if _, ok := store.Room("402"); ok {
		t.Error("room 402 still exists")
	}
}

func TestDelete_ChecksReferencesInsideTransaction(t *testing.T) {
	var inTx bool
	refs := countFunc(func(ctx context.Context, _ string) (int64, error) {
		_, inTx = ctx.(mongo.SessionContext)
		return 0, nil
	})
	svc, store := newTestService(t, refs)
	store.PutRoom(model.Room{Number: "403", Status: model.RoomAvailable})

	if err := svc.Delete(context.Background(), "403"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !inTx {
		t.Error("references were counted outside the delete transaction")
	}
}

func TestDelete_RacingBookingLeavesNoOrphan(t *testing.T) {
	for i := 0; i < 20; i++ {
		cfg := testutil.NewConfig(testutil.NewClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))
		store := memstore.New()
		svc := NewRoomService(store.Rooms(), store, validator.New(cfg.Log), cfg, store.Bookings())
		store.PutRoom(model.Room{Number: "404", Status: model.RoomAvailable})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = svc.Delete(context.Background(), "404")
		}()
		go func() {
			defer wg.Done()
			_ = store.ExecuteTransaction(context.Background(), func(sessCtx mongo.SessionContext) error {
				if _, err := svc.Acquire(sessCtx, "404"); err != nil {
					return err
				}
				return store.Bookings().Create(sessCtx, &model.Booking{RoomNumber: "404", Approval: model.ApprovalPending})
			})
		}()
		wg.Wait()

		_, roomExists := store.Room("404")
		if bookings := store.BookingCount(); bookings > 0 && !roomExists {
			t.Fatalf("run %d: booking stored for a deleted room", i)
		}
	}
}

func TestUpdate_RequiresAField(t *testing.T) {
	svc, store := newTestService(t)
	store.PutRoom(model.Room{Number: "501", Rent: 3000, Status: model.RoomAvailable})

	_, err := svc.Update(context.Background(), "501", &model.RoomUpdate{})
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("Update() error = %v, want invalid input", err)
	}

	rent := 3200.0
	room, err := svc.Update(context.Background(), "501", &model.RoomUpdate{Rent: &rent})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if room.Rent != 3200 || room.Status != model.RoomAvailable {
		t.Errorf("room = %+v, want rent 3200 and status unchanged", room)
	}
}

func TestGetAll_FiltersByStatus(t *testing.T) {
	svc, store := newTestService(t)
	store.PutRoom(model.Room{Number: "601", Status: model.RoomAvailable})
	store.PutRoom(model.Room{Number: "602", Status: model.RoomLocked})
	store.PutRoom(model.Room{Number: "603", Status: model.RoomAvailable})

	rooms, total, err := svc.GetAll(context.Background(), "available", 10, 0)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if total != 2 || len(rooms) != 2 {
		t.Fatalf("GetAll() = %d rooms (total %d), want 2", len(rooms), total)
	}
	if rooms[0].Number != "601" || rooms[1].Number != "603" {
		t.Errorf("order = %s, %s", rooms[0].Number, rooms[1].Number)
	}

	if _, _, err := svc.GetAll(context.Background(), "closed", 10, 0); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("GetAll(closed) error = %v, want invalid input", err)
	}
}
