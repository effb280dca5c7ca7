package validator

import (
	"errors"
	"io"
	"math"
	"smartdorm/pkg/logger"
	"smartdorm/pkg/model"
	"testing"
	"time"
)

func newTestValidator() *Validator {
	return New(logger.New(logger.Config{Output: io.Discard}))
}

func TestStruct_Room(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		room      model.Room
		expectErr bool
		field     string
	}{
		{
			name: "valid room",
			room: model.Room{Number: "A-101", Rent: 3000, Deposit: 6000, Status: model.RoomAvailable},
		},
		{
			name:      "room number with spaces",
			room:      model.Room{Number: "A 101", Rent: 3000, Status: model.RoomAvailable},
			expectErr: true,
			field:     "number",
		},
		{
			name:      "negative rent",
			room:      model.Room{Number: "A101", Rent: -1, Status: model.RoomAvailable},
			expectErr: true,
			field:     "rent",
		},
		{
			name:      "infinite deposit",
			room:      model.Room{Number: "A101", Deposit: math.Inf(1), Status: model.RoomAvailable},
			expectErr: true,
			field:     "deposit",
		},
		{
			name:      "unknown status",
			room:      model.Room{Number: "A101", Status: "BROKEN"},
			expectErr: true,
			field:     "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&tt.room)
			if !tt.expectErr {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
			}
			if _, ok := Details(err)[tt.field]; !ok {
				t.Errorf("expected error on field %q, got %v", tt.field, verrs)
			}
		})
	}
}

func TestStruct_BillRequestRejectsNaN(t *testing.T) {
	v := newTestValidator()
	nan := math.NaN()

	err := v.Struct(&model.BillRequest{
		RoomNumber:    "A101",
		Period:        "2025-01",
		WaterAfter:    10,
		ElectricAfter: 10,
		WaterBefore:   &nan,
	})
	if _, ok := Details(err)["water_before"]; !ok {
		t.Fatalf("expected water_before error, got %v", err)
	}
}

func TestStruct_BookingRequestDates(t *testing.T) {
	v := newTestValidator()
	checkin := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	before := checkin.AddDate(0, 0, -1)

	err := v.Struct(&model.BookingRequest{
		AccessToken:  "token",
		RoomNumber:   "A101",
		CheckinDate:  checkin,
		CheckoutDate: &before,
		Profile: model.CustomerProfile{
			FirstName: "Somchai",
			LastName:  "Jaidee",
			Phone:     "+66812345678",
		},
	})
	if _, ok := Details(err)["checkout_date"]; !ok {
		t.Fatalf("expected checkout_date error, got %v", err)
	}
}

func TestDetails_NonValidationError(t *testing.T) {
	if Details(errors.New("boom")) != nil {
		t.Error("expected nil details for plain errors")
	}
}
