package service

import (
	"context"
	"errors"
	"fmt"
	"smartdorm/internal/billing/calculator"
	billingerrors "smartdorm/internal/billing/errors"
	"smartdorm/internal/billing/repository"
	bookingserrors "smartdorm/internal/bookings/errors"
	"smartdorm/internal/notices"
	roomservice "smartdorm/internal/rooms/service"
	"smartdorm/pkg/config"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/sanitizer"
	"smartdorm/pkg/validator"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type BillService interface {
	Create(ctx context.Context, req *model.BillRequest) (*model.Bill, error)
	GetByID(ctx context.Context, id string) (*model.Bill, error)
	GetAll(ctx context.Context, filter model.BillFilter, limit int, offset int64) ([]*model.Bill, int64, error)
	GetMine(ctx context.Context, token string, limit int, offset int64) ([]*model.Bill, int64, error)
	Delete(ctx context.Context, id string) error
}

// OccupantFinder returns the booking currently holding a room.
type OccupantFinder interface {
	FindActiveByRoom(ctx context.Context, roomNumber string) (*model.Booking, error)
}

// PaymentCounter reports how many payments were submitted against a bill.
type PaymentCounter interface {
	CountByBill(ctx context.Context, billID string) (int64, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

type Dependencies struct {
	Repo      repository.BillRepository
	Rooms     roomservice.RoomService
	Occupants OccupantFinder
	Payments  PaymentCounter
	Auth      Authenticator
	Notices   *notices.Publisher
	Validator *validator.Validator
	Config    *config.Config
}

type billService struct {
	repo      repository.BillRepository
	rooms     roomservice.RoomService
	occupants OccupantFinder
	payments  PaymentCounter
	auth      Authenticator
	notices   *notices.Publisher
	validator *validator.Validator
	cfg       *config.Config
}

func NewBillService(deps Dependencies) BillService {
	return &billService{
		repo:      deps.Repo,
		rooms:     deps.Rooms,
		occupants: deps.Occupants,
		payments:  deps.Payments,
		auth:      deps.Auth,
		notices:   deps.Notices,
		validator: deps.Validator,
		cfg:       deps.Config,
	}
}

func (s *billService) Create(ctx context.Context, req *model.BillRequest) (*model.Bill, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Bill request cannot be empty")
	}
	req.RoomNumber = sanitizer.NormalizeRoomNumber(req.RoomNumber)
	if err := s.validator.Struct(req); err != nil {
		s.cfg.Log.Warn("Bill validation failed", "room", req.RoomNumber, "error", err)
		return nil, apperrors.Validation("Invalid bill request", validator.Details(err))
	}
	period, err := calculator.ParsePeriod(req.Period, s.cfg.Loc())
	if err != nil {
		return nil, apperrors.Validation("Invalid bill request", map[string]any{"period": err.Error()})
	}

	room, err := s.rooms.GetByNumber(ctx, req.RoomNumber)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByRoomAndPeriod(ctx, room.Number, period); err == nil {
		return nil, duplicateBill(room.Number, period)
	} else if !errors.Is(err, billingerrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to check existing bill", err)
	}

	occupant, err := s.occupants.FindActiveByRoom(ctx, room.Number)
	if err != nil && !errors.Is(err, bookingserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to resolve room occupant", err)
	}
	if occupant == nil || occupant.Approval != model.ApprovalApproved {
		return nil, apperrors.InvalidState(fmt.Sprintf("Room %s has no approved occupant to bill", room.Number)).
			WithCause(billingerrors.ErrNoOccupant)
	}

	readings, source, err := s.baseline(ctx, room.Number, period, req)
	if err != nil {
		return nil, err
	}

	rates := s.cfg.Rates
	breakdown := calculator.Compute(readings, room.Rent, rates)
	bill := &model.Bill{
		RoomNumber:     room.Number,
		CustomerID:     occupant.CustomerID,
		ExternalID:     occupant.ExternalID,
		Period:         period,
		WaterBefore:    readings.WaterBefore,
		WaterAfter:     readings.WaterAfter,
		ElectricBefore: readings.ElectricBefore,
		ElectricAfter:  readings.ElectricAfter,
		WaterUnits:     breakdown.WaterUnits,
		ElectricUnits:  breakdown.ElectricUnits,
		WaterRate:      rates.WaterPerUnit,
		ElectricRate:   rates.ElectricPerUnit,
		Rent:           breakdown.Rent,
		ServiceFee:     breakdown.ServiceFee,
		WaterCost:      breakdown.WaterCost,
		ElectricCost:   breakdown.ElectricCost,
		Total:          breakdown.Total,
		DueDate:        calculator.DueDate(period, rates.DueDay),
		Status:         model.BillUnpaid,
		BaselineSource: source,
	}

	if err := s.repo.Create(ctx, bill); err != nil {
		if errors.Is(err, billingerrors.ErrDuplicateBill) {
			return nil, duplicateBill(room.Number, period)
		}
		s.cfg.Log.Error("Failed to create bill", "room", room.Number, "period", notices.Month(period), "error", err)
		return nil, apperrors.Internal("Failed to create bill", err)
	}

	s.cfg.Log.Info("Bill created",
		"id", bill.ID,
		"room", bill.RoomNumber,
		"period", notices.Month(period),
		"total", bill.Total,
		"baseline_source", source,
	)
	s.notices.ToCustomer(ctx, bill.CustomerID, notices.Message{
		Event:   notices.EventBillIssued,
		Subject: fmt.Sprintf("Bill for room %s, %s", bill.RoomNumber, notices.Month(period)),
		Fields:  notices.BillFields(bill),
		Path:    "/bills/" + bill.ID,
	})
	return bill, nil
}

// baseline resolves the starting meter readings. The previous period's bill
// wins; without it the supplied values (default 0) are used and a gap in
// the bill chain is flagged on the bill.
func (s *billService) baseline(ctx context.Context, room string, period time.Time, req *model.BillRequest) (calculator.Readings, string, error) {
	readings := calculator.Readings{
		WaterAfter:    req.WaterAfter,
		ElectricAfter: req.ElectricAfter,
	}

	previous, err := s.repo.FindByRoomAndPeriod(ctx, room, calculator.PreviousPeriod(period))
	switch {
	case err == nil:
		readings.WaterBefore = previous.WaterAfter
		readings.ElectricBefore = previous.ElectricAfter
		return readings, model.BaselinePreviousBill, nil
	case !errors.Is(err, billingerrors.ErrNotFound):
		return readings, "", apperrors.Internal("Failed to load previous bill", err)
	}

	if req.WaterBefore != nil {
		readings.WaterBefore = *req.WaterBefore
	}
	if req.ElectricBefore != nil {
		readings.ElectricBefore = *req.ElectricBefore
	}

	last, err := s.repo.FindLatestBefore(ctx, room, period)
	switch {
	case errors.Is(err, billingerrors.ErrNotFound):
		return readings, model.BaselineSupplied, nil
	case err != nil:
		return readings, "", apperrors.Internal("Failed to load previous bill", err)
	}

	s.cfg.Log.Warn("Billing period gap, using supplied baseline",
		"room", room,
		"period", notices.Month(period),
		"last_period", notices.Month(last.Period),
		"last_water", last.WaterAfter,
		"last_electric", last.ElectricAfter,
		"supplied_water", readings.WaterBefore,
		"supplied_electric", readings.ElectricBefore,
	)
	return readings, model.BaselineSuppliedGap, nil
}

func (s *billService) GetByID(ctx context.Context, id string) (*model.Bill, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Bill ID cannot be empty")
	}

	bill, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, MapError(err, id)
	}
	return bill, nil
}

func (s *billService) GetAll(ctx context.Context, filter model.BillFilter, limit int, offset int64) ([]*model.Bill, int64, error) {
	filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
	switch filter.Status {
	case "", model.BillUnpaid, model.BillVerifying, model.BillPaid:
	default:
		return nil, 0, apperrors.InvalidInput("status must be UNPAID, VERIFYING or PAID")
	}
	filter.RoomNumber = sanitizer.NormalizeRoomNumber(filter.RoomNumber)
	if filter.Period != nil {
		period := calculator.MonthKey(*filter.Period)
		filter.Period = &period
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		bills []*model.Bill
		count int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = s.repo.FindAll(gctx, filter, limit, offset)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to list bills", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bills", err)
	}

	return bills, count, nil
}

func (s *billService) GetMine(ctx context.Context, token string, limit int, offset int64) ([]*model.Bill, int64, error) {
	who, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	return s.GetAll(ctx, model.BillFilter{ExternalID: who.Subject}, limit, offset)
}

func (s *billService) Delete(ctx context.Context, id string) error {
	bill, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	payments, err := s.payments.CountByBill(ctx, id)
	if err != nil {
		return apperrors.Internal("Failed to check bill payments", err)
	}
	if bill.Status != model.BillUnpaid || payments > 0 {
		return apperrors.InvalidState("Only unpaid bills without payments can be deleted").
			WithCause(billingerrors.ErrNotDeletable)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return MapError(err, id)
	}

	s.cfg.Log.Info("Bill deleted", "id", id, "room", bill.RoomNumber, "period", notices.Month(bill.Period))
	return nil
}

// MapError translates bill repository errors for any service working with
// bills.
func MapError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, billingerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Bill", id).WithCause(billingerrors.ErrNotFound)
	case errors.Is(err, billingerrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid bill ID format")
	default:
		return apperrors.Internal("Failed to access bill", err)
	}
}

func duplicateBill(room string, period time.Time) error {
	return apperrors.Conflict(fmt.Sprintf("Room %s already has a bill for %s", room, notices.Month(period))).
		WithDetails(map[string]any{"room_number": room, "period": notices.Month(period)}).
		WithCause(billingerrors.ErrDuplicateBill)
}
