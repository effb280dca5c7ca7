package service

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "smartdorm/internal/bookings/errors"
	checkoutserrors "smartdorm/internal/checkouts/errors"
	"smartdorm/internal/checkouts/repository"
	"smartdorm/internal/notices"
	roomservice "smartdorm/internal/rooms/service"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/identity"
	"smartdorm/pkg/model"
	"smartdorm/pkg/notify"
	"smartdorm/pkg/validator"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type CheckoutService interface {
	Request(ctx context.Context, req *model.CheckoutRequest) (*model.Checkout, error)
	// Complete settles a checkout: the booking is closed, the room is
	// released and the deposit is returned as the refund.
	Complete(ctx context.Context, id string) (*model.Settlement, error)
	GetByID(ctx context.Context, id string) (*model.Checkout, error)
	GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Checkout, int64, error)
}

type BookingStore interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	MarkCheckedOut(ctx context.Context, id string, at time.Time) (*model.Booking, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

type Dependencies struct {
	Repo      repository.CheckoutRepository
	Bookings  BookingStore
	Rooms     roomservice.RoomService
	Auth      Authenticator
	TxManager mongotx.TransactionManager
	Notices   *notices.Publisher
	Validator *validator.Validator
	Config    *config.Config
}

type checkoutService struct {
	repo      repository.CheckoutRepository
	bookings  BookingStore
	rooms     roomservice.RoomService
	auth      Authenticator
	txManager mongotx.TransactionManager
	notices   *notices.Publisher
	validator *validator.Validator
	cfg       *config.Config
}

func NewCheckoutService(deps Dependencies) CheckoutService {
	return &checkoutService{
		repo:      deps.Repo,
		bookings:  deps.Bookings,
		rooms:     deps.Rooms,
		auth:      deps.Auth,
		txManager: deps.TxManager,
		notices:   deps.Notices,
		validator: deps.Validator,
		cfg:       deps.Config,
	}
}

func (s *checkoutService) Request(ctx context.Context, req *model.CheckoutRequest) (*model.Checkout, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Checkout request cannot be empty")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Validation("Invalid checkout request", validator.Details(err))
	}

	who, err := s.auth.Authenticate(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", req.BookingID).WithCause(err)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		default:
			return nil, apperrors.Internal("Failed to retrieve booking", err)
		}
	}
	if booking.ExternalID != who.Subject {
		return nil, apperrors.Forbidden("Booking belongs to another customer")
	}
	if booking.Approval != model.ApprovalApproved || booking.Checkin != model.CheckinArrived || booking.ActualCheckout != nil {
		return nil, apperrors.InvalidState("Only approved, checked-in bookings can request checkout").
			WithCause(checkoutserrors.ErrNotEligible)
	}

	if _, err := s.repo.FindPendingByBooking(ctx, booking.ID); err == nil {
		return nil, alreadyPending(booking.ID)
	} else if !errors.Is(err, checkoutserrors.ErrNotFound) {
		return nil, apperrors.Internal("Failed to check pending checkout", err)
	}

	checkout := &model.Checkout{
		BookingID:     booking.ID,
		RoomNumber:    booking.RoomNumber,
		CustomerID:    booking.CustomerID,
		ExternalID:    booking.ExternalID,
		RequestedDate: req.RequestedDate.UTC(),
		Status:        model.CheckoutRequested,
	}
	if err := s.repo.Create(ctx, checkout); err != nil {
		if errors.Is(err, checkoutserrors.ErrAlreadyPending) {
			return nil, alreadyPending(booking.ID)
		}
		s.cfg.Log.Error("Failed to create checkout", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to create checkout", err)
	}

	s.cfg.Log.Info("Checkout requested", "id", checkout.ID, "booking_id", booking.ID, "room", booking.RoomNumber)
	s.notices.ToAdmin(notices.Message{
		Event:   notices.EventCheckoutRequest,
		Subject: fmt.Sprintf("Checkout requested for room %s", checkout.RoomNumber),
		Fields: []notify.Field{
			{Label: "Room", Value: checkout.RoomNumber},
			{Label: "Requested date", Value: notices.Date(checkout.RequestedDate)},
		},
		Path: "/admin/checkouts/" + checkout.ID,
	})
	return checkout, nil
}

func (s *checkoutService) Complete(ctx context.Context, id string) (*model.Settlement, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Checkout ID cannot be empty")
	}

	now := s.cfg.Now()
	var settlement *model.Settlement
	err := s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		checkout, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return mapError(err, id)
		}
		if checkout.Status == model.CheckoutCompleted {
			return alreadyCompleted()
		}

		room, err := s.rooms.GetByNumber(sessCtx, checkout.RoomNumber)
		if err != nil {
			return err
		}

		completed, err := s.repo.Complete(sessCtx, id, now, room.Deposit)
		if err != nil {
			if errors.Is(err, checkoutserrors.ErrStateChanged) {
				return alreadyCompleted()
			}
			return mapError(err, id)
		}
		if _, err := s.bookings.MarkCheckedOut(sessCtx, checkout.BookingID, now); err != nil {
			switch {
			case errors.Is(err, bookingserrors.ErrStateChanged):
				return apperrors.InvalidState("Booking is no longer checked in").WithCause(checkoutserrors.ErrNotEligible)
			case errors.Is(err, bookingserrors.ErrNotFound):
				return apperrors.InvalidState("Booking of this checkout no longer exists").
					WithDetails(map[string]any{"booking_id": checkout.BookingID}).
					WithCause(checkoutserrors.ErrNotEligible)
			}
			return apperrors.Internal("Failed to close booking", err)
		}
		if _, err := s.rooms.Unlock(sessCtx, checkout.RoomNumber); err != nil {
			return err
		}

		settlement = &model.Settlement{
			Checkout:   completed,
			RoomNumber: room.Number,
			Refund:     room.Deposit,
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Failed to complete checkout", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to complete checkout", err)
	}

	s.cfg.Log.Info("Checkout completed", "id", id, "room", settlement.RoomNumber, "refund", settlement.Refund)
	s.notices.ToCustomer(ctx, settlement.Checkout.CustomerID, notices.Message{
		Event:   notices.EventCheckoutComplete,
		Subject: fmt.Sprintf("Checked out of room %s", settlement.RoomNumber),
		Fields: []notify.Field{
			{Label: "Room", Value: settlement.RoomNumber},
			{Label: "Checked out", Value: notices.Date(now)},
			{Label: "Deposit refund", Value: notices.Money(settlement.Refund)},
			{Label: "Refund", Value: "The deposit is transferred to your registered account within 7 days"},
		},
	})
	return settlement, nil
}

func (s *checkoutService) GetByID(ctx context.Context, id string) (*model.Checkout, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Checkout ID cannot be empty")
	}

	checkout, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapError(err, id)
	}
	return checkout, nil
}

func (s *checkoutService) GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Checkout, int64, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && status != model.CheckoutRequested && status != model.CheckoutCompleted {
		return nil, 0, apperrors.InvalidInput("status must be REQUESTED or COMPLETED")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		checkouts []*model.Checkout
		count     int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, status)
		return err
	})
	g.Go(func() error {
		var err error
		checkouts, err = s.repo.FindAll(gctx, status, limit, offset)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to list checkouts", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve checkouts", err)
	}

	return checkouts, count, nil
}

func mapError(err error, id string) error {
	switch {
	case errors.Is(err, checkoutserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Checkout", id).WithCause(checkoutserrors.ErrNotFound)
	case errors.Is(err, checkoutserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid checkout ID format")
	default:
		return apperrors.Internal("Failed to access checkout", err)
	}
}

func alreadyPending(bookingID string) error {
	return apperrors.Conflict("Booking already has a pending checkout").
		WithDetails(map[string]any{"booking_id": bookingID}).
		WithCause(checkoutserrors.ErrAlreadyPending)
}

func alreadyCompleted() error {
	return apperrors.InvalidState("Checkout is already completed").WithCause(checkoutserrors.ErrAlreadyCompleted)
}
