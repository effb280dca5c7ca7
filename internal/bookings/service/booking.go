package service

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "smartdorm/internal/bookings/errors"
	"smartdorm/internal/bookings/repository"
	customerservice "smartdorm/internal/customers/service"
	"smartdorm/internal/notices"
	roomserrors "smartdorm/internal/rooms/errors"
	roomservice "smartdorm/internal/rooms/service"
	"smartdorm/pkg/blob"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/model"
	"smartdorm/pkg/notify"
	"smartdorm/pkg/sanitizer"
	"smartdorm/pkg/validator"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type BookingService interface {
	Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	GetMine(ctx context.Context, token string, limit int, offset int64) ([]*model.Booking, int64, error)
	Approve(ctx context.Context, id string) (*model.Booking, error)
	Reject(ctx context.Context, id string) (*model.Booking, error)
	CheckIn(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
}

type Dependencies struct {
	Repo      repository.BookingRepository
	Rooms     roomservice.RoomService
	Customers customerservice.CustomerService
	Blobs     blob.Storage
	TxManager mongotx.TransactionManager
	Notices   *notices.Publisher
	Validator *validator.Validator
	Config    *config.Config
}

type bookingService struct {
	repo      repository.BookingRepository
	rooms     roomservice.RoomService
	customers customerservice.CustomerService
	blobs     blob.Storage
	txManager mongotx.TransactionManager
	notices   *notices.Publisher
	validator *validator.Validator
	cfg       *config.Config
}

func NewBookingService(deps Dependencies) BookingService {
	return &bookingService{
		repo:      deps.Repo,
		rooms:     deps.Rooms,
		customers: deps.Customers,
		blobs:     deps.Blobs,
		txManager: deps.TxManager,
		notices:   deps.Notices,
		validator: deps.Validator,
		cfg:       deps.Config,
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request cannot be empty")
	}
	req.RoomNumber = sanitizer.NormalizeRoomNumber(req.RoomNumber)
	if err := s.validator.Struct(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "room", req.RoomNumber, "error", err)
		return nil, apperrors.Validation("Invalid booking request", validator.Details(err))
	}

	who, err := s.customers.Authenticate(ctx, req.AccessToken)
	if err != nil {
		return nil, err
	}

	// Fail fast before uploading anything. The compare-and-set inside the
	// transaction is what actually decides a race.
	room, err := s.rooms.GetByNumber(ctx, req.RoomNumber)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomAvailable {
		return nil, roomUnavailable(room.Number)
	}

	slipURL, err := s.storeSlip(ctx, req.Slip, req.SlipContentType)
	if err != nil {
		return nil, err
	}

	var booking *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		customer, err := s.customers.Upsert(sessCtx, who, &req.Profile)
		if err != nil {
			return err
		}
		if _, err := s.rooms.Acquire(sessCtx, req.RoomNumber); err != nil {
			return err
		}

		booking = &model.Booking{
			RoomNumber:   req.RoomNumber,
			CustomerID:   customer.ID,
			ExternalID:   customer.ExternalID,
			CheckinDate:  req.CheckinDate.UTC(),
			CheckoutDate: req.CheckoutDate,
			SlipURL:      slipURL,
			Approval:     model.ApprovalPending,
			Checkin:      model.CheckinNotArrived,
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.discardSlip(slipURL)
		s.cfg.Log.Error("Failed to create booking", "room", req.RoomNumber, "subject", who.Subject, "error", err)
		return nil, asAppError(err, "Failed to create booking")
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"room", booking.RoomNumber,
		"customer_id", booking.CustomerID,
	)
	s.notices.ToBoth(ctx, booking.CustomerID, notices.Message{
		Event:   notices.EventBookingCreated,
		Subject: fmt.Sprintf("Booking request received for room %s", booking.RoomNumber),
		Fields:  bookingFields(booking),
		Path:    "/bookings/" + booking.ID,
	})
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	filter.Approval = strings.ToUpper(strings.TrimSpace(filter.Approval))
	switch filter.Approval {
	case "", model.ApprovalPending, model.ApprovalApproved, model.ApprovalRejected:
	default:
		return nil, 0, apperrors.InvalidInput("approval must be PENDING, APPROVED or REJECTED")
	}
	filter.RoomNumber = sanitizer.NormalizeRoomNumber(filter.RoomNumber)
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		bookings []*model.Booking
		count    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = s.repo.FindAll(gctx, filter, limit, offset)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}

	return bookings, count, nil
}

func (s *bookingService) GetMine(ctx context.Context, token string, limit int, offset int64) ([]*model.Booking, int64, error) {
	who, err := s.customers.Authenticate(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	return s.GetAll(ctx, model.BookingFilter{ExternalID: who.Subject}, limit, offset)
}

func (s *bookingService) Approve(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.decide(ctx, id, model.ApprovalApproved, s.rooms.Lock)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking approved", "id", id, "room", booking.RoomNumber)
	s.notices.ToBoth(ctx, booking.CustomerID, notices.Message{
		Event:   notices.EventBookingApproved,
		Subject: fmt.Sprintf("Booking for room %s approved", booking.RoomNumber),
		Fields:  bookingFields(booking),
		Path:    "/bookings/" + booking.ID,
	})
	return booking, nil
}

func (s *bookingService) Reject(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.decide(ctx, id, model.ApprovalRejected, s.rooms.Unlock)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking rejected", "id", id, "room", booking.RoomNumber)
	s.notices.ToBoth(ctx, booking.CustomerID, notices.Message{
		Event:   notices.EventBookingRejected,
		Subject: fmt.Sprintf("Booking for room %s rejected", booking.RoomNumber),
		Fields:  bookingFields(booking),
	})
	return booking, nil
}

// decide moves a PENDING booking to its final approval status and applies
// the matching room transition in the same transaction.
func (s *bookingService) decide(
	ctx context.Context,
	id string,
	to string,
	roomTransition func(context.Context, string) (*model.Room, error),
) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	var booking *model.Booking
	err := s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		booking, err = s.repo.TransitionApproval(sessCtx, id, model.ApprovalPending, to)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrStateChanged) {
				return apperrors.Conflict("Booking has already been decided").
					WithDetails(map[string]any{"id": id}).
					WithCause(bookingserrors.ErrAlreadyDecided)
			}
			return s.mapError(err, id, "Failed to update booking")
		}
		_, err = roomTransition(sessCtx, booking.RoomNumber)
		return err
	})
	if err != nil {
		return nil, asAppError(err, "Failed to update booking")
	}
	return booking, nil
}

func (s *bookingService) CheckIn(ctx context.Context, id string) (*model.Booking, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Approval != model.ApprovalApproved {
		return nil, apperrors.InvalidState("Booking must be approved before check-in").WithCause(bookingserrors.ErrNotApproved)
	}
	if existing.Checkin != model.CheckinNotArrived {
		return nil, apperrors.InvalidState("Booking is already checked in").WithCause(bookingserrors.ErrAlreadyCheckedIn)
	}

	booking, err := s.repo.MarkArrived(ctx, id, s.cfg.Now())
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStateChanged) {
			return nil, apperrors.Conflict("Booking changed during check-in, please retry").WithCause(err)
		}
		return nil, s.mapError(err, id, "Failed to check in booking")
	}

	s.cfg.Log.Info("Booking checked in", "id", id, "room", booking.RoomNumber)
	s.notices.ToBoth(ctx, booking.CustomerID, notices.Message{
		Event:   notices.EventBookingCheckedIn,
		Subject: fmt.Sprintf("Checked in to room %s", booking.RoomNumber),
		Fields:  bookingFields(booking),
	})
	return booking, nil
}

func (s *bookingService) Update(ctx context.Context, id string, update *model.BookingUpdate) (*model.Booking, error) {
	if update == nil || (update.CheckinDate == nil && update.CheckoutDate == nil) {
		return nil, apperrors.InvalidInput("Update must change at least one date")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	checkin := existing.CheckinDate
	if update.CheckinDate != nil {
		checkin = *update.CheckinDate
	}
	checkout := existing.CheckoutDate
	if update.CheckoutDate != nil {
		checkout = update.CheckoutDate
	}
	if checkout != nil && !checkout.After(checkin) {
		return nil, apperrors.Validation("Invalid booking dates", map[string]any{
			"checkout_date": "must be after checkin_date",
		}).WithCause(bookingserrors.ErrInvalidDates)
	}

	booking, err := s.repo.UpdateDates(ctx, id, update)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to update booking")
	}

	s.cfg.Log.Info("Booking updated", "id", id)
	return booking, nil
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	var deleted *model.Booking
	err := s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		booking, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return s.mapError(err, id, "Failed to delete booking")
		}
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return s.mapError(err, id, "Failed to delete booking")
		}
		if booking.IsActive() {
			if _, err := s.rooms.Unlock(sessCtx, booking.RoomNumber); err != nil {
				return err
			}
		}
		deleted = booking
		return nil
	})
	if err != nil {
		return asAppError(err, "Failed to delete booking")
	}

	s.discardSlip(deleted.SlipURL)
	s.cfg.Log.Info("Booking deleted", "id", id, "room", deleted.RoomNumber)
	return nil
}

func (s *bookingService) storeSlip(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if err := blob.Check(data, contentType); err != nil {
		return "", apperrors.Validation("Invalid slip", map[string]any{"slip": err.Error()}).WithCause(err)
	}

	url, err := s.blobs.Store(ctx, data, contentType)
	if err != nil {
		s.cfg.Log.Error("Failed to store booking slip", "error", err)
		return "", apperrors.Upstream("blob storage", err)
	}
	return url, nil
}

// discardSlip removes an uploaded slip that no booking references anymore.
func (s *bookingService) discardSlip(url string) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.blobs.Delete(ctx, url); err != nil {
		s.cfg.Log.Warn("Failed to delete booking slip", "url", url, "error", err)
	}
}

func (s *bookingService) mapError(err error, id, message string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id).WithCause(bookingserrors.ErrNotFound)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}

func roomUnavailable(number string) error {
	return apperrors.Conflict(fmt.Sprintf("Room %s is not available", number)).WithCause(roomserrors.ErrUnavailable)
}

func asAppError(err error, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal(message, err)
}

func bookingFields(b *model.Booking) []notify.Field {
	fields := []notify.Field{
		{Label: "Room", Value: b.RoomNumber},
		{Label: "Check-in", Value: notices.Date(b.CheckinDate)},
	}
	if b.CheckoutDate != nil {
		fields = append(fields, notify.Field{Label: "Check-out", Value: notices.Date(*b.CheckoutDate)})
	}
	return append(fields, notify.Field{Label: "Status", Value: b.Approval})
}
