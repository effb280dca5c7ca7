package service

import (
	"context"
	"errors"
	"fmt"
	roomserrors "smartdorm/internal/rooms/errors"
	"smartdorm/internal/rooms/repository"
	"smartdorm/pkg/config"
	mongotx "smartdorm/pkg/db/mongo"
	apperrors "smartdorm/pkg/errors"
	"smartdorm/pkg/model"
	"smartdorm/pkg/sanitizer"
	"smartdorm/pkg/validator"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

// RoomService owns the room state machine. Every method accepts a session
// context so lock transitions can join a caller's transaction.
type RoomService interface {
	Create(ctx context.Context, room *model.Room) error
	GetByNumber(ctx context.Context, number string) (*model.Room, error)
	GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Room, int64, error)
	Update(ctx context.Context, number string, update *model.RoomUpdate) (*model.Room, error)
	Delete(ctx context.Context, number string) error
	Lock(ctx context.Context, number string) (*model.Room, error)
	Unlock(ctx context.Context, number string) (*model.Room, error)
	Acquire(ctx context.Context, number string) (*model.Room, error)
}

// ReferenceCounter reports how many records of another collection point at
// a room.
type ReferenceCounter interface {
	CountByRoom(ctx context.Context, number string) (int64, error)
}

type roomService struct {
	repo      repository.RoomRepository
	txManager mongotx.TransactionManager
	validator *validator.Validator
	refs      []ReferenceCounter
	cfg       *config.Config
}

func NewRoomService(
	repo repository.RoomRepository,
	txManager mongotx.TransactionManager,
	validator *validator.Validator,
	cfg *config.Config,
	refs ...ReferenceCounter,
) RoomService {
	return &roomService{
		repo:      repo,
		txManager: txManager,
		validator: validator,
		refs:      refs,
		cfg:       cfg,
	}
}

func (s *roomService) Create(ctx context.Context, room *model.Room) error {
	if room == nil {
		return apperrors.InvalidInput("Room cannot be empty")
	}
	room.Number = sanitizer.NormalizeRoomNumber(room.Number)
	room.Size = sanitizer.TrimAndNormalize(room.Size)
	// A new room has no booking, so it can only start AVAILABLE.
	room.Status = model.RoomAvailable
	if err := s.validator.Struct(room); err != nil {
		s.cfg.Log.Warn("Room validation failed", "number", room.Number, "error", err)
		return apperrors.Validation("Invalid room", validator.Details(err))
	}

	if err := s.repo.Create(ctx, room); err != nil {
		if errors.Is(err, roomserrors.ErrDuplicate) {
			return apperrors.Conflict(fmt.Sprintf("Room %s already exists", room.Number)).WithCause(err)
		}
		s.cfg.Log.Error("Failed to create room", "number", room.Number, "error", err)
		return apperrors.Internal("Failed to create room", err)
	}

	s.cfg.Log.Info("Room created", "number", room.Number, "rent", room.Rent, "deposit", room.Deposit)
	return nil
}

func (s *roomService) GetByNumber(ctx context.Context, number string) (*model.Room, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}

	room, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, s.mapError(err, number, "Failed to retrieve room")
	}
	return room, nil
}

func (s *roomService) GetAll(ctx context.Context, status string, limit int, offset int64) ([]*model.Room, int64, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && status != model.RoomAvailable && status != model.RoomLocked {
		return nil, 0, apperrors.InvalidInput("status must be AVAILABLE or LOCKED")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		rooms []*model.Room
		count int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = s.repo.Count(gctx, status)
		return err
	})
	g.Go(func() error {
		var err error
		rooms, err = s.repo.FindAll(gctx, status, limit, offset)
		return err
	})
	if err := g.Wait(); err != nil {
		s.cfg.Log.Error("Failed to list rooms", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve rooms", err)
	}

	return rooms, count, nil
}

func (s *roomService) Update(ctx context.Context, number string, update *model.RoomUpdate) (*model.Room, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	if update == nil || update.IsEmpty() {
		return nil, apperrors.InvalidInput("Update must change at least one field")
	}
	if update.Size != nil {
		size := sanitizer.TrimAndNormalize(*update.Size)
		update.Size = &size
	}
	if err := s.validator.Struct(update); err != nil {
		s.cfg.Log.Warn("Room update validation failed", "number", number, "error", err)
		return nil, apperrors.Validation("Invalid room update", validator.Details(err))
	}

	room, err := s.repo.Update(ctx, number, update)
	if err != nil {
		return nil, s.mapError(err, number, "Failed to update room")
	}

	s.cfg.Log.Info("Room updated", "number", number)
	return room, nil
}

// Delete removes a room nobody references. The reference count and the
// delete share one transaction; a booking racing the delete writes the same
// room document through Acquire, so one of the two aborts.
func (s *roomService) Delete(ctx context.Context, number string) error {
	number, err := normalizeNumber(number)
	if err != nil {
		return err
	}

	err = s.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		for _, ref := range s.refs {
			n, err := ref.CountByRoom(sessCtx, number)
			if err != nil {
				return apperrors.Internal("Failed to check room references", err)
			}
			if n > 0 {
				return apperrors.Conflict(fmt.Sprintf("Room %s is still referenced", number)).
					WithDetails(map[string]any{"number": number, "references": n}).
					WithCause(roomserrors.ErrInUse)
			}
		}

		if err := s.repo.Delete(sessCtx, number); err != nil {
			return s.mapError(err, number, "Failed to delete room")
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to delete room", "number", number, "error", err)
		return apperrors.Internal("Failed to delete room", err)
	}

	s.cfg.Log.Info("Room deleted", "number", number)
	return nil
}

// Lock marks the room LOCKED. Locking a locked room is a no-op.
func (s *roomService) Lock(ctx context.Context, number string) (*model.Room, error) {
	return s.setStatus(ctx, number, model.RoomLocked)
}

// Unlock marks the room AVAILABLE. Unlocking an available room is a no-op.
func (s *roomService) Unlock(ctx context.Context, number string) (*model.Room, error) {
	return s.setStatus(ctx, number, model.RoomAvailable)
}

// Acquire locks an AVAILABLE room and fails with ErrUnavailable otherwise.
// This is the only transition that detects a competing booking.
func (s *roomService) Acquire(ctx context.Context, number string) (*model.Room, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}

	room, err := s.repo.CompareAndSetStatus(ctx, number, model.RoomAvailable, model.RoomLocked)
	if err != nil {
		return nil, s.mapError(err, number, "Failed to lock room")
	}

	s.cfg.Log.Info("Room acquired", "number", number)
	return room, nil
}

func (s *roomService) setStatus(ctx context.Context, number, status string) (*model.Room, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}

	room, err := s.repo.SetStatus(ctx, number, status)
	if err != nil {
		return nil, s.mapError(err, number, "Failed to change room status")
	}

	s.cfg.Log.Info("Room status set", "number", number, "status", status)
	return room, nil
}

func (s *roomService) mapError(err error, number, message string) error {
	switch {
	case errors.Is(err, roomserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Room", number).WithCause(roomserrors.ErrNotFound)
	case errors.Is(err, roomserrors.ErrUnavailable):
		return apperrors.Conflict(fmt.Sprintf("Room %s is not available", number)).WithCause(roomserrors.ErrUnavailable)
	default:
		s.cfg.Log.Error(message, "number", number, "error", err)
		return apperrors.Internal(message, err)
	}
}

func normalizeNumber(number string) (string, error) {
	number = sanitizer.NormalizeRoomNumber(number)
	if number == "" {
		return "", apperrors.InvalidInput("Room number cannot be empty")
	}
	return number, nil
}
