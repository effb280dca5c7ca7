package memstore

import (
	"context"
	"fmt"
	roomserrors "smartdorm/internal/rooms/errors"
	"smartdorm/internal/rooms/repository"
	"smartdorm/pkg/model"
)

type roomRepo struct{ s *Store }

func (s *Store) Rooms() repository.RoomRepository { return roomRepo{s} }

// PutRoom stores room as is, replacing any room with the same number.
func (s *Store) PutRoom(room model.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Number] = room
}

func (s *Store) Room(number string) (model.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[number]
	return room, ok
}

func (r roomRepo) Create(_ context.Context, room *model.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("rooms.Create"); err != nil {
		return err
	}
	if _, ok := r.s.rooms[room.Number]; ok {
		return fmt.Errorf("%w: %s", roomserrors.ErrDuplicate, room.Number)
	}
	room.CreatedAt = now()
	room.UpdatedAt = room.CreatedAt
	r.s.rooms[room.Number] = *room
	return nil
}

func (r roomRepo) FindByNumber(_ context.Context, number string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("rooms.FindByNumber"); err != nil {
		return nil, err
	}
	room, ok := r.s.rooms[number]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	return &room, nil
}

func (r roomRepo) FindAll(_ context.Context, status string, limit int, offset int64) ([]*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rooms := r.filter(status)
	sortSlice(rooms, func(a, b *model.Room) bool { return a.Number < b.Number })
	return page(rooms, limit, offset), nil
}

func (r roomRepo) Count(_ context.Context, status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(status))), nil
}

func (r roomRepo) filter(status string) []*model.Room {
	var out []*model.Room
	for _, room := range r.s.rooms {
		if status != "" && room.Status != status {
			continue
		}
		room := room
		out = append(out, &room)
	}
	return out
}

func (r roomRepo) Update(_ context.Context, number string, update *model.RoomUpdate) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[number]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	if update.Size != nil {
		room.Size = *update.Size
	}
	if update.Rent != nil {
		room.Rent = *update.Rent
	}
	if update.Deposit != nil {
		room.Deposit = *update.Deposit
	}
	if update.BookingFee != nil {
		room.BookingFee = *update.BookingFee
	}
	room.UpdatedAt = now()
	r.s.rooms[number] = room
	return &room, nil
}

func (r roomRepo) Delete(_ context.Context, number string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[number]; !ok {
		return roomserrors.ErrNotFound
	}
	delete(r.s.rooms, number)
	return nil
}

func (r roomRepo) SetStatus(_ context.Context, number string, status string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("rooms.SetStatus"); err != nil {
		return nil, err
	}
	room, ok := r.s.rooms[number]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	room.Status = status
	room.UpdatedAt = now()
	r.s.rooms[number] = room
	return &room, nil
}

func (r roomRepo) CompareAndSetStatus(_ context.Context, number string, from, to string) (*model.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[number]
	if !ok {
		return nil, roomserrors.ErrNotFound
	}
	if room.Status != from {
		return nil, fmt.Errorf("%w: %s", roomserrors.ErrUnavailable, number)
	}
	room.Status = to
	room.UpdatedAt = now()
	r.s.rooms[number] = room
	return &room, nil
}
