package model

import "time"

const (
	RoomAvailable = "AVAILABLE"
	RoomLocked    = "LOCKED"
)

type Room struct {
	Number     string    `json:"number" bson:"_id" validate:"required,room_number"`
	Size       string    `json:"size" bson:"size" validate:"omitempty,max=32"`
	Rent       float64   `json:"rent" bson:"rent" validate:"finite,gte=0"`
	Deposit    float64   `json:"deposit" bson:"deposit" validate:"finite,gte=0"`
	BookingFee float64   `json:"booking_fee" bson:"booking_fee" validate:"finite,gte=0"`
	Status     string    `json:"status" bson:"status" validate:"required,oneof=AVAILABLE LOCKED"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

type RoomUpdate struct {
	Size       *string  `json:"size,omitempty" bson:"size,omitempty" validate:"omitempty,max=32"`
	Rent       *float64 `json:"rent,omitempty" bson:"rent,omitempty" validate:"omitempty,finite,gte=0"`
	Deposit    *float64 `json:"deposit,omitempty" bson:"deposit,omitempty" validate:"omitempty,finite,gte=0"`
	BookingFee *float64 `json:"booking_fee,omitempty" bson:"booking_fee,omitempty" validate:"omitempty,finite,gte=0"`
}

func (u *RoomUpdate) IsEmpty() bool {
	return u.Size == nil && u.Rent == nil && u.Deposit == nil && u.BookingFee == nil
}
