package model

import "time"

const (
	CheckoutRequested = "REQUESTED"
	CheckoutCompleted = "COMPLETED"
)

type Checkout struct {
	ID             string     `json:"id" bson:"_id,omitempty"`
	BookingID      string     `json:"booking_id" bson:"booking_id"`
	RoomNumber     string     `json:"room_number" bson:"room_number"`
	CustomerID     string     `json:"customer_id" bson:"customer_id"`
	ExternalID     string     `json:"external_id" bson:"external_id"`
	RequestedDate  time.Time  `json:"requested_date" bson:"requested_date"`
	ActualCheckout *time.Time `json:"actual_checkout,omitempty" bson:"actual_checkout,omitempty"`
	Status         string     `json:"status" bson:"status"`
	Refund         float64    `json:"refund" bson:"refund"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

type CheckoutRequest struct {
	AccessToken   string    `json:"-" validate:"required"`
	BookingID     string    `json:"booking_id" validate:"required"`
	RequestedDate time.Time `json:"requested_date" validate:"required"`
}

// Settlement is returned when a checkout is completed; Refund is the deposit
// owed back to the tenant.
type Settlement struct {
	Checkout   *Checkout `json:"checkout"`
	RoomNumber string    `json:"room_number"`
	Refund     float64   `json:"refund"`
}
