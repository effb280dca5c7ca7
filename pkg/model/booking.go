package model

import (
	"time"
)

const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"

	CheckinNotArrived = "NOT_ARRIVED"
	CheckinArrived    = "ARRIVED"
)

type Booking struct {
	ID             string     `json:"id" bson:"_id,omitempty"`
	RoomNumber     string     `json:"room_number" bson:"room_number"`
	CustomerID     string     `json:"customer_id" bson:"customer_id"`
	ExternalID     string     `json:"external_id" bson:"external_id"`
	CheckinDate    time.Time  `json:"checkin_date" bson:"checkin_date"`
	CheckoutDate   *time.Time `json:"checkout_date,omitempty" bson:"checkout_date,omitempty"`
	ActualCheckin  *time.Time `json:"actual_checkin,omitempty" bson:"actual_checkin,omitempty"`
	ActualCheckout *time.Time `json:"actual_checkout,omitempty" bson:"actual_checkout,omitempty"`
	SlipURL        string     `json:"slip_url,omitempty" bson:"slip_url,omitempty"`
	Approval       string     `json:"approval" bson:"approval"`
	Checkin        string     `json:"checkin" bson:"checkin_status"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsActive reports whether the booking still holds its room.
func (b *Booking) IsActive() bool {
	switch b.Approval {
	case ApprovalPending:
		return true
	case ApprovalApproved:
		return b.ActualCheckout == nil
	default:
		return false
	}
}

type BookingUpdate struct {
	CheckinDate  *time.Time `json:"checkin_date,omitempty" bson:"checkin_date,omitempty"`
	CheckoutDate *time.Time `json:"checkout_date,omitempty" bson:"checkout_date,omitempty"`
}

type BookingFilter struct {
	Approval   string
	RoomNumber string
	CustomerID string
	ExternalID string
}

type BookingRequest struct {
	AccessToken     string          `json:"-" validate:"required"`
	RoomNumber      string          `json:"room_number" validate:"required,room_number"`
	CheckinDate     time.Time       `json:"checkin_date" validate:"required"`
	CheckoutDate    *time.Time      `json:"checkout_date,omitempty" validate:"omitempty,gtfield=CheckinDate"`
	Profile         CustomerProfile `json:"profile"`
	Slip            []byte          `json:"slip,omitempty"`
	SlipContentType string          `json:"slip_content_type,omitempty" validate:"required_with=Slip"`
}
