package model

import "time"

// Customer is created on first contact and keyed by the identity provider's
// subject, which never changes for a person.
type Customer struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	ExternalID  string    `json:"external_id" bson:"external_id"`
	DisplayName string    `json:"display_name" bson:"display_name"`
	FirstName   string    `json:"first_name" bson:"first_name"`
	LastName    string    `json:"last_name" bson:"last_name"`
	Phone       string    `json:"phone" bson:"phone"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

type CustomerProfile struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
	Phone     string `json:"phone" validate:"required,e164"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
}
