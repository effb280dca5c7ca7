package model

import "time"

const (
	PaymentSubmitted = "SUBMITTED"
	PaymentApproved  = "APPROVED"
	PaymentRejected  = "REJECTED"
)

type Payment struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	BillID      string     `json:"bill_id" bson:"bill_id"`
	CustomerID  string     `json:"customer_id" bson:"customer_id"`
	ExternalID  string     `json:"external_id" bson:"external_id"`
	SlipURL     string     `json:"slip_url" bson:"slip_url"`
	Status      string     `json:"status" bson:"status"`
	SubmittedAt time.Time  `json:"submitted_at" bson:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

type PaymentSubmission struct {
	AccessToken     string `json:"-" validate:"required"`
	BillID          string `json:"bill_id" validate:"required"`
	Slip            []byte `json:"slip"`
	SlipContentType string `json:"slip_content_type"`
}
