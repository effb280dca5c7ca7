// Package notices turns committed lifecycle changes into notifications for
// the tenant and the administrator. Publishing never fails the caller.
package notices

import (
	"context"
	"smartdorm/pkg/config"
	"smartdorm/pkg/model"
	"smartdorm/pkg/notify"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingApproved  = "booking.approved"
	EventBookingRejected  = "booking.rejected"
	EventBookingCheckedIn = "booking.checked_in"
	EventBillIssued       = "bill.issued"
	EventBillOverdue      = "bill.overdue"
	EventPaymentSubmitted = "payment.submitted"
	EventPaymentApproved  = "payment.approved"
	EventPaymentRejected  = "payment.rejected"
	EventCheckoutRequest  = "checkout.requested"
	EventCheckoutComplete = "checkout.completed"
)

// Message is the content of one notice before a recipient is attached.
type Message struct {
	Event   string
	Subject string
	Fields  []notify.Field
	Path    string
}

// Directory looks up the contact details of a customer.
type Directory interface {
	FindByID(ctx context.Context, id string) (*model.Customer, error)
}

type Publisher struct {
	notifier  notify.Notifier
	customers Directory
	cfg       *config.Config
}

func NewPublisher(notifier notify.Notifier, customers Directory, cfg *config.Config) *Publisher {
	return &Publisher{
		notifier:  notifier,
		customers: customers,
		cfg:       cfg,
	}
}

func (p *Publisher) ToCustomer(ctx context.Context, customerID string, msg Message) {
	if n, ok := p.forCustomer(ctx, customerID, msg); ok {
		p.notifier.Notify(n)
	}
}

func (p *Publisher) ToAdmin(msg Message) {
	p.notifier.Notify(p.forAdmin(msg))
}

func (p *Publisher) ToBoth(ctx context.Context, customerID string, msg Message) {
	ns := []notify.Notification{p.forAdmin(msg)}
	if n, ok := p.forCustomer(ctx, customerID, msg); ok {
		ns = append([]notify.Notification{n}, ns...)
	}
	p.notifier.Notify(ns...)
}

func (p *Publisher) forCustomer(ctx context.Context, customerID string, msg Message) (notify.Notification, bool) {
	customer, err := p.customers.FindByID(ctx, customerID)
	if err != nil {
		p.cfg.Log.Warn("Skipping customer notification, contact lookup failed",
			"event", msg.Event,
			"customer_id", customerID,
			"error", err,
		)
		return notify.Notification{}, false
	}
	return p.build(customer.ExternalID, customer.Phone, msg), true
}

func (p *Publisher) forAdmin(msg Message) notify.Notification {
	return p.build(p.cfg.AdminRecipient, p.cfg.AdminPhone, msg)
}

func (p *Publisher) build(recipient, phone string, msg Message) notify.Notification {
	n := notify.Notification{
		Event:     msg.Event,
		Recipient: recipient,
		Phone:     phone,
		Subject:   msg.Subject,
		Fields:    msg.Fields,
	}
	if msg.Path != "" && p.cfg.PublicBaseURL != "" {
		n.ActionLink = strings.TrimRight(p.cfg.PublicBaseURL, "/") + msg.Path
	}
	return n
}

// Money formats an amount with two decimals.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func Date(t time.Time) string {
	return t.Format("2006-01-02")
}

func Month(t time.Time) string {
	return t.Format("2006-01")
}

func Units(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// BillFields renders the cost breakdown of a bill.
func BillFields(b *model.Bill) []notify.Field {
	fields := []notify.Field{
		{Label: "Room", Value: b.RoomNumber},
		{Label: "Period", Value: Month(b.Period)},
		{Label: "Rent", Value: Money(b.Rent)},
		{Label: "Service fee", Value: Money(b.ServiceFee)},
		{Label: "Water", Value: Units(b.WaterUnits) + " units = " + Money(b.WaterCost)},
		{Label: "Electricity", Value: Units(b.ElectricUnits) + " units = " + Money(b.ElectricCost)},
	}
	if b.Fine > 0 {
		fields = append(fields,
			notify.Field{Label: "Overdue days", Value: strconv.Itoa(b.OverdueDays)},
			notify.Field{Label: "Fine", Value: Money(b.Fine)},
		)
	}
	return append(fields,
		notify.Field{Label: "Total", Value: Money(b.Total)},
		notify.Field{Label: "Due", Value: Date(b.DueDate)},
	)
}
