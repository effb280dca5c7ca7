// Package notify delivers tenant and administrator messages out of band.
// Delivery is best-effort: callers enqueue after their state change has been
// committed and never wait on the transport.
package notify

import (
	"context"
	"fmt"
	"strings"
)

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Notification struct {
	Event      string  `json:"event"`
	Recipient  string  `json:"recipient"`
	Phone      string  `json:"phone,omitempty"`
	Subject    string  `json:"subject"`
	Fields     []Field `json:"fields,omitempty"`
	ActionLink string  `json:"action_link,omitempty"`
}

// Text renders the notification as a plain message body.
func (n Notification) Text() string {
	var b strings.Builder
	b.WriteString(n.Subject)
	for _, f := range n.Fields {
		fmt.Fprintf(&b, "\n%s: %s", f.Label, f.Value)
	}
	if n.ActionLink != "" {
		b.WriteString("\n")
		b.WriteString(n.ActionLink)
	}
	return b.String()
}

// Sender hands one notification to a transport.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Notifier accepts notifications for asynchronous delivery.
type Notifier interface {
	Notify(ns ...Notification)
}
