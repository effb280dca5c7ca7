package notify

import (
	"context"
	"fmt"
	"smartdorm/pkg/kafka"
)

const (
	SchemaVersion = "1"
	Source        = "smartdorm-api"
)

type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaSender publishes notifications for the notifier process to deliver.
// Messages are keyed by recipient so each person's notices stay ordered.
type KafkaSender struct {
	publisher Publisher
}

func NewKafkaSender(publisher Publisher) *KafkaSender {
	return &KafkaSender{publisher: publisher}
}

func (s *KafkaSender) Send(ctx context.Context, n Notification) error {
	msg, err := kafka.NewMessage().
		WithKey(n.Recipient).
		WithEventType(n.Event).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithValue(n).
		Build()
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, msg)
}

func Decode(msg kafka.Message) (Notification, error) {
	var n Notification
	if err := msg.DecodeValue(&n); err != nil {
		return Notification{}, kafka.NewPermanentError("malformed notification", err)
	}
	if n.Recipient == "" {
		return Notification{}, kafka.NewPermanentError(fmt.Sprintf("notification %s has no recipient", msg.GetEventID()), nil)
	}
	return n, nil
}

// Deliver adapts a Sender into a consumer handler.
func Deliver(sender Sender) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		n, err := Decode(msg)
		if err != nil {
			return err
		}
		return sender.Send(ctx, n)
	}
}
