package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"smartdorm/pkg/kafka"
	"smartdorm/pkg/logger"
	"strings"
	"sync"
	"testing"
	"time"

	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []Notification
	block chan struct{}
}

func (r *recordingSender) Send(_ context.Context, n Notification) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestNotification_Text(t *testing.T) {
	n := Notification{
		Subject:    "Bill for room A101",
		Fields:     []Field{{"Total", "3450.00"}, {"Due", "2025-02-05"}},
		ActionLink: "https://dorm.example.com/bills/1",
	}
	want := "Bill for room A101\nTotal: 3450.00\nDue: 2025-02-05\nhttps://dorm.example.com/bills/1"
	if got := n.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestDispatcher_DeliversAndDrainsOnStop(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, testLogger(), 16, 2)
	d.Start()

	for i := 0; i < 5; i++ {
		d.Notify(Notification{Event: "bill.issued", Recipient: "u1"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := sender.count(); got != 5 {
		t.Errorf("delivered %d notifications, want 5", got)
	}

	d.Notify(Notification{Event: "late"})
	if got := sender.count(); got != 5 {
		t.Error("notification accepted after Stop")
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(sender, testLogger(), 1, 1)
	d.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(Notification{Event: "e", Recipient: "u"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(sender.block)
	_ = d.Stop(context.Background())
	if got := sender.count(); got >= 10 {
		t.Errorf("expected drops, delivered %d", got)
	}
}

type fakePublisher struct {
	msgs []kafka.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg kafka.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestKafkaSender_RoundTrip(t *testing.T) {
	pub := &fakePublisher{}
	n := Notification{Event: "payment.approved", Recipient: "cust-1", Phone: "+66812345678", Subject: "Paid"}

	if err := NewKafkaSender(pub).Send(context.Background(), n); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Key != "cust-1" || msg.GetEventType() != "payment.approved" {
		t.Errorf("unexpected message key/type: %q %q", msg.Key, msg.GetEventType())
	}

	sender := &recordingSender{}
	if err := Deliver(sender)(context.Background(), msg); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if sender.sent[0].Phone != n.Phone || sender.sent[0].Subject != n.Subject {
		t.Errorf("decoded %+v, want %+v", sender.sent[0], n)
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte("not json")})
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent error, got %v", err)
	}
}

type fakeCreator struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender_WhatsApp(t *testing.T) {
	api := &fakeCreator{}
	s := newTwilioSender(api, "+15550001111", ChannelWhatsApp, testLogger())

	if err := s.Send(context.Background(), Notification{Phone: "+66812345678", Subject: "Hello"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if *api.params.To != "whatsapp:+66812345678" || *api.params.From != "whatsapp:+15550001111" {
		t.Errorf("unexpected addressing to=%s from=%s", *api.params.To, *api.params.From)
	}
	if !strings.HasPrefix(*api.params.Body, "Hello") {
		t.Errorf("unexpected body %q", *api.params.Body)
	}
}

func TestTwilioSender_SkipsWithoutPhone(t *testing.T) {
	api := &fakeCreator{}
	s := newTwilioSender(api, "+15550001111", ChannelSMS, testLogger())

	if err := s.Send(context.Background(), Notification{Recipient: "admin"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if api.params != nil {
		t.Error("twilio should not be called without a phone")
	}
}

func TestTwilioSender_ErrorClassification(t *testing.T) {
	tests := []struct {
		err  error
		want kafka.ErrorType
	}{
		{&twilioClient.TwilioRestError{Status: http.StatusTooManyRequests}, kafka.ErrorTypeTransient},
		{&twilioClient.TwilioRestError{Status: http.StatusBadRequest, Code: 21211}, kafka.ErrorTypePermanent},
		{errors.New("connection reset"), kafka.ErrorTypeTransient},
	}

	for _, tt := range tests {
		s := newTwilioSender(&fakeCreator{err: tt.err}, "+15550001111", ChannelSMS, testLogger())
		err := s.Send(context.Background(), Notification{Phone: "+66812345678"})
		if got := kafka.ClassifyError(err); got != tt.want {
			t.Errorf("error %v classified as %v, want %v", tt.err, got, tt.want)
		}
	}
}
