package notify

import (
	"context"
	"errors"
	"net/http"
	"smartdorm/pkg/kafka"
	"smartdorm/pkg/logger"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	Channel    string
}

// TwilioSender delivers notifications as SMS or WhatsApp messages. A
// notification without a phone number is skipped.
type TwilioSender struct {
	api     messageCreator
	from    string
	channel string
	log     *logger.Logger
}

func NewTwilioSender(cfg TwilioConfig, log *logger.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg.From, cfg.Channel, log)
}

func newTwilioSender(api messageCreator, from, channel string, log *logger.Logger) *TwilioSender {
	if channel != ChannelWhatsApp {
		channel = ChannelSMS
	}
	return &TwilioSender{
		api:     api,
		from:    from,
		channel: channel,
		log:     log.Component("notify-twilio"),
	}
}

func (s *TwilioSender) Send(ctx context.Context, n Notification) error {
	if n.Phone == "" {
		s.log.Warn("Skipping notification without phone", "event", n.Event, "recipient", n.Recipient)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return kafka.NewTransientError("send cancelled", err)
	}

	to, from := n.Phone, s.from
	if s.channel == ChannelWhatsApp {
		to, from = "whatsapp:"+to, "whatsapp:"+from
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(n.Text())

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return classifyTwilio(err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.log.Info("Message sent", "event", n.Event, "recipient", n.Recipient, "channel", s.channel, "sid", sid)
	return nil
}

// classifyTwilio marks throttling and server faults as retryable.
func classifyTwilio(err error) error {
	var restErr *twilioClient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status == http.StatusTooManyRequests || restErr.Status >= http.StatusInternalServerError {
			return kafka.NewTransientError("twilio unavailable", err)
		}
		return kafka.NewPermanentError("twilio rejected message", err)
	}
	return kafka.NewTransientError("twilio request failed", err)
}
