// Package notify decides whether a stored message should produce a push
// notification and hands the rendered payload to a push gateway.
//
// Dispatch is best effort. Every failure is logged and counted, and none of
// them reaches the caller that stored the message.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/metrics"
	"github.com/pliu/pairchat/internal/models"
)

// Dispatch outcomes, also used as metric labels.
const (
	ResultSent        = "sent"
	ResultNoRecipient = "no_recipient"
	ResultNoToken     = "no_token"
	ResultFailed      = "failed"
)

type Payload struct {
	Token string `json:"token"`
	Data  Data   `json:"data"`
}

type Data struct {
	ChatID     string `json:"chatId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

// PushGateway delivers a payload to one device.
type PushGateway interface {
	Send(ctx context.Context, payload Payload) error
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Dispatcher struct {
	users       UserLookup
	gateway     PushGateway
	serviceName string
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

func NewDispatcher(users UserLookup, gateway PushGateway, serviceName string, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	if gateway == nil {
		gateway = NopGateway{Log: log}
	}
	return &Dispatcher{
		users:       users,
		gateway:     gateway,
		serviceName: serviceName,
		log:         log.With().Str("component", "notify").Logger(),
		metrics:     m,
	}
}

// Dispatch notifies the participant of room that did not send msg.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.Message, room models.Room) string {
	result := d.dispatch(ctx, msg, room)
	d.metrics.PushResult(result)
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, msg models.Message, room models.Room) string {
	log := d.log.With().Str("room_id", room.ID).Str("message_id", msg.ID).Logger()

	recipientID, ok := room.Other(msg.SenderID)
	if !ok {
		log.Warn().Str("sender_id", msg.SenderID).Strs("participants", room.Participants[:]).
			Msg("No recipient resolvable for message")
		return ResultNoRecipient
	}
	recipient, err := d.users.GetUserByID(ctx, recipientID)
	if err != nil {
		log.Warn().Err(err).Str("recipient_id", recipientID).Msg("Failed to look up recipient")
		return ResultNoRecipient
	}
	if recipient.PushToken == nil || *recipient.PushToken == "" {
		log.Debug().Str("recipient_id", recipientID).Msg("Recipient has no push token, not notifying")
		return ResultNoToken
	}

	senderName := ""
	if sender, err := d.users.GetUserByID(ctx, msg.SenderID); err != nil {
		log.Warn().Err(err).Str("sender_id", msg.SenderID).Msg("Failed to look up sender name")
	} else {
		senderName = sender.Username
	}

	payload := BuildPayload(*recipient.PushToken, msg, senderName, d.serviceName)
	if err := d.gateway.Send(ctx, payload); err != nil {
		log.Err(err).Str("recipient_id", recipientID).Str("type", payload.Data.Type).Msg("Push gateway send failed")
		return ResultFailed
	}
	log.Debug().Str("recipient_id", recipientID).Str("type", payload.Data.Type).Msg("Sent push notification")
	return ResultSent
}

// BuildPayload renders the push payload for msg. The title falls back to
// serviceName when the sender has no display name.
func BuildPayload(token string, msg models.Message, senderName, serviceName string) Payload {
	kind := msg.Kind()
	if kind == models.KindNone {
		kind = models.KindText
	}
	title := senderName
	if title == "" {
		title = serviceName
	}
	body := msg.Text
	if body == "" {
		body = fmt.Sprintf("[new %s message]", kind)
	}
	return Payload{
		Token: token,
		Data: Data{
			ChatID:     msg.RoomID,
			SenderID:   msg.SenderID,
			SenderName: senderName,
			Text:       msg.Text,
			Type:       string(kind),
			Title:      title,
			Body:       body,
		},
	}
}

// NopGateway drops every payload. It is used when no gateway URL is configured.
type NopGateway struct {
	Log zerolog.Logger
}

func (g NopGateway) Send(_ context.Context, payload Payload) error {
	g.Log.Debug().Str("chat_id", payload.Data.ChatID).Str("type", payload.Data.Type).
		Msg("Push gateway disabled, dropping notification")
	return nil
}
