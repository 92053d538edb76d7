package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/services"
)

// Events a client may send.
const (
	EventJoinChat         = "join_chat"
	EventLeaveChat        = "leave_chat"
	EventSendMessage      = "send_message"
	EventMarkMessagesRead = "mark_messages_read"
	EventAcceptOffer      = "accept_offer"
	EventPing             = "ping"
)

type contractPayload struct {
	ContractID string `json:"contractId"`
}

type sendMessagePayload struct {
	ContractID string `json:"contractId"`
	services.SendMessageInput
}

// ErrorPayload is the data of an "error" event.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// Dispatcher routes client events to the chat service. Persisted events are
// pushed to rooms by the service itself; the dispatcher only answers the
// sender directly for joins, pings and errors.
type Dispatcher struct {
	hub  *Hub
	chat services.IChatService
}

func NewDispatcher(hub *Hub, chat services.IChatService) *Dispatcher {
	return &Dispatcher{hub: hub, chat: chat}
}

// Handle processes one raw client frame.
func (d *Dispatcher) Handle(ctx context.Context, c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		c.emit(services.EventError, ErrorPayload{Message: "Malformed event"})
		return
	}
	if err := d.dispatch(ctx, c, env); err != nil {
		appErr := apperr.From(err)
		if appErr.Status >= 500 {
			log.Printf("Realtime %s from user %s failed: %v", env.Event, c.Actor.ID.Hex(), err)
		}
		c.emit(services.EventError, ErrorPayload{Event: env.Event, Message: appErr.Message})
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, c *Client, env Envelope) error {
	switch env.Event {
	case EventPing:
		c.emit(services.EventPong, map[string]interface{}{"time": time.Now().UTC()})
		return nil

	case EventJoinChat:
		contractID, err := decodeContract(env.Data)
		if err != nil {
			return err
		}
		if err := d.chat.CanJoin(ctx, contractID, c.Actor); err != nil {
			return err
		}
		d.hub.Join(c, services.ContractRoom(contractID))
		c.emit(services.EventJoinedChat, contractPayload{ContractID: contractID.Hex()})
		return nil

	case EventLeaveChat:
		contractID, err := decodeContract(env.Data)
		if err != nil {
			return err
		}
		d.hub.Leave(c, services.ContractRoom(contractID))
		return nil

	case EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return apperr.BadRequest("Invalid send_message payload")
		}
		contractID, err := primitive.ObjectIDFromHex(p.ContractID)
		if err != nil {
			return apperr.BadRequest("Invalid contractId")
		}
		if !d.hub.InRoom(c, services.ContractRoom(contractID)) {
			return apperr.Forbidden("Join the chat before sending messages")
		}
		_, err = d.chat.SendMessage(ctx, contractID, c.Actor, p.SendMessageInput)
		return err

	case EventMarkMessagesRead:
		contractID, err := decodeContract(env.Data)
		if err != nil {
			return err
		}
		_, err = d.chat.MarkRead(ctx, contractID, c.Actor)
		return err

	case EventAcceptOffer:
		contractID, err := decodeContract(env.Data)
		if err != nil {
			return err
		}
		_, err = d.chat.AcceptOffer(ctx, contractID, c.Actor)
		return err
	}
	return apperr.BadRequest(fmt.Sprintf("Unknown event %q", env.Event))
}

func decodeContract(data json.RawMessage) (primitive.ObjectID, error) {
	var p contractPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return primitive.NilObjectID, apperr.BadRequest("Invalid event payload")
	}
	id, err := primitive.ObjectIDFromHex(p.ContractID)
	if err != nil {
		return primitive.NilObjectID, apperr.BadRequest("Invalid contractId")
	}
	return id, nil
}
