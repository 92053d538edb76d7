package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Server to client realtime events.
const (
	EventJoinedChat      = "joined_chat"
	EventNewMessage      = "new_message"
	EventMessagesRead    = "messages_read"
	EventContractUpdated = "contract_updated"
	EventUnreadUpdate    = "unread_update"
	EventOfferAccepted   = "offer_accepted"
	EventNotification    = "notification"
	EventPong            = "pong"
	EventError           = "error"
)

// Broadcaster pushes an event to every socket joined to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, data interface{}) error
}

// Mailer queues a templated email for delivery.
type Mailer interface {
	SendTemplate(ctx context.Context, to, templateID string, data map[string]interface{}) error
}

// UserRoom is the personal room every socket of a user is joined to.
func UserRoom(userID primitive.ObjectID) string {
	return "user:" + userID.Hex()
}

// ContractRoom carries the chat traffic of one contract.
func ContractRoom(contractID primitive.ObjectID) string {
	return "contract:" + contractID.Hex()
}

type nopBroadcaster struct{}

// NopBroadcaster drops every event. Used when no realtime hub is running.
func NopBroadcaster() Broadcaster { return nopBroadcaster{} }

func (nopBroadcaster) Broadcast(context.Context, string, string, interface{}) error { return nil }

type logMailer struct{}

// LogMailer logs instead of sending.
func LogMailer() Mailer { return logMailer{} }

func (logMailer) SendTemplate(_ context.Context, to, templateID string, _ map[string]interface{}) error {
	log.Printf("[mail disabled] %s -> %s", templateID, to)
	return nil
}

// EffectResult is the outcome of one best-effort side effect.
type EffectResult struct {
	Name string
	Err  error
}

func (r EffectResult) OK() bool { return r.Err == nil }

type effect struct {
	name string
	fn   func(ctx context.Context) error
}

func newEffect(name string, fn func(ctx context.Context) error) effect {
	return effect{name: name, fn: fn}
}

// runEffects runs effects in order after the primary write has committed.
// Failures (and panics) are logged against subject and reported back, never
// returned as an error.
func runEffects(ctx context.Context, subject string, effects ...effect) []EffectResult {
	results := make([]EffectResult, 0, len(effects))
	for _, e := range effects {
		err := runEffect(ctx, e)
		if err != nil {
			log.Printf("side effect %s for %s failed: %v", e.name, subject, err)
		}
		results = append(results, EffectResult{Name: e.name, Err: err})
	}
	return results
}

func runEffect(ctx context.Context, e effect) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.fn(ctx)
}
