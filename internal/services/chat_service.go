package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/db"
	"agrolink/api/internal/models"
)

const messagesCollection = "messages"

// SendMessageInput is a chat message as sent by a client. Offer is required
// for counterOffer messages and ignored otherwise.
type SendMessageInput struct {
	MessageType models.MessageType `json:"messageType"`
	Content     string             `json:"content" validate:"max=5000"`
	Offer       *models.OfferTerms `json:"offerDetails"`
}

// MessageResult is the outcome of a chat operation.
type MessageResult struct {
	Message  *models.Message
	Contract *models.Contract
	Effects  []EffectResult
}

// UnreadUpdate is pushed to a user's room when their unread counts change.
type UnreadUpdate struct {
	ContractID  string `json:"contractId"`
	Unread      int64  `json:"unreadCount"`
	TotalUnread int64  `json:"totalUnread"`
}

// MessagesRead is pushed to the contract room when a party reads messages.
type MessagesRead struct {
	ContractID string `json:"contractId"`
	ReaderID   string `json:"readerId"`
	Count      int64  `json:"count"`
}

// IChatService persists contract chat and mirrors it to the realtime rooms.
type IChatService interface {
	ListMessages(ctx context.Context, contractID primitive.ObjectID, actor Actor, limit int64) ([]models.Message, error)
	SendMessage(ctx context.Context, contractID primitive.ObjectID, actor Actor, in SendMessageInput) (*MessageResult, error)
	MarkRead(ctx context.Context, contractID primitive.ObjectID, actor Actor) (int64, error)
	AcceptOffer(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*MessageResult, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID, contractID *primitive.ObjectID) (int64, error)
	// CanJoin returns nil when actor may join the contract's chat room.
	CanJoin(ctx context.Context, contractID primitive.ObjectID, actor Actor) error
}

type chatService struct {
	db            *mongo.Database
	contracts     IContractService
	notifications INotificationService
	broadcaster   Broadcaster
}

func NewChatService(db *mongo.Database, contracts IContractService, notifications INotificationService, broadcaster Broadcaster) IChatService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster()
	}
	return &chatService{db: db, contracts: contracts, notifications: notifications, broadcaster: broadcaster}
}

// partyContract loads the contract and requires actor to be one of its parties.
func (s *chatService) partyContract(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*models.Contract, error) {
	contract, err := s.contracts.Get(ctx, contractID, actor)
	if err != nil {
		return nil, err
	}
	if !contract.IsParty(actor.ID) {
		return nil, errNotParty
	}
	return contract, nil
}

func (s *chatService) CanJoin(ctx context.Context, contractID primitive.ObjectID, actor Actor) error {
	_, err := s.partyContract(ctx, contractID, actor)
	return err
}

// ListMessages returns the newest limit messages in chronological order.
func (s *chatService) ListMessages(ctx context.Context, contractID primitive.ObjectID, actor Actor, limit int64) ([]models.Message, error) {
	if _, err := s.partyContract(ctx, contractID, actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(limit)
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"contract": contractID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages of contract %s: %w", contractID.Hex(), err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SendMessage stores a message and only then broadcasts it. A counterOffer
// message first goes through the contract's negotiation.
func (s *chatService) SendMessage(ctx context.Context, contractID primitive.ObjectID, actor Actor, in SendMessageInput) (*MessageResult, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	if in.MessageType == "" {
		in.MessageType = models.MessageText
	}
	in.Content = strings.TrimSpace(in.Content)

	contract, err := s.partyContract(ctx, contractID, actor)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		Contract:    contract.ID,
		Sender:      actor.ID,
		Recipient:   contract.Counterparty(actor.ID),
		MessageType: in.MessageType,
		Content:     in.Content,
	}

	switch in.MessageType {
	case models.MessageText:
		if in.Content == "" {
			return nil, apperr.BadRequest("Message content is required")
		}
	case models.MessageCounterOffer:
		if in.Offer == nil {
			return nil, apperr.BadRequest("Counter-offer message requires offerDetails")
		}
		if in.Offer.Message == "" {
			in.Offer.Message = in.Content
		}
		result, err := s.contracts.SubmitCounterOffer(ctx, contract.ID, actor, *in.Offer)
		if err != nil {
			return nil, err
		}
		contract = result.Contract
		msg.OfferDetails = &models.OfferDetails{
			CounterOffer: result.CounterOffer.ID,
			Terms:        result.CounterOffer.Terms,
			TotalAmount:  result.CounterOffer.TotalAmount,
		}
		if msg.Content == "" {
			msg.Content = in.Offer.Describe()
		}
	default:
		return nil, apperr.BadRequest(fmt.Sprintf("Message type %q cannot be sent", in.MessageType))
	}

	return s.deliver(ctx, contract, msg, true)
}

// deliver persists msg and pushes it to the contract room and the
// recipient's personal room.
func (s *chatService) deliver(ctx context.Context, contract *models.Contract, msg *models.Message, notify bool) (*MessageResult, error) {
	msg.CreatedAt = time.Now().UTC()
	if _, err := db.InsertOne(ctx, s.db.Collection(messagesCollection), msg); err != nil {
		return nil, err
	}

	effects := []effect{
		newEffect("broadcast message", func(ctx context.Context) error {
			return s.broadcaster.Broadcast(ctx, ContractRoom(contract.ID), EventNewMessage, msg)
		}),
		newEffect("unread update", func(ctx context.Context) error {
			return s.pushUnread(ctx, msg.Recipient, contract.ID)
		}),
	}
	if notify && s.notifications != nil {
		effects = append(effects, newEffect("notify recipient", func(ctx context.Context) error {
			_, err := s.notifications.Notify(ctx, msg.Recipient, models.NotifyNewMessage,
				"New message", truncate(msg.Content, 140),
				map[string]interface{}{"contractId": contract.ID.Hex(), "messageId": msg.ID.Hex()})
			return err
		}))
	}

	results := runEffects(ctx, "message "+msg.ID.Hex(), effects...)
	return &MessageResult{Message: msg, Contract: contract, Effects: results}, nil
}

// MarkRead marks every message addressed to actor on the contract as read.
func (s *chatService) MarkRead(ctx context.Context, contractID primitive.ObjectID, actor Actor) (int64, error) {
	contract, err := s.partyContract(ctx, contractID, actor)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	res, err := s.db.Collection(messagesCollection).UpdateMany(ctx,
		bson.M{"contract": contract.ID, "recipient": actor.ID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read on contract %s: %w", contractID.Hex(), err)
	}

	runEffects(ctx, "contract "+contract.ID.Hex(),
		newEffect("broadcast read", func(ctx context.Context) error {
			return s.broadcaster.Broadcast(ctx, ContractRoom(contract.ID), EventMessagesRead, MessagesRead{
				ContractID: contract.ID.Hex(),
				ReaderID:   actor.ID.Hex(),
				Count:      res.ModifiedCount,
			})
		}),
		newEffect("unread update", func(ctx context.Context) error {
			return s.pushUnread(ctx, actor.ID, contract.ID)
		}),
	)
	return res.ModifiedCount, nil
}

// AcceptOffer accepts the counterparty's pending offer and posts a system
// message about it.
func (s *chatService) AcceptOffer(ctx context.Context, contractID primitive.ObjectID, actor Actor) (*MessageResult, error) {
	result, err := s.contracts.AcceptOffer(ctx, contractID, actor)
	if err != nil {
		return nil, err
	}
	contract := result.Contract

	msg := &models.Message{
		Contract:    contract.ID,
		Sender:      actor.ID,
		Recipient:   contract.Counterparty(actor.ID),
		MessageType: models.MessageSystemMessage,
		Content: fmt.Sprintf("Offer accepted: %g %s at %.2f per %s, total %.2f",
			contract.Quantity, contract.Unit, contract.PricePerUnit, contract.Unit, contract.TotalAmount),
	}
	if result.CounterOffer != nil {
		msg.OfferDetails = &models.OfferDetails{
			CounterOffer: result.CounterOffer.ID,
			Terms:        result.CounterOffer.Terms,
			TotalAmount:  result.CounterOffer.TotalAmount,
		}
	}

	delivered, err := s.deliver(ctx, contract, msg, false)
	if err != nil {
		return nil, err
	}
	delivered.Effects = append(result.Effects, delivered.Effects...)
	delivered.Effects = append(delivered.Effects, runEffects(ctx, "contract "+contract.ID.Hex(),
		newEffect("broadcast offer accepted", func(ctx context.Context) error {
			return s.broadcaster.Broadcast(ctx, ContractRoom(contract.ID), EventOfferAccepted, map[string]interface{}{
				"contractId": contract.ID.Hex(),
				"acceptedBy": actor.ID.Hex(),
				"contract":   contract,
			})
		}),
	)...)
	return delivered, nil
}

// UnreadCount counts unread messages for userID, on one contract when
// contractID is given.
func (s *chatService) UnreadCount(ctx context.Context, userID primitive.ObjectID, contractID *primitive.ObjectID) (int64, error) {
	filter := bson.M{"recipient": userID, "read": false}
	if contractID != nil {
		filter["contract"] = *contractID
	}
	return s.db.Collection(messagesCollection).CountDocuments(ctx, filter)
}

func (s *chatService) pushUnread(ctx context.Context, userID, contractID primitive.ObjectID) error {
	unread, err := s.UnreadCount(ctx, userID, &contractID)
	if err != nil {
		return err
	}
	total, err := s.UnreadCount(ctx, userID, nil)
	if err != nil {
		return err
	}
	return s.broadcaster.Broadcast(ctx, UserRoom(userID), EventUnreadUpdate, UnreadUpdate{
		ContractID:  contractID.Hex(),
		Unread:      unread,
		TotalUnread: total,
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
