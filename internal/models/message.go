package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	MessageText          MessageType = "text"
	MessageCounterOffer  MessageType = "counterOffer"
	MessageSystemMessage MessageType = "systemMessage"
)

// OfferDetails mirrors the counter-offer a chat message carries.
type OfferDetails struct {
	CounterOffer primitive.ObjectID `bson:"counter_offer" json:"counterOffer"`
	Terms        OfferTerms         `bson:"terms" json:"terms"`
	TotalAmount  float64            `bson:"total_amount" json:"totalAmount"`
}

// Message is a chat message on a contract. Only Read/ReadAt change after creation.
type Message struct {
	Base         `bson:",inline"`
	Contract     primitive.ObjectID `bson:"contract" json:"contractId"`
	Sender       primitive.ObjectID `bson:"sender" json:"senderId"`
	Recipient    primitive.ObjectID `bson:"recipient" json:"recipientId"`
	MessageType  MessageType        `bson:"message_type" json:"messageType"`
	Content      string             `bson:"content" json:"content"`
	OfferDetails *OfferDetails      `bson:"offer_details,omitempty" json:"offerDetails,omitempty"`
	Read         bool               `bson:"read" json:"read"`
	ReadAt       *time.Time         `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}
