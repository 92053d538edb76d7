package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotifyContractRequest  NotificationType = "contract_request"
	NotifyCounterOffer     NotificationType = "counter_offer"
	NotifyContractAccepted NotificationType = "contract_accepted"
	NotifyContractStatus   NotificationType = "contract_status"
	NotifyProgressUpdate   NotificationType = "progress_update"
	NotifyNewMessage       NotificationType = "new_message"
	NotifyPaymentCreated   NotificationType = "payment_created"
	NotifyPaymentCompleted NotificationType = "payment_completed"
	NotifyPaymentFailed    NotificationType = "payment_failed"
	NotifyPaymentDisbursed NotificationType = "payment_disbursed"
	NotifyAnnouncement     NotificationType = "announcement"
)

// Notification is a fire-and-forget record addressed to one user.
type Notification struct {
	Base      `bson:",inline"`
	User      primitive.ObjectID     `bson:"user" json:"user"`
	Type      NotificationType       `bson:"type" json:"type"`
	Title     string                 `bson:"title" json:"title"`
	Message   string                 `bson:"message" json:"message"`
	Data      map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool                   `bson:"read" json:"read"`
	CreatedAt time.Time              `bson:"created_at" json:"createdAt"`
}
