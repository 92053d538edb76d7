package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one gateway payment for one stage of one contract.
type Payment struct {
	Base              `bson:",inline"`
	Contract          primitive.ObjectID  `bson:"contract" json:"contract"`
	Stage             PaymentStage        `bson:"stage" json:"stage"`
	Amount            float64             `bson:"amount" json:"amount"`
	Currency          string              `bson:"currency" json:"currency"`
	Buyer             primitive.ObjectID  `bson:"buyer" json:"buyer"`
	Farmer            primitive.ObjectID  `bson:"farmer" json:"farmer"`
	Status            PaymentStatus       `bson:"status" json:"status"`
	GatewayRequestID  string              `bson:"gateway_request_id,omitempty" json:"gatewayRequestId,omitempty"`
	GatewayPaymentID  string              `bson:"gateway_payment_id,omitempty" json:"gatewayPaymentId,omitempty"`
	PaymentURL        string              `bson:"payment_url,omitempty" json:"paymentUrl,omitempty"`
	GatewayPayload    map[string]string   `bson:"gateway_payload,omitempty" json:"-"`
	ActiveKey         string              `bson:"active_key,omitempty" json:"-"` // set while pending or completed
	Disbursed         bool                `bson:"disbursed" json:"disbursed"`
	DisbursedAt       *time.Time          `bson:"disbursed_at,omitempty" json:"disbursedAt,omitempty"`
	DisbursedBy       *primitive.ObjectID `bson:"disbursed_by,omitempty" json:"disbursedBy,omitempty"`
	DisbursementNotes string              `bson:"disbursement_notes,omitempty" json:"disbursementNotes,omitempty"`
	CompletedAt       *time.Time          `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	CreatedAt         time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"updatedAt"`
}

// PaymentActiveKey is unique across payments that are pending or completed,
// so a stage can only have one live payment.
func PaymentActiveKey(contractID primitive.ObjectID, stage PaymentStage) string {
	return contractID.Hex() + ":" + string(stage)
}

func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentFailed
}

// ProcessedEvent marks a gateway event as applied. The unique key makes
// applying the same event twice a duplicate-key no-op.
type ProcessedEvent struct {
	Base      `bson:",inline"`
	Key       string             `bson:"key" json:"key"`
	Payment   primitive.ObjectID `bson:"payment" json:"payment"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expiresAt"`
}
