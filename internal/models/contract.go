package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	StatusRequested       ContractStatus = "requested"
	StatusNegotiating     ContractStatus = "negotiating"
	StatusAccepted        ContractStatus = "accepted"
	StatusActive          ContractStatus = "active"
	StatusReadyForHarvest ContractStatus = "readyForHarvest"
	StatusHarvested       ContractStatus = "harvested"
	StatusDelivered       ContractStatus = "delivered"
	StatusCompleted       ContractStatus = "completed"
	StatusCancelled       ContractStatus = "cancelled"
	StatusDisputed        ContractStatus = "disputed"
	// StatusPaymentPending is only ever read from older documents; nothing
	// transitions into it.
	StatusPaymentPending ContractStatus = "payment_pending"
)

// PaymentStage is one of the three partial payments of a contract.
type PaymentStage string

const (
	StageAdvance PaymentStage = "advance"
	StageMidterm PaymentStage = "midterm"
	StageFinal   PaymentStage = "final"
)

var PaymentStages = []PaymentStage{StageAdvance, StageMidterm, StageFinal}

func ValidStage(s PaymentStage) bool {
	return s == StageAdvance || s == StageMidterm || s == StageFinal
}

type NegotiationAction string

const (
	NegotiationProposed     NegotiationAction = "proposed"
	NegotiationAccepted     NegotiationAction = "accepted"
	NegotiationStatusChange NegotiationAction = "status_changed"
)

// NegotiationEntry is one line of the append-only negotiation log.
type NegotiationEntry struct {
	ProposedBy primitive.ObjectID `bson:"proposed_by" json:"proposedBy"`
	Action     NegotiationAction  `bson:"action" json:"action"`
	Changes    *OfferTerms        `bson:"changes,omitempty" json:"changes,omitempty"`
	Message    string             `bson:"message,omitempty" json:"message,omitempty"`
	At         time.Time          `bson:"at" json:"at"`
}

type CounterOfferStatus string

const (
	OfferPending    CounterOfferStatus = "pending"
	OfferAccepted   CounterOfferStatus = "accepted"
	OfferSuperseded CounterOfferStatus = "superseded"
)

// CounterOffer is an entry of the append-only counter-offer log. Only the
// status of an entry ever changes.
type CounterOffer struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	ProposedBy  primitive.ObjectID `bson:"proposed_by" json:"proposedBy"`
	Terms       OfferTerms         `bson:"terms" json:"terms"`
	TotalAmount float64            `bson:"total_amount" json:"totalAmount"`
	Status      CounterOfferStatus `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	RespondedAt *time.Time         `bson:"responded_at,omitempty" json:"respondedAt,omitempty"`
}

// ProgressUpdate is a farmer-authored note on the crop.
type ProgressUpdate struct {
	Note      string      `bson:"note" json:"note"`
	Stage     GrowthStage `bson:"stage,omitempty" json:"stage,omitempty"`
	Images    []string    `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
}

// PaymentRef links a Payment into contract.payments[stage].
type PaymentRef struct {
	Payment   primitive.ObjectID `bson:"payment" json:"payment"`
	Status    PaymentStatus      `bson:"status" json:"status"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type StagePayments struct {
	Advance []PaymentRef `bson:"advance" json:"advance"`
	Midterm []PaymentRef `bson:"midterm" json:"midterm"`
	Final   []PaymentRef `bson:"final" json:"final"`
}

func (s *StagePayments) ForStage(stage PaymentStage) []PaymentRef {
	switch stage {
	case StageAdvance:
		return s.Advance
	case StageMidterm:
		return s.Midterm
	case StageFinal:
		return s.Final
	}
	return nil
}

// Contract is a negotiated agreement between a farmer and a buyer for one crop.
type Contract struct {
	Base                `bson:",inline"`
	Farmer              primitive.ObjectID `bson:"farmer" json:"farmer"`
	Buyer               primitive.ObjectID `bson:"buyer" json:"buyer"`
	Crop                primitive.ObjectID `bson:"crop" json:"crop"`
	Quantity            float64            `bson:"quantity" json:"quantity"`
	Unit                string             `bson:"unit" json:"unit"`
	PricePerUnit        float64            `bson:"price_per_unit" json:"pricePerUnit"`
	TotalAmount         float64            `bson:"total_amount" json:"totalAmount"`
	DeliveryDate        *time.Time         `bson:"delivery_date,omitempty" json:"deliveryDate,omitempty"`
	PaymentTerms        PaymentTerms       `bson:"payment_terms" json:"paymentTerms"`
	SpecialRequirements string             `bson:"special_requirements,omitempty" json:"specialRequirements,omitempty"`
	Status              ContractStatus     `bson:"status" json:"status"`
	Version             int64              `bson:"version" json:"version"`
	NegotiationHistory  []NegotiationEntry `bson:"negotiation_history" json:"negotiationHistory"`
	CounterOffers       []CounterOffer     `bson:"counter_offers" json:"counterOffers"`
	ProgressUpdates     []ProgressUpdate   `bson:"progress_updates" json:"progressUpdates"`
	Payments            StagePayments      `bson:"payments" json:"payments"`
	DocumentKey         string             `bson:"document_key,omitempty" json:"documentKey,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (c *Contract) IsParty(userID primitive.ObjectID) bool {
	return userID == c.Farmer || userID == c.Buyer
}

// Counterparty returns the other party, or the zero id if userID is not a party.
func (c *Contract) Counterparty(userID primitive.ObjectID) primitive.ObjectID {
	switch userID {
	case c.Farmer:
		return c.Buyer
	case c.Buyer:
		return c.Farmer
	}
	return primitive.NilObjectID
}

// LatestCounterOffer returns the index of the newest counter-offer, or -1.
func (c *Contract) LatestCounterOffer() int {
	return len(c.CounterOffers) - 1
}

// PendingOffer returns the index of the newest offer if it is still pending, or -1.
func (c *Contract) PendingOffer() int {
	i := c.LatestCounterOffer()
	if i >= 0 && c.CounterOffers[i].Status == OfferPending {
		return i
	}
	return -1
}

// ApplyTerms copies the dimensions present in o onto the contract and
// recomputes the total.
func (c *Contract) ApplyTerms(o OfferTerms) {
	if o.Quantity != nil {
		c.Quantity = *o.Quantity
	}
	if o.PricePerUnit != nil {
		c.PricePerUnit = *o.PricePerUnit
	}
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		c.DeliveryDate = &d
	}
	if o.PaymentTerms != nil {
		c.PaymentTerms = *o.PaymentTerms
	}
	c.TotalAmount = ComputeTotal(c.Quantity, c.PricePerUnit)
}

// ProjectedTotal is the total the contract would have if o were applied.
func (c *Contract) ProjectedTotal(o OfferTerms) float64 {
	q, p := c.Quantity, c.PricePerUnit
	if o.Quantity != nil {
		q = *o.Quantity
	}
	if o.PricePerUnit != nil {
		p = *o.PricePerUnit
	}
	return ComputeTotal(q, p)
}

// StageAmount is the amount due for stage under the current terms.
func (c *Contract) StageAmount(stage PaymentStage) float64 {
	return RoundMoney(c.TotalAmount * c.PaymentTerms.Percentage(stage) / 100)
}

// LatestCompletedStage returns the furthest stage with a completed payment.
func (c *Contract) LatestCompletedStage() (PaymentStage, bool) {
	for i := len(PaymentStages) - 1; i >= 0; i-- {
		for _, ref := range c.Payments.ForStage(PaymentStages[i]) {
			if ref.Status == PaymentCompleted {
				return PaymentStages[i], true
			}
		}
	}
	return "", false
}
