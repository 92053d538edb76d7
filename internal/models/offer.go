package models

import (
	"fmt"
	"math"
	"time"

	"agrolink/api/internal/apperr"
)

// OfferType names which contract dimension a counter-offer revises.
type OfferType string

const (
	OfferQuantity     OfferType = "quantity"
	OfferPrice        OfferType = "price"
	OfferDelivery     OfferType = "delivery"
	OfferPaymentTerms OfferType = "payment_terms"
	OfferFull         OfferType = "full"
)

// PaymentTerms are the stage percentages of the contract total.
type PaymentTerms struct {
	AdvancePercentage float64 `bson:"advance_percentage" json:"advancePercentage" validate:"gte=0,lte=100"`
	MidtermPercentage float64 `bson:"midterm_percentage" json:"midtermPercentage" validate:"gte=0,lte=100"`
	FinalPercentage   float64 `bson:"final_percentage" json:"finalPercentage" validate:"gte=0,lte=100"`
}

func DefaultPaymentTerms() PaymentTerms {
	return PaymentTerms{AdvancePercentage: 20, MidtermPercentage: 50, FinalPercentage: 30}
}

// Percentage returns the share of the total due at stage.
func (t PaymentTerms) Percentage(stage PaymentStage) float64 {
	switch stage {
	case StageAdvance:
		return t.AdvancePercentage
	case StageMidterm:
		return t.MidtermPercentage
	case StageFinal:
		return t.FinalPercentage
	}
	return 0
}

// OfferTerms is a counter-offer. Type says which of the optional
// dimensions must be present; "full" requires at least one.
type OfferTerms struct {
	Type         OfferType     `bson:"type" json:"offerType" validate:"required,oneof=quantity price delivery payment_terms full"`
	Quantity     *float64      `bson:"quantity,omitempty" json:"quantity,omitempty" validate:"omitempty,gt=0"`
	PricePerUnit *float64      `bson:"price_per_unit,omitempty" json:"pricePerUnit,omitempty" validate:"omitempty,gt=0"`
	DeliveryDate *time.Time    `bson:"delivery_date,omitempty" json:"deliveryDate,omitempty"`
	PaymentTerms *PaymentTerms `bson:"payment_terms,omitempty" json:"paymentTerms,omitempty"`
	Message      string        `bson:"message,omitempty" json:"message,omitempty" validate:"max=2000"`
}

// Validate checks the tags and that the dimension named by Type is present.
func (o *OfferTerms) Validate() error {
	if err := Validate.Struct(o); err != nil {
		return err
	}
	switch o.Type {
	case OfferQuantity:
		if o.Quantity == nil {
			return apperr.BadRequest("Quantity offer requires quantity")
		}
	case OfferPrice:
		if o.PricePerUnit == nil {
			return apperr.BadRequest("Price offer requires pricePerUnit")
		}
	case OfferDelivery:
		if o.DeliveryDate == nil {
			return apperr.BadRequest("Delivery offer requires deliveryDate")
		}
	case OfferPaymentTerms:
		if o.PaymentTerms == nil {
			return apperr.BadRequest("Payment terms offer requires paymentTerms")
		}
	case OfferFull:
		if o.Quantity == nil && o.PricePerUnit == nil && o.DeliveryDate == nil && o.PaymentTerms == nil {
			return apperr.BadRequest("Offer must change at least one term")
		}
	}
	return nil
}

// Describe renders the offer as a one-line summary for chat and email.
func (o *OfferTerms) Describe() string {
	s := fmt.Sprintf("%s offer:", o.Type)
	if o.Quantity != nil {
		s += fmt.Sprintf(" quantity %g", *o.Quantity)
	}
	if o.PricePerUnit != nil {
		s += fmt.Sprintf(" price %g/unit", *o.PricePerUnit)
	}
	if o.DeliveryDate != nil {
		s += " delivery " + o.DeliveryDate.Format("2006-01-02")
	}
	if o.PaymentTerms != nil {
		s += fmt.Sprintf(" terms %g/%g/%g", o.PaymentTerms.AdvancePercentage, o.PaymentTerms.MidtermPercentage, o.PaymentTerms.FinalPercentage)
	}
	return s
}

// ComputeTotal returns quantity x price. It is stored unrounded; amounts are
// rounded to two decimals only when they are charged.
func ComputeTotal(quantity, pricePerUnit float64) float64 {
	return quantity * pricePerUnit
}

// RoundMoney rounds v to two decimals.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
