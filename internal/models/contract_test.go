package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractTotal_IsQuantityTimesPrice(t *testing.T) {
	cases := []struct{ quantity, price float64 }{
		{10, 50},
		{0.5, 0.01},
		{2.5, 3.333},
		{1.75, 19.99},
		{333.3, 0.07},
	}
	for _, tc := range cases {
		q, p := tc.quantity, tc.price
		c := Contract{Quantity: 1, PricePerUnit: 1, PaymentTerms: DefaultPaymentTerms()}
		c.TotalAmount = ComputeTotal(c.Quantity, c.PricePerUnit)

		offer := OfferTerms{Type: OfferFull, Quantity: &q, PricePerUnit: &p}
		assert.Equal(t, q*p, c.ProjectedTotal(offer), "projected %g x %g", q, p)

		c.ApplyTerms(offer)
		assert.Equal(t, c.Quantity*c.PricePerUnit, c.TotalAmount, "applied %g x %g", q, p)
	}
}

func TestContractTotal_PartialOfferKeepsOtherDimension(t *testing.T) {
	c := Contract{Quantity: 2.5, PricePerUnit: 10}
	price := 3.333

	c.ApplyTerms(OfferTerms{Type: OfferPrice, PricePerUnit: &price})

	assert.Equal(t, 2.5, c.Quantity)
	assert.Equal(t, 2.5*3.333, c.TotalAmount)
}

func TestStageAmount_RoundsWhenCharged(t *testing.T) {
	c := Contract{
		TotalAmount:  ComputeTotal(2.5, 3.333),
		PaymentTerms: PaymentTerms{AdvancePercentage: 100},
	}

	assert.Equal(t, 8.33, c.StageAmount(StageAdvance))
	assert.Zero(t, c.StageAmount(StageMidterm))
}
