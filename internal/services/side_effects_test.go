package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/models"
)

func TestRunEffects_ReportsEachOutcome(t *testing.T) {
	ran := []string{}
	results := runEffects(context.Background(), "test",
		newEffect("first", func(ctx context.Context) error {
			ran = append(ran, "first")
			return nil
		}),
		newEffect("second", func(ctx context.Context) error {
			ran = append(ran, "second")
			return errors.New("smtp down")
		}),
		newEffect("third", func(ctx context.Context) error {
			ran = append(ran, "third")
			return nil
		}),
	)

	assert.Equal(t, []string{"first", "second", "third"}, ran)
	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.EqualError(t, results[1].Err, "smtp down")
	assert.True(t, results[2].OK())
}

func TestRunEffects_RecoversPanic(t *testing.T) {
	results := runEffects(context.Background(), "test",
		newEffect("boom", func(ctx context.Context) error {
			panic("nil map")
		}),
		newEffect("after", func(ctx context.Context) error { return nil }),
	)
	require.Len(t, results, 2)
	assert.ErrorContains(t, results[0].Err, "panic: nil map")
	assert.True(t, results[1].OK())
}

func TestRooms(t *testing.T) {
	id, err := primitive.ObjectIDFromHex("64b7f0c2a1b2c3d4e5f60718")
	require.NoError(t, err)
	assert.Equal(t, "user:64b7f0c2a1b2c3d4e5f60718", UserRoom(id))
	assert.Equal(t, "contract:64b7f0c2a1b2c3d4e5f60718", ContractRoom(id))
}

func TestSupersedePending_CopiesAndCloses(t *testing.T) {
	now := time.Now().UTC()
	offers := []models.CounterOffer{
		{ID: primitive.NewObjectID(), Status: models.OfferSuperseded},
		{ID: primitive.NewObjectID(), Status: models.OfferPending},
	}
	out := supersedePending(offers, now)

	require.Len(t, out, 2)
	assert.Equal(t, models.OfferSuperseded, out[1].Status)
	require.NotNil(t, out[1].RespondedAt)
	assert.Equal(t, models.OfferPending, offers[1].Status, "input must not be modified")
}

func TestAcceptanceUpdate_AppliesOffer(t *testing.T) {
	farmer, buyer := primitive.NewObjectID(), primitive.NewObjectID()
	qty := 8.0
	c := &models.Contract{
		Farmer:       farmer,
		Buyer:        buyer,
		Quantity:     10,
		PricePerUnit: 50,
		TotalAmount:  500,
		PaymentTerms: models.DefaultPaymentTerms(),
		Status:       models.StatusNegotiating,
		CounterOffers: []models.CounterOffer{{
			ID:         primitive.NewObjectID(),
			ProposedBy: farmer,
			Terms:      models.OfferTerms{Type: models.OfferQuantity, Quantity: &qty},
			Status:     models.OfferPending,
		}},
	}

	update := acceptanceUpdate(c, buyer, 0, time.Now().UTC())
	set := update["$set"].(bson.M)
	assert.Equal(t, 8.0, set["quantity"])
	assert.Equal(t, 400.0, set["total_amount"])
	assert.Equal(t, models.StatusAccepted, set["status"])

	offers := set["counter_offers"].([]models.CounterOffer)
	assert.Equal(t, models.OfferAccepted, offers[0].Status)
	assert.Equal(t, models.OfferPending, c.CounterOffers[0].Status)
	assert.Equal(t, 10.0, c.Quantity, "contract snapshot must not be modified")
}

func TestAcceptanceUpdate_WithoutOfferKeepsTerms(t *testing.T) {
	c := &models.Contract{Quantity: 10, PricePerUnit: 50, TotalAmount: 500, Status: models.StatusRequested}
	update := acceptanceUpdate(c, primitive.NewObjectID(), -1, time.Now().UTC())
	set := update["$set"].(bson.M)
	assert.Equal(t, 10.0, set["quantity"])
	assert.Equal(t, 500.0, set["total_amount"])
	assert.Equal(t, models.StatusAccepted, set["status"])
}
