package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/models"
)

var allStatuses = []models.ContractStatus{
	models.StatusRequested,
	models.StatusNegotiating,
	models.StatusAccepted,
	models.StatusActive,
	models.StatusReadyForHarvest,
	models.StatusHarvested,
	models.StatusDelivered,
	models.StatusCompleted,
	models.StatusCancelled,
	models.StatusDisputed,
}

func TestCanTransition_Graph(t *testing.T) {
	tests := []struct {
		from, to models.ContractStatus
		want     bool
	}{
		{models.StatusRequested, models.StatusAccepted, true},
		{models.StatusRequested, models.StatusActive, false},
		{models.StatusNegotiating, models.StatusAccepted, true},
		{models.StatusAccepted, models.StatusActive, true},
		{models.StatusAccepted, models.StatusHarvested, false},
		{models.StatusActive, models.StatusReadyForHarvest, true},
		{models.StatusActive, models.StatusHarvested, true},
		{models.StatusReadyForHarvest, models.StatusHarvested, true},
		{models.StatusHarvested, models.StatusDelivered, true},
		{models.StatusHarvested, models.StatusCompleted, true},
		{models.StatusDelivered, models.StatusCompleted, true},
		{models.StatusDelivered, models.StatusActive, false},
		{models.StatusActive, models.StatusNegotiating, true},
		{models.StatusDisputed, models.StatusCancelled, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, from := range []models.ContractStatus{models.StatusCompleted, models.StatusCancelled} {
		assert.True(t, IsTerminal(from))
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_NeverToPaymentPending(t *testing.T) {
	for _, from := range allStatuses {
		assert.False(t, CanTransition(from, models.StatusPaymentPending), from)
	}
}

func TestCanTransition_CounterOfferFromEveryOpenState(t *testing.T) {
	for _, from := range allStatuses {
		assert.Equal(t, !IsTerminal(from), CanTransition(from, models.StatusNegotiating), from)
	}
}

func TestCanPayStage_RequiresAcceptance(t *testing.T) {
	for _, stage := range models.PaymentStages {
		assert.False(t, CanPayStage(models.StatusRequested, stage), stage)
		assert.False(t, CanPayStage(models.StatusNegotiating, stage), stage)
	}
	assert.True(t, CanPayStage(models.StatusAccepted, models.StageAdvance))
	assert.False(t, CanPayStage(models.StatusAccepted, models.StageMidterm))
	assert.True(t, CanPayStage(models.StatusReadyForHarvest, models.StageMidterm))
	assert.True(t, CanPayStage(models.StatusDelivered, models.StageFinal))
	assert.False(t, CanPayStage(models.StatusCompleted, models.StageFinal))
}

func TestStageTarget(t *testing.T) {
	assert.Equal(t, models.StatusActive, StageTarget(models.StageAdvance))
	assert.Equal(t, models.StatusHarvested, StageTarget(models.StageMidterm))
	assert.Equal(t, models.StatusCompleted, StageTarget(models.StageFinal))
	assert.Equal(t, models.ContractStatus(""), StageTarget("bonus"))
}

func TestStageAdvance(t *testing.T) {
	next, ok := stageAdvance(models.StatusAccepted, models.StageAdvance)
	assert.True(t, ok)
	assert.Equal(t, models.StatusActive, next)

	next, ok = stageAdvance(models.StatusReadyForHarvest, models.StageMidterm)
	assert.True(t, ok)
	assert.Equal(t, models.StatusHarvested, next)

	// Renegotiating or disputed contracts are not moved by a late payment.
	_, ok = stageAdvance(models.StatusNegotiating, models.StageAdvance)
	assert.False(t, ok)
	_, ok = stageAdvance(models.StatusDisputed, models.StageMidterm)
	assert.False(t, ok)
	_, ok = stageAdvance(models.StatusActive, models.StageAdvance)
	assert.False(t, ok)
}

func TestAcceptedStatus_ResumesFurthestPaidStage(t *testing.T) {
	c := &models.Contract{}
	assert.Equal(t, models.StatusAccepted, acceptedStatus(c))

	c.Payments.Advance = []models.PaymentRef{{Payment: primitive.NewObjectID(), Status: models.PaymentCompleted}}
	assert.Equal(t, models.StatusActive, acceptedStatus(c))

	c.Payments.Midterm = []models.PaymentRef{{Payment: primitive.NewObjectID(), Status: models.PaymentFailed}}
	assert.Equal(t, models.StatusActive, acceptedStatus(c))

	c.Payments.Midterm = append(c.Payments.Midterm, models.PaymentRef{Payment: primitive.NewObjectID(), Status: models.PaymentCompleted})
	assert.Equal(t, models.StatusHarvested, acceptedStatus(c))
}
