package services

import (
	"agrolink/api/internal/models"
)

// transitions is the contract status graph. Counter-offers, cancellation and
// disputes are added for every non-terminal state in CanTransition.
var transitions = map[models.ContractStatus][]models.ContractStatus{
	models.StatusRequested:       {models.StatusAccepted},
	models.StatusNegotiating:     {models.StatusAccepted},
	models.StatusAccepted:        {models.StatusActive},
	models.StatusActive:          {models.StatusReadyForHarvest, models.StatusHarvested},
	models.StatusReadyForHarvest: {models.StatusHarvested},
	models.StatusHarvested:       {models.StatusDelivered, models.StatusCompleted},
	models.StatusDelivered:       {models.StatusCompleted},
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s models.ContractStatus) bool {
	return s == models.StatusCompleted || s == models.StatusCancelled
}

// CanTransition reports whether a contract in from may move to to.
func CanTransition(from, to models.ContractStatus) bool {
	if IsTerminal(from) || to == models.StatusPaymentPending {
		return false
	}
	switch to {
	case models.StatusNegotiating, models.StatusCancelled, models.StatusDisputed:
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stagePrerequisites lists the statuses a contract must be in before a
// payment for the stage can be started, and before completing that payment
// moves the contract forward.
var stagePrerequisites = map[models.PaymentStage][]models.ContractStatus{
	models.StageAdvance: {models.StatusAccepted},
	models.StageMidterm: {models.StatusActive, models.StatusReadyForHarvest},
	models.StageFinal:   {models.StatusHarvested, models.StatusDelivered},
}

// CanPayStage reports whether a payment for stage may be started while the
// contract is in status.
func CanPayStage(status models.ContractStatus, stage models.PaymentStage) bool {
	for _, s := range stagePrerequisites[stage] {
		if s == status {
			return true
		}
	}
	return false
}

// StageTarget is the status a completed payment for stage moves the contract to.
func StageTarget(stage models.PaymentStage) models.ContractStatus {
	switch stage {
	case models.StageAdvance:
		return models.StatusActive
	case models.StageMidterm:
		return models.StatusHarvested
	case models.StageFinal:
		return models.StatusCompleted
	}
	return ""
}

// stageAdvance returns the status completing a stage payment moves the
// contract to, or false when the contract is not waiting on that stage
// (already past it, renegotiating, cancelled or disputed).
func stageAdvance(current models.ContractStatus, stage models.PaymentStage) (models.ContractStatus, bool) {
	target := StageTarget(stage)
	if !CanPayStage(current, stage) || !CanTransition(current, target) {
		return "", false
	}
	return target, true
}

// manualTarget describes a status a party may set through the status endpoint.
type manualTarget struct {
	farmerOnly bool
}

var manualTargets = map[models.ContractStatus]manualTarget{
	models.StatusCancelled:       {},
	models.StatusDisputed:        {},
	models.StatusReadyForHarvest: {farmerOnly: true},
	models.StatusDelivered:       {farmerOnly: true},
}

// acceptedStatus is the status a contract takes when terms are accepted.
// A contract renegotiated after stage payments completed resumes at the
// status of its furthest paid stage instead of going back to accepted.
func acceptedStatus(c *models.Contract) models.ContractStatus {
	stage, ok := c.LatestCompletedStage()
	if !ok {
		return models.StatusAccepted
	}
	return StageTarget(stage)
}
