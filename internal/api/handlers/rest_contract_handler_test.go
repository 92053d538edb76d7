package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/api/handlers"
	"agrolink/api/internal/apperr"
	"agrolink/api/internal/models"
	"agrolink/api/internal/services"
)

func setupContractRouter(actor *services.Actor) (*MockContractService, http.Handler) {
	svc := new(MockContractService)
	h := handlers.NewContractHandler(svc)
	r := newTestRouter(actor)
	r.GET("/contracts", h.ListContracts)
	r.POST("/contracts/request", h.CreateRequest)
	r.GET("/contracts/:id", h.GetContract)
	r.POST("/contracts/:id/counter-offer", h.CounterOffer)
	r.PUT("/contracts/:id/accept", h.Accept)
	r.PUT("/contracts/:id/accept-offer", h.AcceptOffer)
	r.PUT("/contracts/:id/status", h.UpdateStatus)
	r.POST("/contracts/:id/progress", h.AddProgress)
	r.GET("/contracts/:id/document", h.Document)
	return svc, r
}

func TestContractHandler_CreateRequest(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupContractRouter(&buyer)

	productID := primitive.NewObjectID()
	contract := &models.Contract{
		Base:        models.NewBase(),
		Buyer:       buyer.ID,
		Crop:        productID,
		Quantity:    100,
		Unit:        "kg",
		TotalAmount: 2500,
		Status:      models.StatusRequested,
	}
	svc.On("CreateRequest", mock.Anything, buyer, mock.MatchedBy(func(in services.CreateContractInput) bool {
		return in.ProductID == productID.Hex() && in.Quantity == 100 && in.PricePerUnit == 25
	})).Return(&services.ContractResult{Contract: contract}, nil)

	w, resp := doJSON(t, r, http.MethodPost, "/contracts/request", map[string]interface{}{
		"crop":         productID.Hex(),
		"quantity":     100,
		"unit":         "kg",
		"pricePerUnit": 25,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Contract request sent", resp["message"])
	body := resp["contract"].(map[string]interface{})
	assert.Equal(t, "requested", body["status"])
	assert.Equal(t, 2500.0, body["totalAmount"])
	assert.NotContains(t, resp, "failedEffects")
	svc.AssertExpectations(t)
}

func TestContractHandler_RequiresActor(t *testing.T) {
	svc, r := setupContractRouter(nil)

	w, resp := doJSON(t, r, http.MethodGet, "/contracts", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, resp["success"])
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestContractHandler_InvalidID(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupContractRouter(&buyer)

	w, resp := doJSON(t, r, http.MethodGet, "/contracts/not-an-id", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id", resp["message"])
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestContractHandler_ListPassesFilter(t *testing.T) {
	farmer := farmerActor()
	svc, r := setupContractRouter(&farmer)

	filter := services.ContractFilter{Status: models.StatusActive, Limit: 10, Skip: 20}
	svc.On("List", mock.Anything, farmer, filter).Return([]models.Contract{{Status: models.StatusActive}}, nil)

	w, resp := doJSON(t, r, http.MethodGet, "/contracts?status=active&limit=10&skip=20", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, resp["count"])
	svc.AssertExpectations(t)
}

func TestContractHandler_AcceptForbidden(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupContractRouter(&buyer)

	contractID := primitive.NewObjectID()
	svc.On("Accept", mock.Anything, contractID, buyer).Return(nil, apperr.Forbidden("Only the farmer can accept a contract"))

	w, resp := doJSON(t, r, http.MethodPut, "/contracts/"+contractID.Hex()+"/accept", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Only the farmer can accept a contract", resp["message"])
	assert.NotContains(t, resp, "error")
	svc.AssertExpectations(t)
}

func TestContractHandler_CounterOfferReportsFailedEffects(t *testing.T) {
	farmer := farmerActor()
	svc, r := setupContractRouter(&farmer)

	contractID := primitive.NewObjectID()
	price := 30.0
	offer := &models.CounterOffer{
		ID:     primitive.NewObjectID(),
		Terms:  models.OfferTerms{Type: models.OfferPrice, PricePerUnit: &price},
		Status: models.OfferPending,
	}
	res := &services.ContractResult{
		Contract:     &models.Contract{Base: models.Base{ID: contractID}, Status: models.StatusNegotiating},
		CounterOffer: offer,
		Effects: []services.EffectResult{
			{Name: "notification"},
			{Name: "email", Err: errors.New("queue unavailable")},
		},
	}
	svc.On("SubmitCounterOffer", mock.Anything, contractID, farmer, mock.MatchedBy(func(o models.OfferTerms) bool {
		return o.Type == models.OfferPrice && o.PricePerUnit != nil && *o.PricePerUnit == 30
	})).Return(res, nil)

	w, resp := doJSON(t, r, http.MethodPost, "/contracts/"+contractID.Hex()+"/counter-offer", map[string]interface{}{
		"offerType":    "price",
		"pricePerUnit": 30,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "negotiating", resp["contract"].(map[string]interface{})["status"])
	assert.Equal(t, "pending", resp["counterOffer"].(map[string]interface{})["status"])
	assert.Equal(t, []interface{}{"email"}, resp["failedEffects"])
	svc.AssertExpectations(t)
}

func TestContractHandler_UpdateStatus(t *testing.T) {
	farmer := farmerActor()
	svc, r := setupContractRouter(&farmer)

	contractID := primitive.NewObjectID()
	svc.On("UpdateStatus", mock.Anything, contractID, farmer, models.StatusReadyForHarvest, "Crop is ready").
		Return(&services.ContractResult{Contract: &models.Contract{Status: models.StatusReadyForHarvest}}, nil)

	w, resp := doJSON(t, r, http.MethodPut, "/contracts/"+contractID.Hex()+"/status", map[string]interface{}{
		"status": "readyForHarvest",
		"note":   "Crop is ready",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "readyForHarvest", resp["contract"].(map[string]interface{})["status"])
	svc.AssertExpectations(t)
}

func TestContractHandler_UpdateStatusConflict(t *testing.T) {
	farmer := farmerActor()
	svc, r := setupContractRouter(&farmer)

	contractID := primitive.NewObjectID()
	svc.On("UpdateStatus", mock.Anything, contractID, farmer, models.StatusCompleted, "").
		Return(nil, apperr.BadRequest("Cannot change status from requested to completed"))

	w, resp := doJSON(t, r, http.MethodPut, "/contracts/"+contractID.Hex()+"/status", map[string]interface{}{
		"status": "completed",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cannot change status from requested to completed", resp["message"])
	svc.AssertExpectations(t)
}

func TestContractHandler_AddProgressRequiresBody(t *testing.T) {
	farmer := farmerActor()
	svc, r := setupContractRouter(&farmer)

	w, resp := doJSON(t, r, http.MethodPost, "/contracts/"+primitive.NewObjectID().Hex()+"/progress", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Request body required", resp["message"])
	svc.AssertNotCalled(t, "AddProgressUpdate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContractHandler_Document(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupContractRouter(&buyer)

	contractID := primitive.NewObjectID()
	pdf := []byte("%PDF-1.3 test")
	svc.On("GenerateDocument", mock.Anything, contractID, buyer).Return(&services.ContractDocumentResult{
		PDF:      pdf,
		Filename: "contract-" + contractID.Hex() + ".pdf",
	}, nil)

	w, _ := doJSON(t, r, http.MethodGet, "/contracts/"+contractID.Hex()+"/document", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "contract-"+contractID.Hex()+".pdf")
	assert.Equal(t, pdf, w.Body.Bytes())
	svc.AssertExpectations(t)
}
