package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"agrolink/api/internal/models"
	"agrolink/api/internal/services"
)

// ContractHandler handles /contracts requests.
type ContractHandler struct {
	contractService services.IContractService
}

func NewContractHandler(contractService services.IContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

type statusRequest struct {
	Status models.ContractStatus `json:"status"`
	Note   string                `json:"note"`
}

func contractPayload(message string, res *services.ContractResult) gin.H {
	payload := gin.H{"message": message, "contract": res.Contract}
	if res.CounterOffer != nil {
		payload["counterOffer"] = res.CounterOffer
	}
	return withEffects(payload, res.Effects)
}

// ListContracts handles GET /contracts?status=&limit=&skip=
func (h *ContractHandler) ListContracts(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	filter := services.ContractFilter{
		Status: models.ContractStatus(c.Query("status")),
		Limit:  queryInt(c, "limit", 50),
		Skip:   queryInt(c, "skip", 0),
	}
	contracts, err := h.contractService.List(c.Request.Context(), actor, filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"contracts": contracts, "count": len(contracts)})
}

// CreateRequest handles POST /contracts/request
func (h *ContractHandler) CreateRequest(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	var in services.CreateContractInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.contractService.CreateRequest(c.Request.Context(), actor, in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, contractPayload("Contract request sent", res))
}

// GetContract handles GET /contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	contract, err := h.contractService.Get(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"contract": contract})
}

// CounterOffer handles POST /contracts/:id/counter-offer and its
// /negotiate alias.
func (h *ContractHandler) CounterOffer(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var offer models.OfferTerms
	if !bindJSON(c, &offer) {
		return
	}
	res, err := h.contractService.SubmitCounterOffer(c.Request.Context(), contractID, actor, offer)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, contractPayload("Counter-offer submitted", res))
}

// Accept handles PUT /contracts/:id/accept (farmer only).
func (h *ContractHandler) Accept(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	res, err := h.contractService.Accept(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, contractPayload("Contract accepted", res))
}

// AcceptOffer handles PUT /contracts/:id/accept-offer
func (h *ContractHandler) AcceptOffer(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	res, err := h.contractService.AcceptOffer(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, contractPayload("Offer accepted", res))
}

// UpdateStatus handles PUT /contracts/:id/status
func (h *ContractHandler) UpdateStatus(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in statusRequest
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.contractService.UpdateStatus(c.Request.Context(), contractID, actor, in.Status, in.Note)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, contractPayload("Contract status updated", res))
}

// AddProgress handles POST /contracts/:id/progress (farmer only).
func (h *ContractHandler) AddProgress(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in services.ProgressInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.contractService.AddProgressUpdate(c.Request.Context(), contractID, actor, in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, contractPayload("Progress update added", res))
}

// Document handles GET /contracts/:id/document and streams the PDF.
func (h *ContractHandler) Document(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	doc, err := h.contractService.GenerateDocument(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, "application/pdf", doc.PDF)
}
