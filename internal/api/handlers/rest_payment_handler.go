package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/models"
	"agrolink/api/internal/services"
)

// PaymentHandler handles /payments requests and the gateway webhook.
type PaymentHandler struct {
	paymentService services.IPaymentService
}

func NewPaymentHandler(paymentService services.IPaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type createPaymentRequest struct {
	ContractID string              `json:"contractId"`
	Stage      models.PaymentStage `json:"stage"`
}

type disburseRequest struct {
	Notes string `json:"notes"`
}

func paymentPayload(res *services.PaymentResult) gin.H {
	payload := gin.H{"payment": res.Payment}
	if res.Contract != nil {
		payload["contract"] = res.Contract
	}
	return withEffects(payload, res.Effects)
}

// CreatePayment handles POST /payments/create
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	var in createPaymentRequest
	if !bindJSON(c, &in) {
		return
	}
	contractID, err := parseObjectID(in.ContractID, "contractId")
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.paymentService.CreatePayment(c.Request.Context(), contractID, actor, in.Stage)
	if err != nil {
		fail(c, err)
		return
	}
	payload := paymentPayload(res)
	payload["paymentUrl"] = res.Payment.PaymentURL
	created(c, payload)
}

// webhookPayload reads the gateway callback as a flat string map. The gateway
// posts form fields; JSON bodies are accepted for manual replays.
func webhookPayload(c *gin.Context) (map[string]string, error) {
	payload := make(map[string]string)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&payload); err != nil {
			return nil, apperr.BadRequest("Invalid webhook payload")
		}
		return payload, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return nil, apperr.BadRequest("Invalid webhook payload")
	}
	for key := range c.Request.PostForm {
		payload[key] = c.Request.PostForm.Get(key)
	}
	return payload, nil
}

// Webhook handles POST /payments/webhook. It is unauthenticated; the gateway
// signature (header or "mac" field) is checked by the service.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := webhookPayload(c)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.paymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader(services.WebhookSignatureHeader))
	if err != nil {
		log.Printf("Payment webhook for request %s rejected: %v", payload["payment_request_id"], err)
		fail(c, err)
		return
	}
	ok(c, gin.H{"alreadyProcessed": res.AlreadyProcessed, "status": res.Payment.Status})
}

// VerifyPayment handles GET /payments/:id/verify
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	paymentID, valid := pathID(c, "id")
	if !valid {
		return
	}
	res, err := h.paymentService.VerifyPayment(c.Request.Context(), paymentID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, paymentPayload(res))
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	paymentID, valid := pathID(c, "id")
	if !valid {
		return
	}
	payment, err := h.paymentService.Get(c.Request.Context(), paymentID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"payment": payment})
}

// ListForContract handles GET /contracts/:id/payments
func (h *PaymentHandler) ListForContract(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "id")
	if !valid {
		return
	}
	payments, err := h.paymentService.ListForContract(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"payments": payments})
}

// Disburse handles PUT /payments/:id/disburse (admin only).
func (h *PaymentHandler) Disburse(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	paymentID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in disburseRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &in) {
		return
	}
	res, err := h.paymentService.MarkAsDisbursed(c.Request.Context(), paymentID, actor, in.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, paymentPayload(res))
}

// ListAll handles GET /admin/payments (admin only). Supports ?status= and
// ?disbursed=true|false.
func (h *PaymentHandler) ListAll(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	filter := services.PaymentFilter{
		Status: models.PaymentStatus(c.Query("status")),
		Limit:  queryInt(c, "limit", 50),
		Skip:   queryInt(c, "skip", 0),
	}
	if raw := c.Query("disbursed"); raw != "" {
		disbursed, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, apperr.BadRequest("disbursed must be true or false"))
			return
		}
		filter.Disbursed = &disbursed
	}
	payments, err := h.paymentService.ListAll(c.Request.Context(), actor, filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"payments": payments, "count": len(payments)})
}
