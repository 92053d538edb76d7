package handlers_test

import (
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

func setupChatRouter(actor *services.Actor) (*MockChatService, http.Handler) {
	svc := new(MockChatService)
	h := handlers.NewChatHandler(svc)
	r := newTestRouter(actor)
	r.GET("/chat/unread", h.UnreadCount)
	r.GET("/chat/contracts/:contractId/messages", h.ListMessages)
	r.POST("/chat/contracts/:contractId/messages", h.SendMessage)
	r.PUT("/chat/contracts/:contractId/messages/read", h.MarkRead)
	r.PUT("/chat/contracts/:contractId/messages/accept-offer", h.AcceptOffer)
	return svc, r
}

func TestChatHandler_ListMessages(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupChatRouter(&buyer)

	contractID := primitive.NewObjectID()
	svc.On("ListMessages", mock.Anything, contractID, buyer, int64(20)).
		Return([]models.Message{{Content: "hello"}}, nil)

	w, resp := doJSON(t, r, http.MethodGet, "/chat/contracts/"+contractID.Hex()+"/messages?limit=20", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["messages"], 1)
	svc.AssertExpectations(t)
}

func TestChatHandler_SendMessageNotParty(t *testing.T) {
	outsider := buyerActor()
	svc, r := setupChatRouter(&outsider)

	contractID := primitive.NewObjectID()
	svc.On("SendMessage", mock.Anything, contractID, outsider, mock.Anything).
		Return(nil, apperr.Forbidden("You are not a party to this contract"))

	w, resp := doJSON(t, r, http.MethodPost, "/chat/contracts/"+contractID.Hex()+"/messages", map[string]string{"content": "hi"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You are not a party to this contract", resp["message"])
	svc.AssertExpectations(t)
}

func TestChatHandler_SendCounterOffer(t *testing.T) {
	farmer := farmerActor()
	svc, r := setupChatRouter(&farmer)

	contractID := primitive.NewObjectID()
	svc.On("SendMessage", mock.Anything, contractID, farmer, mock.MatchedBy(func(in services.SendMessageInput) bool {
		return in.MessageType == models.MessageCounterOffer && in.Offer != nil && in.Offer.Type == models.OfferQuantity
	})).Return(&services.MessageResult{
		Message:  &models.Message{MessageType: models.MessageCounterOffer},
		Contract: &models.Contract{Status: models.StatusNegotiating},
	}, nil)

	w, resp := doJSON(t, r, http.MethodPost, "/chat/contracts/"+contractID.Hex()+"/messages", map[string]interface{}{
		"messageType":  "counterOffer",
		"content":      "How about 80kg?",
		"offerDetails": map[string]interface{}{"offerType": "quantity", "quantity": 80},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "negotiating", resp["contract"].(map[string]interface{})["status"])
	svc.AssertExpectations(t)
}

func TestChatHandler_MarkReadAndUnread(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupChatRouter(&buyer)

	contractID := primitive.NewObjectID()
	svc.On("MarkRead", mock.Anything, contractID, buyer).Return(int64(3), nil)
	svc.On("UnreadCount", mock.Anything, buyer.ID, &contractID).Return(int64(0), nil)
	svc.On("UnreadCount", mock.Anything, buyer.ID, (*primitive.ObjectID)(nil)).Return(int64(5), nil)

	w, resp := doJSON(t, r, http.MethodPut, "/chat/contracts/"+contractID.Hex()+"/messages/read", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, resp["updated"])

	w, resp = doJSON(t, r, http.MethodGet, "/chat/unread?contractId="+contractID.Hex(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, resp["unreadCount"])
	assert.Equal(t, contractID.Hex(), resp["contractId"])

	w, resp = doJSON(t, r, http.MethodGet, "/chat/unread", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5.0, resp["unreadCount"])
	svc.AssertExpectations(t)
}

func TestChatHandler_AcceptOffer(t *testing.T) {
	buyer := buyerActor()
	svc, r := setupChatRouter(&buyer)

	contractID := primitive.NewObjectID()
	svc.On("AcceptOffer", mock.Anything, contractID, buyer).Return(&services.MessageResult{
		Message:  &models.Message{MessageType: models.MessageText, Content: "Offer accepted"},
		Contract: &models.Contract{Status: models.StatusAccepted},
	}, nil)

	w, resp := doJSON(t, r, http.MethodPut, "/chat/contracts/"+contractID.Hex()+"/messages/accept-offer", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accepted", resp["contract"].(map[string]interface{})["status"])
	svc.AssertExpectations(t)
}
