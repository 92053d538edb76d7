package handlers

import (
	"github.com/gin-gonic/gin"

	"agrolink/api/internal/services"
)

// ChatHandler handles /chat requests. The same operations are reachable
// over the websocket.
type ChatHandler struct {
	chatService services.IChatService
}

func NewChatHandler(chatService services.IChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ListMessages handles GET /chat/contracts/:contractId/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "contractId")
	if !valid {
		return
	}
	messages, err := h.chatService.ListMessages(c.Request.Context(), contractID, actor, queryInt(c, "limit", 0))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"messages": messages})
}

// SendMessage handles POST /chat/contracts/:contractId/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "contractId")
	if !valid {
		return
	}
	var in services.SendMessageInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.chatService.SendMessage(c.Request.Context(), contractID, actor, in)
	if err != nil {
		fail(c, err)
		return
	}
	payload := gin.H{"message": res.Message}
	if res.Contract != nil {
		payload["contract"] = res.Contract
	}
	created(c, withEffects(payload, res.Effects))
}

// MarkRead handles PUT /chat/contracts/:contractId/messages/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "contractId")
	if !valid {
		return
	}
	count, err := h.chatService.MarkRead(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": count})
}

// AcceptOffer handles PUT /chat/contracts/:contractId/messages/accept-offer
func (h *ChatHandler) AcceptOffer(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	contractID, valid := pathID(c, "contractId")
	if !valid {
		return
	}
	res, err := h.chatService.AcceptOffer(c.Request.Context(), contractID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, withEffects(gin.H{"message": res.Message, "contract": res.Contract}, res.Effects))
}

// UnreadCount handles GET /chat/unread?contractId=
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	if hex := c.Query("contractId"); hex != "" {
		id, err := parseObjectID(hex, "contractId")
		if err != nil {
			fail(c, err)
			return
		}
		count, err := h.chatService.UnreadCount(c.Request.Context(), actor.ID, &id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"contractId": hex, "unreadCount": count})
		return
	}
	count, err := h.chatService.UnreadCount(c.Request.Context(), actor.ID, nil)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"unreadCount": count})
}
