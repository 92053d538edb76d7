package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/models"
	"agrolink/api/internal/services"
)

// EmailTemplateStore reads and writes DB-stored email templates.
type EmailTemplateStore interface {
	services.IEmailTemplateService
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
}

// AdminHandler handles /admin requests.
type AdminHandler struct {
	templates EmailTemplateStore
}

func NewAdminHandler(templates EmailTemplateStore) *AdminHandler {
	return &AdminHandler{templates: templates}
}

type templateRequest struct {
	Locale  string `json:"locale"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GetEmailTemplate handles GET /admin/email-templates/:templateId?locale=
func (h *AdminHandler) GetEmailTemplate(c *gin.Context) {
	template, err := h.templates.GetTemplate(c.Request.Context(), c.Param("templateId"), c.Query("locale"))
	if err != nil {
		fail(c, apperr.NotFound("Email template not found"))
		return
	}
	ok(c, gin.H{"template": template})
}

// SaveEmailTemplate handles PUT /admin/email-templates/:templateId
func (h *AdminHandler) SaveEmailTemplate(c *gin.Context) {
	var in templateRequest
	if !bindJSON(c, &in) {
		return
	}
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Body) == "" {
		fail(c, apperr.BadRequest("Subject and body are required"))
		return
	}
	template := &models.EmailTemplate{
		TemplateID: c.Param("templateId"),
		Locale:     in.Locale,
		Subject:    in.Subject,
		Body:       in.Body,
	}
	if err := h.templates.SaveTemplate(c.Request.Context(), template); err != nil {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			err = apperr.Internal("Failed to save email template", err)
		}
		fail(c, err)
		return
	}
	ok(c, gin.H{"template": template})
}
