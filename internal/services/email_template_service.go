package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/models"
)

const defaultLocale = "en-US"

// defaultEmailTemplates are served when no stored template matches.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	"otp_code": {
		TemplateID: "otp_code",
		Locale:     defaultLocale,
		Subject:    "Your AgroLink verification code",
		Body:       "Hello {{.name}},\n\nYour verification code is {{.otp}}. It expires in {{.minutes}} minutes.",
	},
	"contract_request": {
		TemplateID: "contract_request",
		Locale:     defaultLocale,
		Subject:    "New contract request",
		Body:       "Hello {{.name}},\n\n{{.message}}\nTotal: {{.total}}\n\nReview it at {{.link}}",
	},
	"contract_counter_offer": {
		TemplateID: "contract_counter_offer",
		Locale:     defaultLocale,
		Subject:    "New counter-offer on your contract",
		Body:       "Hello {{.name}},\n\n{{.message}}\nProposed total: {{.total}}\n\nRespond at {{.link}}",
	},
	"contract_accepted": {
		TemplateID: "contract_accepted",
		Locale:     defaultLocale,
		Subject:    "Contract accepted",
		Body:       "Hello {{.name}},\n\n{{.message}}\nAgreed total: {{.total}}\n\nDetails at {{.link}}",
	},
	"contract_status": {
		TemplateID: "contract_status",
		Locale:     defaultLocale,
		Subject:    "Contract status changed to {{.status}}",
		Body:       "Hello {{.name}},\n\n{{.message}}\n\nDetails at {{.link}}",
	},
	"contract_progress": {
		TemplateID: "contract_progress",
		Locale:     defaultLocale,
		Subject:    "Progress update on your contract",
		Body:       "Hello {{.name}},\n\n{{.message}}\n\nSee the update at {{.link}}",
	},
	"payment_completed": {
		TemplateID: "payment_completed",
		Locale:     defaultLocale,
		Subject:    "Payment received for contract {{.contract_id}}",
		Body:       "Hello {{.name}},\n\nThe {{.stage}} payment of {{.amount}} has been received. The contract is now {{.status}}.",
	},
	"payment_completed_admin": {
		TemplateID: "payment_completed_admin",
		Locale:     defaultLocale,
		Subject:    "Payment {{.payment_id}} completed",
		Body:       "The {{.stage}} payment of {{.amount}} on contract {{.contract_id}} completed and is awaiting disbursement.",
	},
	"payment_disbursed": {
		TemplateID: "payment_disbursed",
		Locale:     defaultLocale,
		Subject:    "Payment disbursed",
		Body:       "Hello {{.name}},\n\n{{.message}}\n{{.notes}}",
	},
}

// IEmailTemplateService is what the email worker needs to render mail.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService stores admin-edited templates per locale on top of
// the built-in defaults.
type EmailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate looks up templateID in locale, then in the default locale,
// then among the built-in templates.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	locales := []string{defaultLocale}
	if locale != "" && locale != defaultLocale {
		locales = []string{locale, defaultLocale}
	}

	collection := s.db.Collection(emailTemplatesCollection)
	for _, l := range locales {
		var stored models.EmailTemplate
		err := collection.FindOne(ctx, bson.M{"template_id": templateID, "locale": l}).Decode(&stored)
		if err == nil {
			return &stored, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("load template %s/%s: %w", templateID, l, err)
		}
	}

	if builtin, ok := defaultEmailTemplates[templateID]; ok {
		return &builtin, nil
	}
	return nil, apperr.NotFound("Email template not found")
}

// SaveTemplate validates both parts as text/template and upserts the
// template for its locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	if tmpl.Locale == "" {
		tmpl.Locale = defaultLocale
	}
	for part, text := range map[string]string{"subject": tmpl.Subject, "body": tmpl.Body} {
		if _, err := template.New(part).Parse(text); err != nil {
			return apperr.New(http.StatusBadRequest, fmt.Sprintf("Invalid template %s", part), err)
		}
	}
	tmpl.GenIDIfEmpty()

	filter := bson.M{"template_id": tmpl.TemplateID, "locale": tmpl.Locale}
	update := bson.M{
		"$set":         bson.M{"subject": tmpl.Subject, "body": tmpl.Body, "updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{"_id": tmpl.ID},
	}
	_, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save template %s/%s: %w", tmpl.TemplateID, tmpl.Locale, err)
	}
	return nil
}
