package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/models"
	"agrolink/api/internal/utils"
)

func TestSaveTemplate_RejectsBrokenTemplates(t *testing.T) {
	svc := NewEmailTemplateService(nil)

	err := svc.SaveTemplate(context.Background(), &models.EmailTemplate{TemplateID: "otp_code", Subject: "Code", Body: "{{.otp"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.From(err).Status)
}

func TestEmailTemplates_LocaleFallback(t *testing.T) {
	database := utils.SetupTestDB(t, "agrolink_templates", emailTemplatesCollection)
	svc := NewEmailTemplateService(database)
	ctx := context.Background()

	builtin, err := svc.GetTemplate(ctx, "otp_code", "hi-IN")
	require.NoError(t, err)
	assert.Equal(t, defaultEmailTemplates["otp_code"].Subject, builtin.Subject)

	require.NoError(t, svc.SaveTemplate(ctx, &models.EmailTemplate{TemplateID: "otp_code", Subject: "Default code", Body: "{{.otp}}"}))
	fallback, err := svc.GetTemplate(ctx, "otp_code", "hi-IN")
	require.NoError(t, err)
	assert.Equal(t, "Default code", fallback.Subject)

	require.NoError(t, svc.SaveTemplate(ctx, &models.EmailTemplate{TemplateID: "otp_code", Locale: "hi-IN", Subject: "आपका कोड", Body: "{{.otp}}"}))
	localized, err := svc.GetTemplate(ctx, "otp_code", "hi-IN")
	require.NoError(t, err)
	assert.Equal(t, "आपका कोड", localized.Subject)

	_, err = svc.GetTemplate(ctx, "no_such_template", "")
	assert.Equal(t, http.StatusNotFound, apperr.From(err).Status)
}
