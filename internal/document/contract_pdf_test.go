package document

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/models"
)

func testDocument() *ContractDocument {
	delivery := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &ContractDocument{
		Contract: &models.Contract{
			Base:                models.NewBase(),
			Quantity:            8,
			Unit:                "kg",
			PricePerUnit:        50,
			TotalAmount:         400,
			DeliveryDate:        &delivery,
			PaymentTerms:        models.DefaultPaymentTerms(),
			SpecialRequirements: "Organic, no pesticide residue",
			Status:              models.StatusAccepted,
			Version:             4,
		},
		Farmer:      &models.User{Base: models.NewBase(), Name: "Asha Patil", Email: "asha@example.com", Farm: &models.FarmDetails{FarmName: "Green Acres", Location: "Nashik"}},
		Buyer:       &models.User{Base: models.NewBase(), Name: "Ravi Kumar", Email: "ravi@example.com"},
		ProductName: "Tomatoes",
		VerifyURL:   "https://agrolink.example.com",
		Secret:      "secret",
		GeneratedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	out, err := Render(testDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")), "output should be a PDF")
	assert.Greater(t, len(out), 1000)
}

func TestRender_RequiresParties(t *testing.T) {
	doc := testDocument()
	doc.Buyer = nil
	_, err := Render(doc)
	assert.Error(t, err)
}

func TestVerificationCode(t *testing.T) {
	id := primitive.NewObjectID().Hex()

	a := VerificationCode(id, 3, "secret")
	assert.Len(t, a, 16)
	assert.Equal(t, a, VerificationCode(id, 3, "secret"))
	assert.NotEqual(t, a, VerificationCode(id, 4, "secret"), "a new revision must change the code")
	assert.NotEqual(t, a, VerificationCode(id, 3, "other"))
}

func TestQRPayload(t *testing.T) {
	doc := testDocument()
	payload := doc.QRPayload()
	assert.Contains(t, payload, "https://agrolink.example.com/contracts/"+doc.Contract.ID.Hex()+"/verify?v=4&code=")
}
