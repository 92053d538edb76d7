// Package document renders the printable contract agreement.
package document

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"agrolink/api/internal/models"
)

// ContractDocument is everything printed on a contract agreement.
type ContractDocument struct {
	Contract    *models.Contract
	Farmer      *models.User
	Buyer       *models.User
	ProductName string
	VerifyURL   string // base URL encoded in the QR code
	Secret      string // signs the QR payload
	GeneratedAt time.Time
}

// VerificationCode signs the contract id and version so a printed copy can
// be matched to the exact terms it was generated from.
func VerificationCode(contractID string, version int64, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%s|%d", contractID, version)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// QRPayload is the text encoded in the document's QR code.
func (d *ContractDocument) QRPayload() string {
	id := d.Contract.ID.Hex()
	code := VerificationCode(id, d.Contract.Version, d.Secret)
	return fmt.Sprintf("%s/contracts/%s/verify?v=%d&code=%s", d.VerifyURL, id, d.Contract.Version, code)
}

// Render produces the PDF bytes.
func Render(d *ContractDocument) ([]byte, error) {
	if d.Contract == nil || d.Farmer == nil || d.Buyer == nil {
		return nil, fmt.Errorf("contract document requires contract, farmer and buyer")
	}
	c := d.Contract
	generatedAt := d.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	qrPNG, err := qrcode.Encode(d.QRPayload(), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Contract "+c.ID.Hex(), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Farming Contract Agreement")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Contract ID: %s", c.ID.Hex()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s (revision %d)", generatedAt.Format("2006-01-02 15:04 MST"), c.Version))
	pdf.Ln(10)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 10, 35, 35, false, imageOpts, 0, "")

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(9)
		pdf.SetFont("Arial", "", 11)
	}
	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(55, 7, tr(label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, tr(value), "1", 1, "L", false, 0, "")
	}

	section("Parties")
	farm := ""
	if d.Farmer.Farm != nil {
		farm = fmt.Sprintf(" (%s, %s)", d.Farmer.Farm.FarmName, d.Farmer.Farm.Location)
	}
	row("Farmer", d.Farmer.Name+farm)
	row("Farmer email", d.Farmer.Email)
	row("Buyer", d.Buyer.Name)
	row("Buyer email", d.Buyer.Email)
	pdf.Ln(6)

	section("Terms")
	row("Crop", d.ProductName)
	row("Quantity", fmt.Sprintf("%g %s", c.Quantity, c.Unit))
	row("Price per unit", fmt.Sprintf("%.2f", c.PricePerUnit))
	row("Total amount", fmt.Sprintf("%.2f", c.TotalAmount))
	delivery := "To be agreed"
	if c.DeliveryDate != nil {
		delivery = c.DeliveryDate.Format("2006-01-02")
	}
	row("Delivery date", delivery)
	pdf.Ln(6)

	section("Payment schedule")
	for _, stage := range models.PaymentStages {
		row(string(stage), fmt.Sprintf("%g%%  =  %.2f", c.PaymentTerms.Percentage(stage), c.StageAmount(stage)))
	}
	pdf.Ln(6)

	if c.SpecialRequirements != "" {
		section("Special requirements")
		pdf.MultiCell(0, 6, tr(c.SpecialRequirements), "", "L", false)
		pdf.Ln(4)
	}

	section("Signatures")
	pdf.Ln(14)
	pdf.CellFormat(85, 7, "Farmer", "T", 0, "C", false, 0, "")
	pdf.CellFormat(20, 7, "", "", 0, "", false, 0, "")
	pdf.CellFormat(85, 7, "Buyer", "T", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render contract PDF: %w", err)
	}
	return buf.Bytes(), nil
}
