package models

// EmailTemplate is a DB-stored subject/body pair rendered by the email delivery task.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"templateId"` // e.g. "contract_request", "payment_completed"
	Locale     string `bson:"locale" json:"locale"`
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
