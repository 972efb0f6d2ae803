package email

import "github.com/shopspring/decimal"

// Confirmation is what the welcome email tells a new member.
type Confirmation struct {
	To             string
	Name           string
	PlanName       string
	Period         string
	Price          decimal.Decimal
	LicensePlate   string
	SubscriptionID string
}

type EmailSender interface {
	SendEmail(to, subject, body string) error
	SendSubscriptionConfirmation(c Confirmation) error
}
