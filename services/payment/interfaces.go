package payment

import (
	"context"

	"github.com/stripe/stripe-go/v72"
)

type CustomerInput struct {
	Name     string
	Email    string
	Phone    string
	Metadata map[string]string
}

type SubscriptionInput struct {
	CustomerID string
	PriceID    string
	Coupon     string
}

// Gateway is the subset of the payment provider API the checkout uses.
type Gateway interface {
	FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error)
	CreateCustomer(ctx context.Context, in CustomerInput) (*stripe.Customer, error)
	// CreateSubscription leaves the subscription incomplete until the client
	// confirms payment and expands latest_invoice.payment_intent.
	CreateSubscription(ctx context.Context, in SubscriptionInput) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	// GetInvoice expands payment_intent.payment_method.
	GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error)
}
