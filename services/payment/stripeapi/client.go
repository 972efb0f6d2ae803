package stripeapi

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"washclub-checkout-api/services/payment"
)

// Client talks to Stripe through stripe-go. It implements payment.Gateway.
type Client struct {
	api    *client.API
	logger logrus.FieldLogger
}

// NewClient builds a client for secretKey. backends may be nil to use the
// default Stripe endpoints.
func NewClient(secretKey string, backends *stripe.Backends, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		api:    client.New(secretKey, backends),
		logger: logger,
	}
}

var _ payment.Gateway = (*Client)(nil)

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	start := time.Now()
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := c.api.Customers.List(params)
	var found *stripe.Customer
	if iter.Next() {
		found = iter.Customer()
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	c.logger.WithField("elapsed", time.Since(start)).WithField("found", found != nil).Debug("stripe: customer lookup")
	return found, nil
}

func (c *Client) CreateCustomer(ctx context.Context, in payment.CustomerInput) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(in.Name),
		Email: stripe.String(in.Email),
		Phone: stripe.String(in.Phone),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return cus, nil
}

func (c *Client) CreateSubscription(ctx context.Context, in payment.SubscriptionInput) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(in.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	if in.Coupon != "" {
		params.Coupon = stripe.String(in.Coupon)
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.payment_method")
	inv, err := c.api.Invoices.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return inv, nil
}
