package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"

	"washclub-checkout-api/models"
)

// FirstMonthCoupon is the promotion applied to monthly sign-ups on the
// discounted tiers.
const FirstMonthCoupon = "first-month-five"

var (
	// ErrCheckoutSession is the only error CreateCheckoutSession reports to callers.
	ErrCheckoutSession = errors.New("failed to create checkout session")
	ErrInvalidPlan     = errors.New("invalid plan or period")
)

type Stage string

const (
	StagePrice        Stage = "price"
	StageCustomer     Stage = "customer"
	StageSubscription Stage = "subscription"
	StageResponse     Stage = "response"
)

// AssemblyError prints as ErrCheckoutSession. Stage and the cause stay
// available through errors.As for logging.
type AssemblyError struct {
	Stage Stage
	Err   error
}

func (e *AssemblyError) Error() string {
	return ErrCheckoutSession.Error()
}

func (e *AssemblyError) Unwrap() []error {
	return []error{ErrCheckoutSession, e.Err}
}

// StageOf returns the stage an assembly error happened at, or "".
func StageOf(err error) Stage {
	var ae *AssemblyError
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}

// PriceTable maps plan id and billing period to a provider price id.
type PriceTable map[string]map[models.Period]string

func (t PriceTable) Lookup(planID string, period models.Period) (string, bool) {
	byPeriod, ok := t[planID]
	if !ok {
		return "", false
	}
	id, ok := byPeriod[period]
	return id, ok && id != ""
}

type CheckoutRequest struct {
	PlanID   string
	Period   models.Period
	Customer models.VehicleRecord
}

type Confirmation struct {
	Success       bool
	Subscription  *stripe.Subscription
	PaymentMethod *stripe.PaymentMethod
}

type Service struct {
	gateway       Gateway
	prices        PriceTable
	discountPlans map[string]bool
	logger        logrus.FieldLogger
}

func NewService(gateway Gateway, prices PriceTable, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		gateway:       gateway,
		prices:        prices,
		discountPlans: map[string]bool{"works": true, "ultimate": true},
		logger:        logger,
	}
}

// CouponFor returns the coupon a new subscription gets, or "".
func (s *Service) CouponFor(planID string, period models.Period) string {
	if period == models.PeriodMonthly && s.discountPlans[planID] {
		return FirstMonthCoupon
	}
	return ""
}

// CreateCheckoutSession turns a validated checkout into an incomplete
// subscription and returns the token the hosted payment element confirms.
// There is no idempotency key: submitting twice creates two subscriptions.
func (s *Service) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*models.CheckoutSessionResponse, error) {
	log := s.logger.WithFields(logrus.Fields{
		"plan":   req.PlanID,
		"period": req.Period,
	})

	priceID, ok := s.prices.Lookup(req.PlanID, req.Period)
	if !ok {
		return nil, s.fail(log, StagePrice, ErrInvalidPlan)
	}

	customerID, err := s.resolveCustomer(ctx, req.Customer)
	if err != nil {
		return nil, s.fail(log, StageCustomer, err)
	}
	log = log.WithField("customer", customerID)

	sub, err := s.gateway.CreateSubscription(ctx, SubscriptionInput{
		CustomerID: customerID,
		PriceID:    priceID,
		Coupon:     s.CouponFor(req.PlanID, req.Period),
	})
	if err != nil {
		return nil, s.fail(log, StageSubscription, err)
	}

	secret, err := clientSecret(sub)
	if err != nil {
		return nil, s.fail(log, StageResponse, err)
	}

	log.WithField("subscription", sub.ID).Info("checkout session created")
	return &models.CheckoutSessionResponse{
		SubscriptionID: sub.ID,
		ClientSecret:   secret,
		CustomerID:     customerID,
	}, nil
}

func (s *Service) fail(log logrus.FieldLogger, stage Stage, err error) error {
	log.WithError(err).WithField("stage", stage).Error("checkout session failed")
	return &AssemblyError{Stage: stage, Err: err}
}

func (s *Service) resolveCustomer(ctx context.Context, rec models.VehicleRecord) (string, error) {
	existing, err := s.gateway.FindCustomerByEmail(ctx, rec.Email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	created, err := s.gateway.CreateCustomer(ctx, CustomerInput{
		Name:  rec.FullName(),
		Email: rec.Email,
		Phone: rec.Phone,
		Metadata: map[string]string{
			"license_plate": rec.LicensePlate,
			"state":         rec.State,
			"vehicle_make":  rec.Make,
			"vehicle_model": rec.Model,
			"vehicle_year":  rec.Year,
		},
	})
	if err != nil {
		return "", err
	}
	if created == nil || created.ID == "" {
		return "", errors.New("provider returned no customer id")
	}
	return created.ID, nil
}

func clientSecret(sub *stripe.Subscription) (string, error) {
	switch {
	case sub == nil:
		return "", errors.New("no subscription returned")
	case sub.LatestInvoice == nil:
		return "", fmt.Errorf("subscription %s has no latest invoice", sub.ID)
	case sub.LatestInvoice.PaymentIntent == nil:
		return "", fmt.Errorf("invoice %s has no payment intent", sub.LatestInvoice.ID)
	case strings.TrimSpace(sub.LatestInvoice.PaymentIntent.ClientSecret) == "":
		return "", fmt.Errorf("payment intent %s has no client secret", sub.LatestInvoice.PaymentIntent.ID)
	}
	return sub.LatestInvoice.PaymentIntent.ClientSecret, nil
}

// ConfirmSubscription reports whether the subscription became active after
// the client confirmed payment. Any failure yields Success=false.
func (s *Service) ConfirmSubscription(ctx context.Context, subscriptionID string) Confirmation {
	log := s.logger.WithField("subscription", subscriptionID)

	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil || sub == nil {
		log.WithError(err).Warn("confirm: retrieving subscription failed")
		return Confirmation{}
	}
	if sub.Status != stripe.SubscriptionStatusActive {
		log.WithField("status", sub.Status).Info("confirm: subscription not active")
		return Confirmation{}
	}
	if sub.LatestInvoice == nil || sub.LatestInvoice.ID == "" {
		log.Warn("confirm: active subscription has no invoice")
		return Confirmation{}
	}

	inv, err := s.gateway.GetInvoice(ctx, sub.LatestInvoice.ID)
	if err != nil || inv == nil {
		log.WithError(err).Warn("confirm: retrieving invoice failed")
		return Confirmation{}
	}
	var pm *stripe.PaymentMethod
	if inv.PaymentIntent != nil {
		pm = inv.PaymentIntent.PaymentMethod
	}
	return Confirmation{Success: true, Subscription: sub, PaymentMethod: pm}
}
