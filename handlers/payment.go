package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"

	"washclub-checkout-api/checkout"
	"washclub-checkout-api/metrics"
	"washclub-checkout-api/models"
	"washclub-checkout-api/queue"
	"washclub-checkout-api/services/payment"
	"washclub-checkout-api/utils"
)

// SessionAssembler creates and confirms provider subscriptions.
type SessionAssembler interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*models.CheckoutSessionResponse, error)
	ConfirmSubscription(ctx context.Context, subscriptionID string) payment.Confirmation
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) (string, error)
}

// PaymentHandler serves the payment and success steps.
type PaymentHandler struct {
	storage   checkout.Storage
	sessions  *SessionManager
	assembler SessionAssembler
	jobs      JobEnqueuer
	logger    logrus.FieldLogger
	metrics   *metrics.Metrics
	respond   storeResponder
}

func NewPaymentHandler(storage checkout.Storage, sessions *SessionManager, assembler SessionAssembler, jobs JobEnqueuer, logger logrus.FieldLogger, m *metrics.Metrics) *PaymentHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PaymentHandler{
		storage:   storage,
		sessions:  sessions,
		assembler: assembler,
		jobs:      jobs,
		logger:    logger,
		metrics:   m,
		respond:   storeResponder{logger: logger, metrics: m},
	}
}

func (h *PaymentHandler) store(w http.ResponseWriter, r *http.Request) (*checkout.Store, string) {
	id := h.sessions.ID(w, r)
	return checkout.NewStore(checkout.Scope(h.storage, id),
		checkout.WithLogger(requestLogger(h.logger, r).WithField("session", id))), id
}

// CreateSession assembles a subscription for the stored plan and vehicle and
// returns the client secret for the hosted payment element.
func (h *PaymentHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	store, sessionID := h.store(w, r)
	log := requestLogger(h.logger, r).WithField("session", sessionID)

	result := store.Validate(r.Context())
	if !result.Valid {
		utils.SendJSON(w, http.StatusBadRequest, models.APIResponse{
			Status:  "error",
			Message: "Checkout is incomplete",
			Data:    result,
		})
		return
	}

	session, err := store.Get(r.Context())
	if err != nil || session == nil || session.Plan == nil || session.Vehicle == nil {
		// state vanished between the two reads
		utils.SendErrorResponse(w, http.StatusConflict, "Checkout is incomplete")
		return
	}

	resp, err := h.assembler.CreateCheckoutSession(r.Context(), payment.CheckoutRequest{
		PlanID:   session.Plan.ID,
		Period:   session.Plan.Period,
		Customer: *session.Vehicle,
	})
	if err != nil {
		stage := payment.StageOf(err)
		log.WithError(err).WithField("stage", stage).Error("Checkout session assembly failed")
		if h.metrics != nil {
			h.metrics.CheckoutFailed(string(stage))
		}
		status := http.StatusBadGateway
		if errors.Is(err, payment.ErrInvalidPlan) {
			status = http.StatusBadRequest
		}
		utils.SendErrorResponse(w, status, err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.CheckoutSucceeded()
	}

	step := models.StepPayment
	if _, err := store.Save(r.Context(), models.SessionPatch{Step: &step, SubscriptionID: &resp.SubscriptionID}); err != nil {
		h.respond.nonBlocking(log, err)
	}

	payload := subscriptionPayload(sessionID, session, resp.SubscriptionID, resp.CustomerID)
	payload.Status = string(stripe.SubscriptionStatusIncomplete)
	h.enqueue(r.Context(), log, queue.JobTypeRecordSubscription, payload)

	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Checkout session created",
		Data:    resp,
	})
}

// Confirm reports whether the subscription is active after the payment
// element finished. Only the subscription created for this checkout can be
// confirmed. Failures are reported as success=false, never as errors.
// Activation and the welcome e-mail are queued once, when the checkout first
// reaches the success step.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	subscriptionID := r.URL.Query().Get("subscription_id")
	if subscriptionID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "subscription_id is required")
		return
	}

	store, sessionID := h.store(w, r)
	log := requestLogger(h.logger, r).WithFields(logrus.Fields{"session": sessionID, "subscription": subscriptionID})

	session, err := store.Get(r.Context())
	if err != nil {
		h.respond.nonBlocking(log, err)
	}
	if session == nil || session.SubscriptionID == "" || session.SubscriptionID != subscriptionID {
		log.Warn("Confirmation for a subscription this checkout did not create")
		utils.SendErrorResponse(w, http.StatusForbidden, "Subscription does not belong to this checkout")
		return
	}

	c := h.assembler.ConfirmSubscription(r.Context(), subscriptionID)
	if !c.Success {
		utils.SendSuccessResponse(w, models.APIResponse{
			Message: "Subscription not confirmed",
			Data:    models.ConfirmationResponse{Success: false},
		})
		return
	}

	if session.Step != models.StepSuccess {
		h.activate(r.Context(), log, store, sessionID, session, c)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Subscription confirmed",
		Data:    confirmationView(c),
	})
}

func (h *PaymentHandler) activate(ctx context.Context, log logrus.FieldLogger, store *checkout.Store, sessionID string, session *models.Session, c payment.Confirmation) {
	if _, err := store.SetStep(ctx, models.StepSuccess); err != nil {
		h.respond.nonBlocking(log, err)
		// without the step recorded a refresh would queue the jobs again
		return
	}
	if session.Plan == nil || session.Vehicle == nil {
		return
	}

	customerID := ""
	if c.Subscription.Customer != nil {
		customerID = c.Subscription.Customer.ID
	}
	payload := subscriptionPayload(sessionID, session, c.Subscription.ID, customerID)
	payload.Status = string(c.Subscription.Status)
	h.enqueue(ctx, log, queue.JobTypeActivateSubscription, payload)
	h.enqueue(ctx, log, queue.JobTypeSendConfirmation, payload)
}

func (h *PaymentHandler) enqueue(ctx context.Context, log logrus.FieldLogger, jobType queue.JobType, p queue.SubscriptionPayload) {
	if h.jobs == nil {
		return
	}
	if _, err := h.jobs.Enqueue(ctx, jobType, p.Data()); err != nil {
		log.WithError(err).WithField("type", jobType).Error("Failed to enqueue job")
	}
}

func subscriptionPayload(sessionID string, s *models.Session, subscriptionID, customerID string) queue.SubscriptionPayload {
	return queue.SubscriptionPayload{
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		SessionID:      sessionID,
		PlanID:         s.Plan.ID,
		PlanName:       s.Plan.Name,
		Period:         string(s.Plan.Period),
		Price:          s.Plan.Price.StringFixed(2),
		Email:          s.Vehicle.Email,
		Name:           s.Vehicle.FullName(),
		LicensePlate:   s.Vehicle.LicensePlate,
	}
}

func confirmationView(c payment.Confirmation) models.ConfirmationResponse {
	resp := models.ConfirmationResponse{
		Success:        true,
		SubscriptionID: c.Subscription.ID,
		Status:         string(c.Subscription.Status),
	}
	if pm := c.PaymentMethod; pm != nil {
		resp.PaymentMethod = string(pm.Type)
		if pm.Card != nil {
			resp.CardBrand = string(pm.Card.Brand)
			resp.CardLast4 = pm.Card.Last4
		}
	}
	return resp
}
