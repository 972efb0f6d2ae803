package handlers

import (
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"

	"washclub-checkout-api/checkout"
	"washclub-checkout-api/metrics"
	"washclub-checkout-api/models"
	"washclub-checkout-api/utils"
)

// CheckoutHandler serves the plan and vehicle steps.
type CheckoutHandler struct {
	storage   checkout.Storage
	sessions  *SessionManager
	validator *checkout.VehicleValidator
	logger    logrus.FieldLogger
	respond   storeResponder
}

func NewCheckoutHandler(storage checkout.Storage, sessions *SessionManager, logger logrus.FieldLogger, m *metrics.Metrics) *CheckoutHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CheckoutHandler{
		storage:   storage,
		sessions:  sessions,
		validator: checkout.NewVehicleValidator(),
		logger:    logger,
		respond:   storeResponder{logger: logger, metrics: m},
	}
}

func (h *CheckoutHandler) store(w http.ResponseWriter, r *http.Request) *checkout.Store {
	id := h.sessions.ID(w, r)
	return checkout.NewStore(checkout.Scope(h.storage, id),
		checkout.WithLogger(requestLogger(h.logger, r).WithField("session", id)))
}

// GetCheckout upgrades legacy records, then returns the current session.
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	store := h.store(w, r)
	if _, err := store.MigrateOldData(r.Context()); err != nil {
		h.respond.nonBlocking(requestLogger(h.logger, r), err)
	}
	session, err := store.Get(r.Context())
	h.respond.respond(w, r, session, err, "Checkout retrieved")
}

type planPatchRequest struct {
	ID     string        `json:"id"`
	Index  *int          `json:"index"`
	Period models.Period `json:"period"`
}

// updateRequest is the client-writable part of a session. Name and price are
// never taken from the client.
type updateRequest struct {
	Plan    *planPatchRequest     `json:"plan"`
	Vehicle *models.VehicleRecord `json:"vehicle"`
	Step    *models.Step          `json:"step"`
}

// resolvePlan finds the catalog entry named by id, index or both. Both must
// agree when both are given.
func resolvePlan(req planPatchRequest) (models.Plan, int, bool) {
	switch {
	case req.ID != "":
		plan, index, ok := models.PlanByID(req.ID)
		if !ok || (req.Index != nil && *req.Index != index) {
			return models.Plan{}, -1, false
		}
		return plan, index, true
	case req.Index != nil:
		plan, ok := models.PlanAt(*req.Index)
		return plan, *req.Index, ok
	default:
		return models.Plan{}, -1, false
	}
}

// clientStep reports whether the client may move to step directly. Payment and
// success are only reached through the payment endpoints.
func clientStep(step models.Step) bool {
	return step == models.StepPlan || step == models.StepVehicle
}

// UpdateCheckout applies a partial update. Plan selections are re-priced
// from the catalog and vehicle records are validated like the vehicle step.
func (h *CheckoutHandler) UpdateCheckout(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := models.SessionPatch{Step: req.Step}
	if req.Plan != nil {
		plan, index, ok := resolvePlan(*req.Plan)
		if !ok {
			utils.SendErrorResponse(w, http.StatusBadRequest, "Selected plan does not exist")
			return
		}
		if !req.Plan.Period.IsValid() {
			utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid billing period")
			return
		}
		patch.Plan = &models.PlanSelection{
			ID:     plan.ID,
			Index:  index,
			Name:   plan.Name,
			Period: req.Plan.Period,
			Price:  plan.PriceFor(req.Plan.Period),
		}
	}
	if req.Vehicle != nil {
		rec := checkout.Normalize(*req.Vehicle)
		if errs := h.validator.Validate(rec); len(errs) > 0 {
			utils.SendValidationErrors(w, errs)
			return
		}
		patch.Vehicle = &rec
	}
	if patch.Step != nil && !clientStep(*patch.Step) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid step")
		return
	}

	session, err := h.store(w, r).Save(r.Context(), patch)
	h.respond.respond(w, r, session, err, "Checkout updated")
}

type planSelectionRequest struct {
	Index    *int          `json:"index"`
	Period   models.Period `json:"period"`
	IsYearly bool          `json:"isYearly"`
}

func (h *CheckoutHandler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req planSelectionRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Index == nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Plan index is required")
		return
	}
	period := req.Period
	if period == "" {
		period = models.PeriodFromFlag(req.IsYearly)
	}

	session, err := h.store(w, r).SavePlanSelection(r.Context(), *req.Index, period)
	h.respond.respond(w, r, session, err, "Plan selected")
}

func (h *CheckoutHandler) SaveVehicle(w http.ResponseWriter, r *http.Request) {
	var rec models.VehicleRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec = checkout.Normalize(rec)
	if errs := h.validator.Validate(rec); len(errs) > 0 {
		utils.SendValidationErrors(w, errs)
		return
	}

	session, err := h.store(w, r).SaveVehicleData(r.Context(), rec)
	h.respond.respond(w, r, session, err, "Vehicle saved")
}

func (h *CheckoutHandler) Validate(w http.ResponseWriter, r *http.Request) {
	result := h.store(w, r).Validate(r.Context())
	message := "Checkout is complete"
	if !result.Valid {
		message = "Checkout is incomplete"
	}
	utils.SendSuccessResponse(w, models.APIResponse{Message: message, Data: result})
}

type migrationView struct {
	Changed  bool            `json:"changed"`
	Consumed []string        `json:"consumed"`
	Skipped  []string        `json:"skipped"`
	Session  *models.Session `json:"session"`
}

func (h *CheckoutHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	res, err := h.store(w, r).MigrateOldData(r.Context())
	if err != nil && !checkout.IsNonBlocking(err) {
		requestLogger(h.logger, r).WithError(err).Error("Legacy migration failed")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err != nil {
		h.respond.nonBlocking(requestLogger(h.logger, r), err)
	}

	view := migrationView{
		Changed:  res.Changed,
		Consumed: res.Consumed,
		Skipped:  make([]string, 0, len(res.Skipped)),
		Session:  res.Session,
	}
	if view.Consumed == nil {
		view.Consumed = []string{}
	}
	for key := range res.Skipped {
		view.Skipped = append(view.Skipped, key)
	}
	sort.Strings(view.Skipped)

	utils.SendSuccessResponse(w, models.APIResponse{Message: "Migration finished", Data: view})
}
