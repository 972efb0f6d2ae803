package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"washclub-checkout-api/checkout"
	"washclub-checkout-api/middleware"
	"washclub-checkout-api/models"
	"washclub-checkout-api/queue"
	"washclub-checkout-api/utils"
)

type JobAdmin interface {
	RetryJob(ctx context.Context, jobID string) error
	FailedJobs(ctx context.Context) ([]queue.Job, error)
}

// AdminHandler exposes manual operations behind admin auth.
type AdminHandler struct {
	storage checkout.Storage
	jobs    JobAdmin
	logger  logrus.FieldLogger
}

func NewAdminHandler(storage checkout.Storage, jobs JobAdmin, logger logrus.FieldLogger) *AdminHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdminHandler{storage: storage, jobs: jobs, logger: logger}
}

func (h *AdminHandler) log(r *http.Request) logrus.FieldLogger {
	log := requestLogger(h.logger, r)
	if claims := middleware.AdminFromContext(r.Context()); claims != nil {
		log = log.WithField("admin", claims.Subject)
	}
	return log
}

// ClearCheckout deletes the stored record for a checkout session.
func (h *AdminHandler) ClearCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	log := h.log(r).WithField("session", sessionID)

	store := checkout.NewStore(checkout.Scope(h.storage, sessionID), checkout.WithLogger(log))
	if err := store.Clear(r.Context()); err != nil {
		log.WithError(err).Error("Failed to clear checkout")
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Failed to clear checkout state")
		return
	}

	log.Info("Checkout state cleared")
	utils.SendSuccessResponse(w, models.APIResponse{Message: "Checkout state cleared"})
}

func (h *AdminHandler) ListFailedJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.FailedJobs(r.Context())
	if err != nil {
		h.log(r).WithError(err).Error("Failed to list failed jobs")
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Failed to list jobs")
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Message: "Failed jobs", Data: jobs})
}

func (h *AdminHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["job_id"]
	log := h.log(r).WithField("job", jobID)

	if err := h.jobs.RetryJob(r.Context(), jobID); err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Job not found")
			return
		}
		log.WithError(err).Error("Failed to retry job")
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Failed to retry job")
		return
	}

	log.Info("Job requeued")
	utils.SendSuccessResponse(w, models.APIResponse{Message: "Job requeued"})
}
