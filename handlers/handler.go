package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"washclub-checkout-api/checkout"
	"washclub-checkout-api/metrics"
	"washclub-checkout-api/middleware"
	"washclub-checkout-api/models"
	"washclub-checkout-api/utils"
)

const maxBodyBytes = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func requestLogger(base logrus.FieldLogger, r *http.Request) logrus.FieldLogger {
	return base.WithFields(logrus.Fields{
		"path":       r.URL.Path,
		"request_id": r.Header.Get(middleware.RequestIDHeader),
	})
}

// CheckoutState is the body returned by every checkout step endpoint.
// Persisted is false when storage failed and the step should carry on anyway.
type CheckoutState struct {
	Session   *models.Session `json:"session"`
	Persisted bool            `json:"persisted"`
}

// storeResponder maps store results onto HTTP responses. Storage and decode
// failures never block the flow.
type storeResponder struct {
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

func (s storeResponder) nonBlocking(log logrus.FieldLogger, err error) {
	log.WithError(err).Warn("Checkout storage unavailable, continuing without persisted state")
	if s.metrics != nil {
		s.metrics.StorageErrors.WithLabelValues(string(checkout.KindOf(err))).Inc()
	}
}

func (s storeResponder) respond(w http.ResponseWriter, r *http.Request, session *models.Session, err error, message string) {
	log := requestLogger(s.logger, r)
	switch {
	case err == nil:
		utils.SendSuccessResponse(w, models.APIResponse{
			Message: message,
			Data:    CheckoutState{Session: session, Persisted: true},
		})
	case checkout.IsNonBlocking(err):
		s.nonBlocking(log, err)
		utils.SendSuccessResponse(w, models.APIResponse{
			Message: message,
			Data:    CheckoutState{Session: session, Persisted: false},
		})
	case checkout.KindOf(err) == checkout.KindOutOfRange:
		utils.SendErrorResponse(w, http.StatusBadRequest, "Selected plan does not exist")
	case checkout.KindOf(err) == checkout.KindInvalid:
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid checkout data")
	default:
		log.WithError(err).Error("Unexpected checkout store error")
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}
