package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"washclub-checkout-api/metrics"
	"washclub-checkout-api/middleware"
	"washclub-checkout-api/services/auth"
)

// Router collects what NewRouter mounts. RateLimiter, Metrics and
// MetricsHandler are optional.
type Router struct {
	Checkout       *CheckoutHandler
	Payment        *PaymentHandler
	Plans          *PlanHandler
	Admin          *AdminHandler
	Health         *HealthHandler
	JWT            *auth.JWTService
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	CORSOrigin     string
}

func NewRouter(d Router) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(d.CORSOrigin))
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.Logging)
	if d.Metrics != nil {
		router.Use(middleware.Metrics(d.Metrics))
	}

	if d.MetricsHandler != nil {
		router.Handle("/metrics", d.MetricsHandler).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Middleware)
	}

	api.HandleFunc("/health", d.Health.Health).Methods(http.MethodGet)
	api.HandleFunc("/plans", d.Plans.GetPlans).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/format", Format).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/checkout", d.Checkout.GetCheckout).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/checkout", d.Checkout.UpdateCheckout).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/checkout/plan", d.Checkout.SavePlan).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/checkout/vehicle", d.Checkout.SaveVehicle).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/checkout/validate", d.Checkout.Validate).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/checkout/migrate", d.Checkout.Migrate).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/checkout/session", d.Payment.CreateSession).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/checkout/confirm", d.Payment.Confirm).Methods(http.MethodGet, http.MethodOptions)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuth(d.JWT))
	admin.HandleFunc("/checkout/{session_id}", d.Admin.ClearCheckout).Methods(http.MethodDelete)
	admin.HandleFunc("/jobs/failed", d.Admin.ListFailedJobs).Methods(http.MethodGet)
	admin.HandleFunc("/jobs/{job_id}/retry", d.Admin.RetryJob).Methods(http.MethodPost)

	return router
}
