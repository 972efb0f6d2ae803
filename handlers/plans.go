package handlers

import (
	"net/http"

	"washclub-checkout-api/models"
	"washclub-checkout-api/utils"
)

// CouponChecker tells the catalog which plans carry the first-month discount.
type CouponChecker interface {
	CouponFor(planID string, period models.Period) string
}

type PlanHandler struct {
	coupons CouponChecker
}

func NewPlanHandler(coupons CouponChecker) *PlanHandler {
	return &PlanHandler{coupons: coupons}
}

type planView struct {
	models.Plan
	Index              int  `json:"index"`
	FirstMonthDiscount bool `json:"firstMonthDiscount"`
}

func (h *PlanHandler) GetPlans(w http.ResponseWriter, r *http.Request) {
	plans := models.Plans()
	views := make([]planView, 0, len(plans))
	for i, p := range plans {
		v := planView{Plan: p, Index: i}
		if h.coupons != nil {
			v.FirstMonthDiscount = h.coupons.CouponFor(p.ID, models.PeriodMonthly) != ""
		}
		views = append(views, v)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Message: "Plans retrieved",
		Data:    views,
	})
}
