package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

func (p Period) IsValid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// PeriodFromFlag maps the yearly toggle used by the plan screen to a Period.
func PeriodFromFlag(yearly bool) Period {
	if yearly {
		return PeriodYearly
	}
	return PeriodMonthly
}

type Step string

const (
	StepPlan    Step = "plan"
	StepVehicle Step = "vehicle"
	StepPayment Step = "payment"
	StepSuccess Step = "success"
)

func (s Step) IsValid() bool {
	switch s {
	case StepPlan, StepVehicle, StepPayment, StepSuccess:
		return true
	default:
		return false
	}
}

type PlanSelection struct {
	ID     string          `json:"id"`
	Index  int             `json:"index"`
	Name   string          `json:"name"`
	Period Period          `json:"period"`
	Price  decimal.Decimal `json:"price"`
}

type VehicleRecord struct {
	FirstName     string `json:"firstName" validate:"required,max=50"`
	LastName      string `json:"lastName" validate:"required,max=50"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required,us_phone"`
	LicensePlate  string `json:"licensePlate" validate:"required,license_plate"`
	State         string `json:"state" validate:"required,us_state"`
	Make          string `json:"make" validate:"required,max=40"`
	Model         string `json:"model" validate:"required,max=40"`
	Year          string `json:"year" validate:"required,len=4,model_year"`
	TermsAccepted bool   `json:"termsAccepted" validate:"eq=true"`
}

// FullName joins first and last name the way they are sent to the payment provider.
func (v VehicleRecord) FullName() string {
	switch {
	case v.FirstName == "":
		return v.LastName
	case v.LastName == "":
		return v.FirstName
	default:
		return v.FirstName + " " + v.LastName
	}
}

// Session is the accumulated state of one in-progress checkout.
type Session struct {
	Plan           *PlanSelection `json:"plan,omitempty"`
	Vehicle        *VehicleRecord `json:"vehicle,omitempty"`
	Step           Step           `json:"step,omitempty"`
	SubscriptionID string         `json:"subscriptionId,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// SessionPatch carries a partial update; nil fields leave the stored value alone.
type SessionPatch struct {
	Plan           *PlanSelection `json:"plan,omitempty"`
	Vehicle        *VehicleRecord `json:"vehicle,omitempty"`
	Step           *Step          `json:"step,omitempty"`
	SubscriptionID *string        `json:"subscriptionId,omitempty"`
}

// Merge applies a shallow merge of the patch onto a copy of s.
func (s Session) Merge(p SessionPatch) Session {
	if p.Plan != nil {
		s.Plan = p.Plan
	}
	if p.Vehicle != nil {
		s.Vehicle = p.Vehicle
	}
	if p.Step != nil {
		s.Step = *p.Step
	}
	if p.SubscriptionID != nil {
		s.SubscriptionID = *p.SubscriptionID
	}
	return s
}

// CheckoutSessionResponse is what the hosted payment element needs to finish payment.
type CheckoutSessionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
	CustomerID     string `json:"customerId"`
}
