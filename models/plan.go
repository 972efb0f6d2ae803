package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// YearlyMultiplier is the number of monthly payments charged for a yearly plan.
const YearlyMultiplier = 10

type Feature struct {
	Name     string `json:"name"`
	Included bool   `json:"included"`
}

type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	MonthlyPrice decimal.Decimal `json:"monthlyPrice"`
	YearlyPrice  decimal.Decimal `json:"yearlyPrice"`
	Features     []Feature       `json:"features"`
	Badge        string          `json:"badge,omitempty"`
	Popular      bool            `json:"popular,omitempty"`
}

// PriceFor returns the price charged for one billing period of the plan.
func (p Plan) PriceFor(period Period) decimal.Decimal {
	if period == PeriodYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

func newPlan(id, name, monthly string, badge string, popular bool, included ...bool) Plan {
	price := decimal.RequireFromString(monthly)
	features := make([]Feature, len(featureNames))
	for i, name := range featureNames {
		features[i] = Feature{Name: name, Included: i < len(included) && included[i]}
	}
	return Plan{
		ID:           id,
		Name:         name,
		MonthlyPrice: price,
		YearlyPrice:  price.Mul(decimal.NewFromInt(YearlyMultiplier)),
		Features:     features,
		Badge:        badge,
		Popular:      popular,
	}
}

var featureNames = []string{
	"Soft-touch exterior wash",
	"Spot-free rinse",
	"Power dry",
	"Underbody flush",
	"Triple foam polish",
	"Wheel & tire shine",
	"Ceramic sealant",
	"Rain repellent windshield",
}

var catalog = []Plan{
	newPlan("basic", "Basic Wash", "19.99", "", false,
		true, true, true),
	newPlan("deluxe", "Deluxe Wash", "27.99", "", false,
		true, true, true, true, true),
	newPlan("works", "The Works", "34.99", "Most Popular", true,
		true, true, true, true, true, true),
	newPlan("ultimate", "Ultimate Shine", "44.99", "Best Value", false,
		true, true, true, true, true, true, true, true),
}

// Plans returns a copy of the plan catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

func PlanAt(index int) (Plan, bool) {
	if index < 0 || index >= len(catalog) {
		return Plan{}, false
	}
	return catalog[index], true
}

// PlanByID returns the plan and its catalog index.
func PlanByID(id string) (Plan, int, bool) {
	for i, p := range catalog {
		if p.ID == id {
			return p, i, true
		}
	}
	return Plan{}, -1, false
}

// PlanByName matches a plan by its normalized display name or id, so
// "THE WORKS", "the-works" and "works" all resolve to the same plan.
func PlanByName(name string) (Plan, int, bool) {
	key := NormalizePlanName(name)
	if key == "" {
		return Plan{}, -1, false
	}
	for i, p := range catalog {
		if NormalizePlanName(p.Name) == key || NormalizePlanName(p.ID) == key {
			return p, i, true
		}
	}
	return Plan{}, -1, false
}

func NormalizePlanName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.TrimPrefix(b.String(), "the")
}
