package checkout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"washclub-checkout-api/models"
	"washclub-checkout-api/utils"
)

// Keys used by the previous front-end before the single-record layout.
const (
	LegacyPlanKey    = "selectedPlan"
	LegacyVehicleKey = "vehicleData"
)

// LegacyKeys lists every legacy key in the order they are migrated.
var LegacyKeys = []string{LegacyPlanKey, LegacyVehicleKey}

type legacyPlan struct {
	PlanName string `json:"planName"`
	Billing  string `json:"billing"`
	IsYearly *bool  `json:"isYearly"`
}

type legacyVehicle struct {
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Plate        string          `json:"plate"`
	State        string          `json:"state"`
	Make         string          `json:"make"`
	Model        string          `json:"model"`
	Year         json.RawMessage `json:"year"`
	AgreeToTerms bool            `json:"agreeToTerms"`
}

// MigrationResult describes what MigrateLegacy produced. Consumed lists the
// legacy keys that may now be deleted; it is empty when nothing could be read.
type MigrationResult struct {
	Session  *models.Session
	Consumed []string
	Skipped  map[string]error
	Changed  bool
}

// MigrateLegacy rebuilds a session from legacy records without touching storage.
// Sub-records already present in existing win over legacy ones.
func MigrateLegacy(existing *models.Session, legacy map[string]string, now time.Time) MigrationResult {
	var s models.Session
	if existing != nil {
		s = *existing
	}
	res := MigrationResult{Skipped: make(map[string]error)}

	var present []string
	resolved := false
	for _, key := range LegacyKeys {
		raw, ok := legacy[key]
		if !ok {
			continue
		}
		present = append(present, key)

		switch key {
		case LegacyPlanKey:
			sel, err := parseLegacyPlan(raw)
			if err != nil {
				res.Skipped[key] = err
				continue
			}
			resolved = true
			if s.Plan == nil {
				s.Plan = sel
				res.Changed = true
			}
		case LegacyVehicleKey:
			v, err := parseLegacyVehicle(raw)
			if err != nil {
				res.Skipped[key] = err
				continue
			}
			resolved = true
			if s.Vehicle == nil {
				s.Vehicle = v
				res.Changed = true
			}
		}
	}

	if resolved {
		res.Consumed = present
	}
	if res.Changed {
		switch {
		case s.Vehicle != nil && (s.Step == "" || s.Step == models.StepPlan):
			s.Step = models.StepVehicle
		case s.Step == "":
			s.Step = models.StepPlan
		}
		s.UpdatedAt = now
	}
	if res.Changed || existing != nil {
		res.Session = &s
	}
	return res
}

func parseLegacyPlan(raw string) (*models.PlanSelection, error) {
	var lp legacyPlan
	if err := json.Unmarshal([]byte(raw), &lp); err != nil {
		return nil, fmt.Errorf("parse legacy plan: %w", err)
	}
	plan, index, ok := models.PlanByName(lp.PlanName)
	if !ok {
		return nil, fmt.Errorf("no plan matches %q", lp.PlanName)
	}
	period := models.Period(strings.ToLower(strings.TrimSpace(lp.Billing)))
	if lp.IsYearly != nil {
		period = models.PeriodFromFlag(*lp.IsYearly)
	}
	if !period.IsValid() {
		period = models.PeriodMonthly
	}
	return &models.PlanSelection{
		ID:     plan.ID,
		Index:  index,
		Name:   plan.Name,
		Period: period,
		Price:  plan.PriceFor(period),
	}, nil
}

func parseLegacyVehicle(raw string) (*models.VehicleRecord, error) {
	var lv legacyVehicle
	if err := json.Unmarshal([]byte(raw), &lv); err != nil {
		return nil, fmt.Errorf("parse legacy vehicle: %w", err)
	}
	year, err := legacyYear(lv.Year)
	if err != nil {
		return nil, err
	}
	return &models.VehicleRecord{
		FirstName:     strings.TrimSpace(lv.FirstName),
		LastName:      strings.TrimSpace(lv.LastName),
		Email:         strings.TrimSpace(lv.Email),
		Phone:         utils.NormalizePhone(lv.Phone),
		LicensePlate:  utils.NormalizePlate(lv.Plate),
		State:         strings.ToUpper(strings.TrimSpace(lv.State)),
		Make:          strings.TrimSpace(lv.Make),
		Model:         strings.TrimSpace(lv.Model),
		Year:          year,
		TermsAccepted: lv.AgreeToTerms,
	}, nil
}

// legacyYear accepts the year either as a JSON string or a JSON number.
func legacyYear(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("parse legacy year %s: %w", raw, err)
	}
	return strconv.Itoa(n), nil
}
