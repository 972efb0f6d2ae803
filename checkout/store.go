package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"washclub-checkout-api/models"
)

// SessionKey is the single key the checkout record lives under.
const SessionKey = "checkoutSession"

// Items reported by Validate.
const (
	MissingPlan    = "plan selection"
	MissingVehicle = "vehicle information"
	MissingAll     = "all checkout data"
)

// Store is the source of truth for one in-progress checkout. Writes are a
// read-modify-write without locking; concurrent writers race and the last one wins.
type Store struct {
	storage Storage
	logger  logrus.FieldLogger
	now     func() time.Time
}

type Option func(*Store)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		logger:  logrus.StandardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored session, or nil when there is none.
func (s *Store) Get(ctx context.Context) (*models.Session, error) {
	raw, err := s.storage.Get(ctx, SessionKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.WithError(err).Warn("checkout: reading session failed")
		return nil, &Error{Op: "get", Kind: KindStorage, Err: err}
	}
	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		s.logger.WithError(err).Warn("checkout: stored session is not valid JSON")
		return nil, &Error{Op: "get", Kind: KindDecode, Err: err}
	}
	return &session, nil
}

// Save merges the patch into the stored session and writes the whole record back.
// An unreadable record is replaced.
func (s *Store) Save(ctx context.Context, patch models.SessionPatch) (*models.Session, error) {
	current, err := s.Get(ctx)
	if err != nil && KindOf(err) != KindDecode {
		return nil, err
	}
	var base models.Session
	if current != nil {
		base = *current
	}
	merged := base.Merge(patch)
	if err := s.write(ctx, "save", &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (s *Store) write(ctx context.Context, op string, session *models.Session) error {
	session.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		s.logger.WithError(err).Error("checkout: encoding session failed")
		return &Error{Op: op, Kind: KindDecode, Err: err}
	}
	if err := s.storage.Set(ctx, SessionKey, string(data)); err != nil {
		s.logger.WithError(err).Warn("checkout: writing session failed")
		return &Error{Op: op, Kind: KindStorage, Err: err}
	}
	return nil
}

// SavePlanSelection records the plan at index in the catalog. An index outside
// the catalog is logged and rejected without touching storage.
func (s *Store) SavePlanSelection(ctx context.Context, index int, period models.Period) (*models.Session, error) {
	plan, ok := models.PlanAt(index)
	if !ok {
		s.logger.WithField("index", index).Warn("checkout: plan index out of range")
		return nil, &Error{Op: "save plan", Kind: KindOutOfRange}
	}
	if !period.IsValid() {
		s.logger.WithField("period", period).Warn("checkout: unknown billing period")
		return nil, &Error{Op: "save plan", Kind: KindInvalid}
	}
	step := models.StepPlan
	return s.Save(ctx, models.SessionPatch{
		Plan: &models.PlanSelection{
			ID:     plan.ID,
			Index:  index,
			Name:   plan.Name,
			Period: period,
			Price:  plan.PriceFor(period),
		},
		Step: &step,
	})
}

// SaveVehicleData records the vehicle/customer form. Field validation happens
// before this call.
func (s *Store) SaveVehicleData(ctx context.Context, rec models.VehicleRecord) (*models.Session, error) {
	step := models.StepVehicle
	return s.Save(ctx, models.SessionPatch{Vehicle: &rec, Step: &step})
}

// SetStep moves the step marker without touching the sub-records.
func (s *Store) SetStep(ctx context.Context, step models.Step) (*models.Session, error) {
	if !step.IsValid() {
		return nil, &Error{Op: "set step", Kind: KindInvalid}
	}
	return s.Save(ctx, models.SessionPatch{Step: &step})
}

// Validate reports whether the session is complete enough to pay for.
// Unreadable state counts as no state.
func (s *Store) Validate(ctx context.Context) models.ValidationResult {
	session, _ := s.Get(ctx)
	if session == nil {
		return models.ValidationResult{Missing: []string{MissingAll}}
	}
	missing := []string{}
	if session.Plan == nil {
		missing = append(missing, MissingPlan)
	}
	if session.Vehicle == nil {
		missing = append(missing, MissingVehicle)
	}
	return models.ValidationResult{Valid: len(missing) == 0, Missing: missing}
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Remove(ctx, SessionKey); err != nil {
		s.logger.WithError(err).Warn("checkout: clearing session failed")
		return &Error{Op: "clear", Kind: KindStorage, Err: err}
	}
	return nil
}

// MigrateOldData folds records written by the previous front-end into the
// current session and removes them. Running it again once they are gone does
// nothing.
func (s *Store) MigrateOldData(ctx context.Context) (MigrationResult, error) {
	legacy := make(map[string]string)
	for _, key := range LegacyKeys {
		raw, err := s.storage.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("checkout: reading legacy key failed")
			continue
		}
		legacy[key] = raw
	}
	if len(legacy) == 0 {
		return MigrationResult{}, nil
	}

	existing, err := s.Get(ctx)
	if err != nil && KindOf(err) != KindDecode {
		return MigrationResult{}, err
	}

	res := MigrateLegacy(existing, legacy, s.now().UTC())
	for key, skipErr := range res.Skipped {
		s.logger.WithError(skipErr).WithField("key", key).Warn("checkout: skipping legacy key")
	}
	if res.Changed {
		if err := s.write(ctx, "migrate", res.Session); err != nil {
			return res, err
		}
	}
	for _, key := range res.Consumed {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("checkout: removing legacy key failed")
		}
	}
	if len(res.Consumed) > 0 {
		s.logger.WithFields(logrus.Fields{
			"consumed": res.Consumed,
			"changed":  res.Changed,
		}).Info("checkout: migrated legacy data")
	}
	return res, nil
}
