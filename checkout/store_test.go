package checkout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washclub-checkout-api/models"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, storage Storage) (*Store, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return NewStore(storage, WithLogger(logger), WithClock(func() time.Time { return fixedNow })), hook
}

func sampleVehicle() models.VehicleRecord {
	return models.VehicleRecord{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.com",
		Phone:         "(555) 123-4567",
		LicensePlate:  "ABC123",
		State:         "CA",
		Make:          "Toyota",
		Model:         "Corolla",
		Year:          "2019",
		TermsAccepted: true,
	}
}

type failingStorage struct {
	err error
}

func (f failingStorage) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingStorage) Set(context.Context, string, string) error   { return f.err }
func (f failingStorage) Remove(context.Context, string) error        { return f.err }

func TestSavePlanSelectionPrice(t *testing.T) {
	ctx := context.Background()
	for i, plan := range models.Plans() {
		for _, period := range []models.Period{models.PeriodMonthly, models.PeriodYearly} {
			store, _ := newTestStore(t, NewMemoryStorage())
			_, err := store.SavePlanSelection(ctx, i, period)
			require.NoError(t, err)

			got, err := store.Get(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.NotNil(t, got.Plan)

			mult := int64(1)
			if period == models.PeriodYearly {
				mult = 10
			}
			want := plan.MonthlyPrice.Mul(decimal.NewFromInt(mult))
			assert.True(t, want.Equal(got.Plan.Price), "%s/%s: got %s want %s", plan.ID, period, got.Plan.Price, want)
			assert.Equal(t, plan.ID, got.Plan.ID)
			assert.Equal(t, i, got.Plan.Index)
			assert.Equal(t, period, got.Plan.Period)
			assert.Equal(t, models.StepPlan, got.Step)
		}
	}
}

func TestSelectWorksThenSwitchToYearly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, NewMemoryStorage())

	s, err := store.SavePlanSelection(ctx, 2, models.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, "works", s.Plan.ID)
	assert.True(t, decimal.RequireFromString("34.99").Equal(s.Plan.Price))

	s, err = store.SavePlanSelection(ctx, 2, models.PeriodYearly)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("349.90").Equal(s.Plan.Price))
}

func TestSavePlanSelectionOutOfRange(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	store, hook := newTestStore(t, mem)

	_, err := store.SavePlanSelection(ctx, 1, models.PeriodMonthly)
	require.NoError(t, err)
	before, err := mem.Get(ctx, SessionKey)
	require.NoError(t, err)

	for _, idx := range []int{-1, len(models.Plans()), 99} {
		_, err := store.SavePlanSelection(ctx, idx, models.PeriodYearly)
		require.Error(t, err)
		assert.Equal(t, KindOutOfRange, KindOf(err))

		after, err := mem.Get(ctx, SessionKey)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSavePlanSelectionInvalidPeriod(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryStorage())
	_, err := store.SavePlanSelection(context.Background(), 0, models.Period("weekly"))
	assert.Equal(t, KindInvalid, KindOf(err))
}

func TestSaveIsShallowMerge(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, NewMemoryStorage())

	plan := &models.PlanSelection{ID: "deluxe", Index: 1, Name: "Deluxe Wash", Period: models.PeriodMonthly, Price: decimal.RequireFromString("27.99")}
	_, err := store.Save(ctx, models.SessionPatch{Plan: plan})
	require.NoError(t, err)

	v := sampleVehicle()
	_, err = store.Save(ctx, models.SessionPatch{Vehicle: &v})
	require.NoError(t, err)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.Plan)
	require.NotNil(t, got.Vehicle)
	assert.Equal(t, "deluxe", got.Plan.ID)
	assert.Equal(t, v, *got.Vehicle)
	assert.Equal(t, fixedNow, got.UpdatedAt)
}

func TestSaveVehicleDataAdvancesStep(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, NewMemoryStorage())

	_, err := store.SavePlanSelection(ctx, 0, models.PeriodMonthly)
	require.NoError(t, err)
	s, err := store.SaveVehicleData(ctx, sampleVehicle())
	require.NoError(t, err)

	assert.Equal(t, models.StepVehicle, s.Step)
	assert.NotNil(t, s.Plan)
}

func TestGetAbsentAndCorrupt(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	store, hook := newTestStore(t, mem)

	s, err := store.Get(ctx)
	assert.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, mem.Set(ctx, SessionKey, "{not json"))
	s, err = store.Get(ctx)
	assert.Nil(t, s)
	assert.Equal(t, KindDecode, KindOf(err))
	assert.True(t, IsNonBlocking(err))
	assert.NotEmpty(t, hook.Entries)

	// a corrupt record is replaced on the next save
	s, err = store.SavePlanSelection(ctx, 3, models.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, "ultimate", s.Plan.ID)
}

func TestStorageFailuresAreReported(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, failingStorage{err: errors.New("quota exceeded")})

	_, err := store.Get(ctx)
	assert.Equal(t, KindStorage, KindOf(err))
	assert.True(t, IsNonBlocking(err))

	_, err = store.SavePlanSelection(ctx, 0, models.PeriodMonthly)
	assert.Equal(t, KindStorage, KindOf(err))

	assert.Equal(t, KindStorage, KindOf(store.Clear(ctx)))

	res := store.Validate(ctx)
	assert.Equal(t, []string{MissingAll}, res.Missing)

	_, err = store.MigrateOldData(ctx)
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, NewMemoryStorage())

	res := store.Validate(ctx)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{MissingAll}, res.Missing)

	_, err := store.SavePlanSelection(ctx, 2, models.PeriodMonthly)
	require.NoError(t, err)
	res = store.Validate(ctx)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{MissingVehicle}, res.Missing)

	_, err = store.SaveVehicleData(ctx, sampleVehicle())
	require.NoError(t, err)
	res = store.Validate(ctx)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Missing)
}

func TestValidateVehicleOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, NewMemoryStorage())
	_, err := store.SaveVehicleData(ctx, sampleVehicle())
	require.NoError(t, err)
	assert.Equal(t, []string{MissingPlan}, store.Validate(ctx).Missing)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	store, _ := newTestStore(t, mem)

	_, err := store.SavePlanSelection(ctx, 0, models.PeriodMonthly)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))

	s, err := store.Get(ctx)
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, 0, mem.Len())
}

func TestSetStep(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, NewMemoryStorage())
	s, err := store.SetStep(ctx, models.StepSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.StepSuccess, s.Step)

	_, err = store.SetStep(ctx, models.Step("done"))
	assert.Equal(t, KindInvalid, KindOf(err))
}

func TestMigrateOldData(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	store, _ := newTestStore(t, mem)

	require.NoError(t, mem.Set(ctx, LegacyPlanKey, `{"planName":"The Works","billing":"yearly"}`))
	require.NoError(t, mem.Set(ctx, LegacyVehicleKey, `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","phone":"5551234567","plate":"abc 123","state":"ca","make":"Toyota","model":"Corolla","year":2019,"agreeToTerms":true}`))

	res, err := store.MigrateOldData(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.ElementsMatch(t, LegacyKeys, res.Consumed)

	_, err = mem.Get(ctx, LegacyPlanKey)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mem.Get(ctx, LegacyVehicleKey)
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Plan)
	require.NotNil(t, s.Vehicle)
	assert.Equal(t, "works", s.Plan.ID)
	assert.True(t, decimal.RequireFromString("349.90").Equal(s.Plan.Price))
	assert.Equal(t, "ABC123", s.Vehicle.LicensePlate)
	assert.Equal(t, "(555) 123-4567", s.Vehicle.Phone)
	assert.Equal(t, "2019", s.Vehicle.Year)
	assert.Equal(t, models.StepVehicle, s.Step)
}

func TestMigrateOldDataIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	store, _ := newTestStore(t, mem)

	require.NoError(t, mem.Set(ctx, LegacyPlanKey, `{"planName":"basic wash","billing":"monthly"}`))
	_, err := store.MigrateOldData(ctx)
	require.NoError(t, err)

	first, err := mem.Get(ctx, SessionKey)
	require.NoError(t, err)

	res, err := store.MigrateOldData(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Consumed)

	second, err := mem.Get(ctx, SessionKey)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMigrateOldDataKeepsUnreadableKeys(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	store, _ := newTestStore(t, mem)

	require.NoError(t, mem.Set(ctx, LegacyPlanKey, `{"planName":"Platinum"}`))
	res, err := store.MigrateOldData(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Contains(t, res.Skipped, LegacyPlanKey)

	_, err = mem.Get(ctx, LegacyPlanKey)
	assert.NoError(t, err)
	_, err = mem.Get(ctx, SessionKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScopedStorage(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage()
	a, _ := newTestStore(t, Scope(mem, "a"))
	b, _ := newTestStore(t, Scope(mem, "b"))

	_, err := a.SavePlanSelection(ctx, 0, models.PeriodMonthly)
	require.NoError(t, err)

	got, err := b.Get(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = mem.Get(ctx, "a:"+SessionKey)
	assert.NoError(t, err)
}

func TestNewStoreDefaults(t *testing.T) {
	store := NewStore(NewMemoryStorage())
	assert.NotNil(t, store.logger)
	logrus.SetOutput(io.Discard)
	_, err := store.SavePlanSelection(context.Background(), 42, models.PeriodMonthly)
	assert.Error(t, err)
}
