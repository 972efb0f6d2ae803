package checkout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"washclub-checkout-api/models"
)

func TestVehicleValidatorAcceptsValidRecord(t *testing.T) {
	v := NewVehicleValidator()
	assert.Empty(t, v.Validate(sampleVehicle()))
}

func TestVehicleValidatorFieldErrors(t *testing.T) {
	v := NewVehicleValidator()
	v.now = func() time.Time { return fixedNow }

	rec := sampleVehicle()
	rec.Email = "not-an-email"
	rec.Phone = "555-1234"
	rec.LicensePlate = "A"
	rec.State = "XX"
	rec.Year = "2031"
	rec.TermsAccepted = false

	errs := v.Validate(rec)
	for _, field := range []string{"email", "phone", "licensePlate", "state", "year", "termsAccepted"} {
		assert.Contains(t, errs, field)
	}
	assert.NotContains(t, errs, "firstName")
}

func TestVehicleValidatorYearBounds(t *testing.T) {
	v := NewVehicleValidator()
	v.now = func() time.Time { return fixedNow }

	for year, ok := range map[string]bool{"1899": false, "1900": true, "2026": true, "2027": false, "19x0": false, "199": false} {
		rec := sampleVehicle()
		rec.Year = year
		_, bad := v.Validate(rec)["year"]
		assert.Equal(t, ok, !bad, year)
	}
}

func TestNormalize(t *testing.T) {
	rec := Normalize(models.VehicleRecord{
		FirstName:    "  Ada ",
		Email:        " ADA@Example.com",
		Phone:        "555.123.4567",
		LicensePlate: "abc-123",
		State:        " ca",
		Year:         " 2019 ",
	})
	assert.Equal(t, "Ada", rec.FirstName)
	assert.Equal(t, "ada@example.com", rec.Email)
	assert.Equal(t, "(555) 123-4567", rec.Phone)
	assert.Equal(t, "ABC123", rec.LicensePlate)
	assert.Equal(t, "CA", rec.State)
	assert.Equal(t, "2019", rec.Year)
}

func TestNormalizeDoesNotHideOverlongInput(t *testing.T) {
	rec := sampleVehicle()
	rec.LicensePlate = "abcd-efgh-ijkl"
	rec.Phone = "555 123 4567 890"
	rec = Normalize(rec)
	assert.Equal(t, "ABCDEFGHIJKL", rec.LicensePlate)

	errs := NewVehicleValidator().Validate(rec)
	assert.Contains(t, errs, "licensePlate")
	assert.Contains(t, errs, "phone")
}

func TestUSStates(t *testing.T) {
	assert.Len(t, USStates(), 50)
}
