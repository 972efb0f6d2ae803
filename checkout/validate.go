package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"washclub-checkout-api/models"
	"washclub-checkout-api/utils"
)

// MinModelYear is the oldest vehicle year the form accepts.
const MinModelYear = 1900

var (
	phonePattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	platePattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)

	usStates = map[string]bool{}
)

func init() {
	for _, code := range strings.Fields(`AL AK AZ AR CA CO CT DE FL GA HI ID IL IN IA KS KY LA ME MD
		MA MI MN MS MO MT NE NV NH NJ NM NY NC ND OH OK OR PA RI SC SD TN TX UT VT VA WA WV WI WY`) {
		usStates[code] = true
	}
}

// USStates returns the accepted state codes.
func USStates() []string {
	out := make([]string, 0, len(usStates))
	for code := range usStates {
		out = append(out, code)
	}
	return out
}

// VehicleValidator checks vehicle/customer records with the same rules as the form.
type VehicleValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewVehicleValidator() *VehicleValidator {
	v := &VehicleValidator{validate: validator.New(), now: time.Now}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.validate.RegisterValidation("us_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.validate.RegisterValidation("license_plate", func(fl validator.FieldLevel) bool {
		return platePattern.MatchString(fl.Field().String())
	})
	v.validate.RegisterValidation("us_state", func(fl validator.FieldLevel) bool {
		return usStates[fl.Field().String()]
	})
	v.validate.RegisterValidation("model_year", func(fl validator.FieldLevel) bool {
		year, err := strconv.Atoi(fl.Field().String())
		if err != nil {
			return false
		}
		return year >= MinModelYear && year <= v.now().Year()
	})
	return v
}

// Normalize applies the input masks the form applies before validation.
func Normalize(rec models.VehicleRecord) models.VehicleRecord {
	rec.FirstName = strings.TrimSpace(rec.FirstName)
	rec.LastName = strings.TrimSpace(rec.LastName)
	rec.Email = strings.ToLower(strings.TrimSpace(rec.Email))
	rec.Phone = utils.NormalizePhone(rec.Phone)
	rec.LicensePlate = utils.NormalizePlate(rec.LicensePlate)
	rec.State = strings.ToUpper(strings.TrimSpace(rec.State))
	rec.Make = strings.TrimSpace(rec.Make)
	rec.Model = strings.TrimSpace(rec.Model)
	rec.Year = strings.TrimSpace(rec.Year)
	return rec
}

// Validate returns one message per invalid field, keyed by JSON field name.
// An empty map means the record is valid.
func (v *VehicleValidator) Validate(rec models.VehicleRecord) map[string]string {
	fields := make(map[string]string)
	err := v.validate.Struct(rec)
	if err == nil {
		return fields
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "us_phone":
		return "Phone must look like (555) 123-4567"
	case "license_plate":
		return "Plate must be 2-8 letters or digits"
	case "us_state":
		return "Select a US state"
	case "len", "model_year":
		return "Enter a 4-digit year between 1900 and this year"
	case "eq":
		return "You must accept the terms"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	default:
		return "Invalid value"
	}
}
