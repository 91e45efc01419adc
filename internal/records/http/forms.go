package recordshttp

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wecare-insurance/portal/internal/records"
	"github.com/wecare-insurance/portal/internal/shared"
)

// recordForm is the intake and edit form. Required fields are enforced by the
// controller; the tags here only check shape.
type recordForm struct {
	CustomerName    string `form:"customerName" validate:"max=120"`
	PhoneNumber     string `form:"phoneNumber" validate:"max=20"`
	VehicleNumber   string `form:"vehicleNumber" validate:"max=20"`
	Company         string `form:"company" validate:"max=120"`
	PolicyStartDate string `form:"policyStartDate" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate      string `form:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func parseRecordForm(r *http.Request) (recordForm, error) {
	if err := r.ParseForm(); err != nil {
		return recordForm{}, err
	}
	return recordForm{
		CustomerName:    strings.TrimSpace(r.PostFormValue("customerName")),
		PhoneNumber:     strings.TrimSpace(r.PostFormValue("phoneNumber")),
		VehicleNumber:   records.NormalizeVehicleNumber(r.PostFormValue("vehicleNumber")),
		Company:         strings.TrimSpace(r.PostFormValue("company")),
		PolicyStartDate: strings.TrimSpace(r.PostFormValue("policyStartDate")),
		ExpiryDate:      strings.TrimSpace(r.PostFormValue("expiryDate")),
	}, nil
}

func formFromRecord(rec records.Record) recordForm {
	f := recordForm{
		CustomerName:  rec.CustomerName,
		PhoneNumber:   rec.PhoneNumber,
		VehicleNumber: rec.VehicleNumber,
		Company:       rec.Company,
	}
	if rec.PolicyStartDate != nil {
		f.PolicyStartDate = rec.PolicyStartDate.String()
	}
	if rec.ExpiryDate != nil {
		f.ExpiryDate = rec.ExpiryDate.String()
	}
	return f
}

var tagMessages = map[string]string{
	"max":      "Value is too long",
	"datetime": "Use the YYYY-MM-DD format",
}

// check validates the form shape and returns field messages keyed by form name.
func check(v *validator.Validate, form recordForm) map[string]string {
	errs := map[string]string{}
	err := v.Struct(form)
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			msg, ok := tagMessages[fe.Tag()]
			if !ok {
				msg = "Invalid value"
			}
			errs[fe.Field()] = msg
		}
	}
	return errs
}

func (f recordForm) dates() (start, expiry *records.Date) {
	// check has already rejected malformed values.
	start, _ = records.ParseDate(f.PolicyStartDate)
	expiry, _ = records.ParseDate(f.ExpiryDate)
	return start, expiry
}

func (f recordForm) draft() records.Draft {
	start, expiry := f.dates()
	return records.Draft{
		CustomerName:    f.CustomerName,
		PhoneNumber:     f.PhoneNumber,
		VehicleNumber:   f.VehicleNumber,
		Company:         f.Company,
		PolicyStartDate: start,
		ExpiryDate:      expiry,
	}
}

// patch sends every field; the API overwrites the record with the body.
func (f recordForm) patch() records.Patch {
	start, expiry := f.dates()
	name, phone, vehicle, company := f.CustomerName, f.PhoneNumber, f.VehicleNumber, f.Company
	return records.Patch{
		CustomerName:    &name,
		PhoneNumber:     &phone,
		VehicleNumber:   &vehicle,
		Company:         &company,
		PolicyStartDate: start,
		ExpiryDate:      expiry,
	}
}

// fieldErrors merges a controller validation failure into errs. It reports
// false when err is not a validation failure.
func fieldErrors(err error, errs map[string]string) bool {
	var verr *shared.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	for field, msg := range verr.Fields() {
		if field == "" {
			field = "general"
		}
		errs[field] = msg
	}
	return true
}
