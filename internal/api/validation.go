package api

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mr1hm/go-accident-alerts/internal/apperr"
)

// RegisterValidations adds the lat/lng tags to gin's validator and reports
// fields by their JSON names.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("lat", validateLat); err != nil {
		return err
	}
	return v.RegisterValidation("lng", validateLng)
}

func validateLat(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return !math.IsNaN(lat) && lat >= -90.0 && lat <= 90.0
}

func validateLng(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return !math.IsNaN(lng) && lng >= -180.0 && lng <= 180.0
}

// bindError turns a gin binding failure into a ValidationError.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		switch fe.Tag() {
		case "required":
			reason = "required"
		case "lat":
			reason = "must be in [-90, 90]"
		case "lng":
			reason = "must be in [-180, 180]"
		}
		return apperr.Validation(fe.Field(), reason)
	}
	return apperr.Validation("body", "invalid JSON: "+err.Error())
}
