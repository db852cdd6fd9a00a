package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/lifeline/donation-api/internal/model"
)

var registerOnce sync.Once

// Register installs the domain tags on gin's binding validator. Safe to call
// more than once.
func Register() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		err = RegisterTags(v)
	})
	return err
}

// RegisterTags adds bloodtype, urgency and eligibility to v and reports
// field names by their json tag.
func RegisterTags(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	tags := map[string]validator.Func{
		"bloodtype":   validBloodType,
		"urgency":     validUrgency,
		"eligibility": validEligibility,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

func validBloodType(fl validator.FieldLevel) bool {
	_, err := model.ParseBloodType(fl.Field().String())
	return err == nil
}

func validUrgency(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n >= model.MinUrgencyLevel && n <= model.MaxUrgencyLevel
}

func validEligibility(fl validator.FieldLevel) bool {
	return model.EligibilityStatus(fl.Field().String()).Valid()
}

// Describe turns binding errors into one human-readable sentence.
func Describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "bloodtype":
		return field + " must be a valid blood type"
	case "urgency":
		return fmt.Sprintf("%s must be between %d and %d", field, model.MinUrgencyLevel, model.MaxUrgencyLevel)
	case "eligibility":
		return field + " must be pending, eligible or ineligible"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
