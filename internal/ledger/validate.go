package ledger

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/seaclub/backend/internal/models"
)

// AdjustmentInput is the caller-supplied content of an adjustment, used
// both to record a new one and to overwrite an existing one.
type AdjustmentInput struct {
	Category        models.Category  `json:"category" validate:"required,category"`
	Direction       models.Direction `json:"direction" validate:"required,direction"`
	Magnitude       int64            `json:"magnitude" validate:"gt=0"`
	TransactionDate time.Time        `json:"transaction_date" validate:"required"`
	Description     string           `json:"description" validate:"required"`
	Notes           string           `json:"notes"`
}

// RegisterValidations adds the "category" and "direction" tags.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
		return models.Direction(fl.Field().String()).Valid()
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

func newValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// normalize trims text fields and truncates the date before validation.
func (in *AdjustmentInput) normalize() {
	in.Description = strings.TrimSpace(in.Description)
	in.Notes = strings.TrimSpace(in.Notes)
	if !in.TransactionDate.IsZero() {
		in.TransactionDate = models.DateOf(in.TransactionDate)
	}
}

func validateInput(v *validator.Validate, in *AdjustmentInput) error {
	in.normalize()
	if err := v.Struct(in); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "category":
		return "must be one of the six ledger categories"
	case "direction":
		return "must be increase or decrease"
	default:
		return "failed on '" + fe.Tag() + "' rule"
	}
}
