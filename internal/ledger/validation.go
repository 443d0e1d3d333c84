package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daybook/daybook/internal/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate runs struct tag validation and wraps failures in shared.ErrValidation.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return field + " must not be negative"
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "max":
		return field + " is too long"
	default:
		return field + " is invalid"
	}
}

// ValidateOperationalReport checks identity fields and amounts.
func ValidateOperationalReport(r OperationalReport) error {
	if r.BusinessID == uuid.Nil {
		return fmt.Errorf("%w: business is required", shared.ErrValidation)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", shared.ErrValidation)
	}
	return Validate(r)
}

// ValidateAccountingReport checks the date, amounts, statuses and that each
// platform appears at most once.
func ValidateAccountingReport(r AccountingReport) error {
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", shared.ErrValidation)
	}
	if r.Register.Balance != nil && r.Register.Balance.IsNegative() {
		return fmt.Errorf("%w: main_register.balance must not be negative", shared.ErrValidation)
	}
	seen := make(map[string]struct{}, len(r.Platforms))
	for _, p := range r.Platforms {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: platform %q listed twice", shared.ErrValidation, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return Validate(r)
}

// ValidateBusiness checks the business name and category.
func ValidateBusiness(b Business) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	return Validate(b)
}
