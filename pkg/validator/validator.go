package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// VisitHourLayout is the clock format accepted by the visit_hour rule.
const VisitHourLayout = "15:04"

var (
	once     sync.Once
	validate *validator.Validate
)

// domainRules are registered on the shared validator the first time it is used.
var domainRules = map[string]validator.Func{
	"visit_hour": isVisitHour,
}

// ValidationError describes one failed rule on one payload field.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects every failed rule of a payload.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(v))
	for _, failure := range v {
		rule := failure.Tag
		if failure.Param != "" {
			rule += "=" + failure.Param
		}
		parts = append(parts, failure.Field+" failed on "+rule)
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct runs the struct tags of s, including the domain rules, and
// returns ValidationErrors when any rule fails.
func ValidateStruct(s any) error {
	err := shared().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	failures := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		failures = append(failures, ValidationError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// isVisitHour accepts H:MM or HH:MM on a 24 hour clock.
func isVisitHour(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	_, err := time.Parse(VisitHourLayout, strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func shared() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		for tag, fn := range domainRules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic("validator: register " + tag + ": " + err.Error())
			}
		}
		validate = v
	})
	return validate
}
