package reportform

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"safetyportal/internal/domain/report"
)

var formValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Field errors are keyed by the JSON names clients send.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var tagMessages = map[string]string{
	"required": "is required",
	"datetime": "has an invalid format",
}

func structErrors(v any) report.FieldErrors {
	out := report.FieldErrors{}
	err := formValidate.Struct(v)
	if err == nil {
		return out
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("form", err.Error())
		return out
	}
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag()
		}
		out.Add(fe.Field(), msg)
	}
	return out
}
