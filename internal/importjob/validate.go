package importjob

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/leadimport/internal/dedup"
)

// ErrInvalidRequest reports a malformed request. Missing tenants and unknown
// strategies surface as dedup.ErrMissingTenant and dedup.ErrInvalidStrategy.
var ErrInvalidRequest = errors.New("importjob: invalid request")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateRequest checks struct tags and maps the first failing field to a
// sentinel error.
func validateRequest(req any) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "tenant_id":
			return dedup.ErrMissingTenant
		case "strategy":
			return fmt.Errorf("%w: %q", dedup.ErrInvalidStrategy, fe.Value())
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), fieldMessage(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
