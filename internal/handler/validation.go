package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/neoori/profile-api/internal/apperror"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads one JSON value from the request body into dst and
// runs its validate tags. Failures are validation errors carrying a message
// fit for the client.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("", "Request body too large")
		}
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("", "Invalid JSON body")
	}

	return validate(dst)
}

func validate(v any) error {
	err := requestValidator.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return apperror.ValidationFailed("", "Invalid request payload")
	}

	first := validationErrors[0]
	field := first.Field()
	switch first.Tag() {
	case "required":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	case "email":
		return apperror.ValidationFailed(field, "Invalid email format")
	case "min":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be at least %s", field, first.Param()))
	case "max":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %s", field, first.Param()))
	case "oneof":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be one of %s", field, first.Param()))
	default:
		return apperror.ValidationFailed(field, fmt.Sprintf("Invalid %s", field))
	}
}
