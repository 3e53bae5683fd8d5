package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/listingprice-indexer/pkg/errors"
)

// MaxBodyBytes caps request bodies. A full admin batch of ids fits comfortably.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes exactly one JSON object from the body into dest and
// validates it. All failures carry CodeValidation.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").
			WithDetails(map[string]string{"body": "must contain a single JSON object"})
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func decodeError(err error) *pkgerrors.Error {
	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		tooLongErr *http.MaxBytesError
	)
	detail := err.Error()
	switch {
	case errors.Is(err, io.EOF):
		detail = "must not be empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		detail = "is truncated"
	case errors.As(err, &syntaxErr):
		detail = fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{typeErr.Field: "must be " + typeErr.Type.String()})
	case errors.As(err, &tooLongErr):
		detail = fmt.Sprintf("must be at most %d bytes", tooLongErr.Limit)
	case strings.HasPrefix(detail, "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(detail, "json: unknown field "), `"`)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{field: "is not allowed"})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
		WithDetails(map[string]string{"body": detail})
}

func validationError(err error) *pkgerrors.Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		// dive errors keep the element index, e.g. productIds[2]
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}
