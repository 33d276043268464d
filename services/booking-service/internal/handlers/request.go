package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/meetslot/libs/httpx"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a single JSON object into dst and validates it. It writes the 400
// response itself and reports false when the request should stop.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "InvalidRequest", "invalid json body: "+jsonProblem(err))
		return false
	}
	if dec.More() {
		httpx.WriteError(w, http.StatusBadRequest, "InvalidRequest", "body must contain a single JSON object")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		httpx.WriteErrorDetails(w, http.StatusBadRequest, "InvalidRequest", "request validation failed", validationDetails(err))
		return false
	}
	return true
}

func jsonProblem(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return "body too large"
	case errors.Is(err, io.EOF):
		return "body is empty"
	default:
		return err.Error()
	}
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out[field] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func requireQuery(w http.ResponseWriter, r *http.Request, keys ...string) bool {
	missing := map[string]string{}
	for _, k := range keys {
		if queryValue(r, k) == "" {
			missing[k] = "is required"
		}
	}
	if len(missing) == 0 {
		return true
	}
	httpx.WriteErrorDetails(w, http.StatusBadRequest, "InvalidRequest", "missing query parameters", missing)
	return false
}
