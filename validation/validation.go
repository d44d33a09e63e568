// Package validation binds a request (JSON body, chi path parameters and query
// string) onto a DTO, runs its `validate` tags and stops the request with every
// violation listed when anything fails. The bound DTO is handed to the handler
// through the request context.
//
// Besides the stock validator tags, checks can be registered that need the request
// context and a store: "the referenced post exists", "the username is free". Each
// check declares a Kind, which decides the response status: any Invalid violation
// gives 400, otherwise NotFound gives 404, otherwise Conflict gives 409.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/user/opinion-manager/apperror"
)

// Kind classifies a failed check.
type Kind int

const (
	Invalid Kind = iota
	NotFound
	Conflict
)

// Locations reported in FieldViolation.Location.
const (
	LocationBody  = "body"
	LocationPath  = "path"
	LocationQuery = "query"
)

const maxBodyBytes = 1 << 20

// CheckFunc is a context-aware check. Returning an error means the check could not
// run (store unavailable); the request then fails with 500 instead of a violation.
type CheckFunc func(ctx context.Context, fl validator.FieldLevel) (bool, error)

type check struct {
	kind Kind
	msg  string
}

// Validator wraps a validator.Validate with the registered checks.
type Validator struct {
	validate *validator.Validate
	checks   map[string]check
}

// New returns a Validator with the password_policy check already registered.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		checks:   make(map[string]check),
	}
	// Report the name the client used, not the Go field name.
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _ := fieldName(f)
		return name
	})
	v.RegisterCheck("password_policy", Invalid,
		"The password must be 8 to 64 characters long and contain an upper-case letter, a lower-case letter and a digit",
		func(_ context.Context, fl validator.FieldLevel) (bool, error) {
			return PasswordPolicy(fl.Field().String()), nil
		})
	return v
}

// RegisterCheck adds a tag usable in `validate` struct tags.
func (v *Validator) RegisterCheck(tag string, kind Kind, msg string, fn CheckFunc) {
	v.checks[tag] = check{kind: kind, msg: msg}
	// The error is only returned for an empty tag or a nil func.
	_ = v.validate.RegisterValidationCtx(tag, func(ctx context.Context, fl validator.FieldLevel) bool {
		ok, err := fn(ctx, fl)
		if err != nil {
			recordFailure(ctx, err)
			return true
		}
		return ok
	})
}

// PasswordPolicy: 8..64 characters with at least one lower-case letter, one
// upper-case letter and one digit.
func PasswordPolicy(pw string) bool {
	n := len([]rune(pw))
	if n < 8 || n > 64 {
		return false
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// --- request binding middleware ---

type requestKey[T any] struct{}

// FromContext returns the DTO bound by Request[T].
func FromContext[T any](ctx context.Context) (*T, bool) {
	req, ok := ctx.Value(requestKey[T]{}).(*T)
	return req, ok
}

// Request decodes and validates *T before calling next. T must be a struct.
// Fields tagged `path:"name"` are filled from chi.URLParam, fields tagged
// `query:"name"` from the query string, and the rest from the JSON body.
// A `msg` tag overrides the message of every stock-tag failure on that field.
func Request[T any](v *Validator) func(next http.Handler) http.Handler {
	var zero T
	meta := describe(reflect.TypeOf(zero))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := new(T)

			if meta.hasBody {
				if err := decodeBody(r, req); err != nil {
					apperror.WriteError(w, r, err)
					return
				}
			}

			var violations []apperror.FieldViolation
			rv := reflect.ValueOf(req).Elem()
			for _, f := range meta.fields {
				switch f.location {
				case LocationPath:
					setString(rv.Field(f.index), chi.URLParam(r, f.name))
				case LocationQuery:
					raw, present := r.URL.Query()[f.name]
					if !present || len(raw) == 0 {
						continue
					}
					if err := setFromString(rv.Field(f.index), raw[0]); err != nil {
						violations = append(violations, apperror.FieldViolation{
							Field: f.name, Location: LocationQuery, Message: "Must be an integer",
						})
					}
				}
			}
			// Malformed query values are reported on their own; validating a zero
			// value in their place would only add noise.
			if len(violations) > 0 {
				apperror.WriteError(w, r, apperror.NewValidationError("Invalid request", nil).WithDetails(violations))
				return
			}

			sink := &failureSink{}
			ctx := context.WithValue(r.Context(), failureSinkKey{}, sink)
			err := v.validate.StructCtx(ctx, req)
			if sinkErr := sink.get(); sinkErr != nil {
				apperror.WriteError(w, r, apperror.NewDatabaseError("validation check failed", sinkErr))
				return
			}
			if err != nil {
				var verrs validator.ValidationErrors
				if !errors.As(err, &verrs) {
					apperror.WriteError(w, r, apperror.NewInternalError("validation failed", err))
					return
				}
				apperror.WriteError(w, r, v.toAppError(verrs, meta))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestKey[T]{}, req)))
		})
	}
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperror.NewBadRequestError("Could not read request body", err)
	}
	if len(body) > maxBodyBytes {
		return apperror.NewBadRequestError("Request body too large", nil)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		// An empty body is an empty object; required fields are reported by validation.
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperror.NewBadRequestError("Invalid JSON body", err)
	}
	return nil
}

// toAppError orders statuses Invalid > NotFound > Conflict and keeps all violations.
// The top-level message is the first violation of the winning kind.
func (v *Validator) toAppError(verrs validator.ValidationErrors, meta typeMeta) *apperror.AppError {
	violations := make([]apperror.FieldViolation, 0, len(verrs))
	kinds := make([]Kind, 0, len(verrs))
	for _, fe := range verrs {
		f := meta.byGoName[fe.StructField()]
		kind, msg := Invalid, ""
		if c, ok := v.checks[fe.Tag()]; ok {
			kind, msg = c.kind, c.msg
		} else if f.msg != "" {
			msg = f.msg
		} else {
			msg = defaultMessage(fe)
		}
		location := f.location
		if location == "" {
			location = LocationBody
		}
		kinds = append(kinds, kind)
		violations = append(violations, apperror.FieldViolation{
			Field: fe.Field(), Location: location, Message: msg,
		})
	}

	winner := Conflict
	for _, k := range kinds {
		if k < winner {
			winner = k
		}
	}
	top := violations[0].Message
	for i, k := range kinds {
		if k == winner {
			top = violations[i].Message
			break
		}
	}

	errType := apperror.ValidationError
	switch winner {
	case NotFound:
		errType = apperror.NotFoundError
	case Conflict:
		errType = apperror.ConflictError
	}
	return apperror.NewAppError(errType, top, nil).WithDetails(violations)
}

func defaultMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Obligatory field"
	case "mongodb":
		return "The id is not a valid MongoDB format"
	case "email":
		return "This is not a valid email"
	case "min", "gte":
		if isString {
			return fmt.Sprintf("Must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max", "lte":
		if isString {
			return fmt.Sprintf("Must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	}
	return "Invalid value"
}

// --- check failure sink ---

type failureSinkKey struct{}

// failureSink holds the first error a check returned during one StructCtx call.
type failureSink struct {
	mu  sync.Mutex
	err error
}

func (s *failureSink) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func recordFailure(ctx context.Context, err error) {
	sink, ok := ctx.Value(failureSinkKey{}).(*failureSink)
	if !ok {
		return
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.err == nil {
		sink.err = err
	}
}

// --- struct metadata ---

type fieldMeta struct {
	index    int
	name     string
	location string
	msg      string
}

type typeMeta struct {
	fields   []fieldMeta
	byGoName map[string]fieldMeta
	hasBody  bool
}

func describe(t reflect.Type) typeMeta {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("validation: Request type %s is not a struct", t))
	}
	meta := typeMeta{byGoName: make(map[string]fieldMeta)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, location := fieldName(sf)
		if name == "-" {
			continue
		}
		f := fieldMeta{index: i, name: name, location: location, msg: sf.Tag.Get("msg")}
		if location == LocationBody {
			meta.hasBody = true
		}
		meta.fields = append(meta.fields, f)
		meta.byGoName[sf.Name] = f
	}
	return meta
}

// fieldName returns the client-facing name of a field and where it is read from.
func fieldName(f reflect.StructField) (string, string) {
	if p := f.Tag.Get("path"); p != "" {
		return p, LocationPath
	}
	if q := f.Tag.Get("query"); q != "" {
		return q, LocationQuery
	}
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return "-", ""
	}
	if name == "" {
		name = f.Name
	}
	return name, LocationBody
}

func setString(v reflect.Value, s string) {
	switch {
	case v.Kind() == reflect.String:
		v.SetString(s)
	case v.Kind() == reflect.Pointer && v.Type().Elem().Kind() == reflect.String:
		v.Set(reflect.ValueOf(&s))
	}
}

func setFromString(v reflect.Value, s string) error {
	target := v
	if v.Kind() == reflect.Pointer {
		target = reflect.New(v.Type().Elem()).Elem()
	}
	switch target.Kind() {
	case reflect.String:
		target.SetString(s)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return err
		}
		target.SetInt(n)
	default:
		return fmt.Errorf("unsupported query field kind %s", target.Kind())
	}
	if v.Kind() == reflect.Pointer {
		v.Set(target.Addr())
	}
	return nil
}
