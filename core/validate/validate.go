// Package validate validates configuration structs through validator tags.
//
// Overview:
//   - Responsibility: Run go-playground/validator over option structs and map failures to coded errors
//   - Key Types: Struct helper, shared *validator.Validate
//   - Concurrency Model: The shared validator is built once and safe for concurrent use
//   - Error Semantics: Every failure is a CodeInvalidArgument error naming the failed fields
//   - Performance Notes: Struct metadata is cached by the underlying validator
//
// Besides the built-in tags, "notblank" rejects strings that are empty after
// trimming whitespace and nil or empty slices.
//
// Usage:
//
//	type Options struct {
//		Name string `validate:"notblank"`
//	}
//	if err := validate.Struct("sourcex.NewConfig", opts); err != nil { ... }
package validate

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"go.eggybyte.com/scf/core/errors"
)

var (
	once   sync.Once
	shared *validator.Validate
)

// Option configures the validator returned by New.
type Option func(*validator.Validate)

// New creates a validator with the scf custom tags registered.
func New(opts ...Option) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", notBlank, true)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Default returns the process-wide validator.
func Default() *validator.Validate {
	once.Do(func() { shared = New() })
	return shared
}

// Struct validates target with the shared validator. op names the calling
// constructor and is recorded on the returned error.
func Struct(op string, target any) error {
	return StructWith(Default(), op, target)
}

// StructWith validates target with v.
func StructWith(v *validator.Validate, op string, target any) error {
	if v == nil {
		v = Default()
	}
	err := v.Struct(target)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Wrapf(errors.CodeInvalidArgument, op, err, "validation failed")
	}

	msgs := make([]string, 0, len(fieldErrs))
	details := make([]any, 0, len(fieldErrs)*2)
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
		details = append(details, fe.Namespace(), fe.Tag())
	}
	return errors.Build(errors.CodeInvalidArgument).
		WithOp(op).
		WithErr(err).
		WithMsg(strings.Join(msgs, "; ")).
		WithDetails(details...).
		Err()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", strings.ToLower(fe.Field()), fe.Param())
	case "gte", "gt":
		return fmt.Sprintf("%s must be %s %s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag())
	}
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return field.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !field.IsNil()
	default:
		return !field.IsZero()
	}
}
