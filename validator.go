package netapi

import (
	"context"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// Validator checks one bound argument of a validated operation.
type Validator interface {
	Validate(ctx context.Context, arg any) error
}

// SelfValidating arguments are checked by their own Validate method on every
// operation, validated or not.
type SelfValidating interface {
	Validate() error
}

// StructValidator validates struct arguments through `validate` struct tags.
// Non-struct arguments pass unchecked.
type StructValidator struct {
	v *validator.Validate
}

// NewStructValidator returns a [StructValidator] with required-struct checking enabled.
func NewStructValidator() *StructValidator {
	return &StructValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Engine returns the underlying validator for custom tag registration before Build.
func (s *StructValidator) Engine() *validator.Validate { return s.v }

func (s *StructValidator) Validate(ctx context.Context, arg any) error {
	if arg == nil {
		return nil
	}
	t := reflect.TypeOf(arg)
	if t.Kind() == reflect.Pointer {
		if reflect.ValueOf(arg).IsNil() {
			return nil
		}
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return s.v.StructCtx(ctx, arg)
}
