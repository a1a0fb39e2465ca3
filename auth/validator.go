package auth

import (
	"encoding/json"
	"fmt"
	"match-chat/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs the struct tags of payload and folds the failures into one ErrInvalidPayload.
func Validate(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidPayload, strings.Join(fields, ", "))
}

// Decode unmarshals raw into T and validates it.
func Decode[T any](raw []byte) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, fmt.Errorf("%w: empty payload", errors.ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return payload, Validate(payload)
}
