package domain

import (
	"fmt"
	"match-chat/errors"
	"strings"
)

// KeySeparator joins ids inside storage keys, so no id may contain it.
const KeySeparator = ":"

// ValidateID rejects ids that are empty or could be mistaken for part of a storage key.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", errors.ErrInvalidPayload)
	}
	if strings.Contains(id, KeySeparator) {
		return fmt.Errorf("%w: id %q contains %q", errors.ErrInvalidPayload, id, KeySeparator)
	}
	return nil
}
