package protocol

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidatePayload checks the payload's validate tags. A failure means the
// inbound event is malformed and must be dropped rather than processed.
func ValidatePayload(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
