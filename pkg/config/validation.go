package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// minFrameSize is the smallest max-frame-size the protocol permits
// (part 2.4.1: a peer must accept frames of at least 512 bytes).
const minFrameSize = 512

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for invalid values.
//
// Struct tags drive the field-level checks; cross-field and protocol
// constraints that tags cannot express are checked explicitly.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid configuration: %s", formatValidationErrors(verrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Connection.MaxFrameSize < minFrameSize {
		return fmt.Errorf("invalid configuration: connection.max_frame_size %d is below the protocol minimum of %d bytes",
			cfg.Connection.MaxFrameSize, minFrameSize)
	}

	return nil
}

// formatValidationErrors renders validator errors as a readable list of
// "field: constraint" entries.
func formatValidationErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldPath(fe)))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", fieldPath(fe), fe.Param(), fe.Value()))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fieldPath(fe), fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fieldPath(fe), fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fieldPath(fe), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fieldPath(fe), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// fieldPath strips the root struct name from the validator namespace,
// leaving a dotted path like "Logging.Level".
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
