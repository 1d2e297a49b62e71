package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/filehandle/pkg/filehandle"
	"github.com/marmos91/filehandle/pkg/lockwait"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// octalmode accepts the non-zero permission strings understood by filehandle.ParseMode
	if err := validate.RegisterValidation("octalmode", func(fl validator.FieldLevel) bool {
		_, err := parseFileMode(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("config: register octalmode validation: %v", err))
	}
}

// errZeroMode is returned for "0000": a zero mode means "unset" to
// filehandle.Options and would silently become filehandle.DefaultPermissions.
var errZeroMode = errors.New("mode 0000 is not allowed")

// parseFileMode parses a configured permission string, rejecting a zero mode.
func parseFileMode(s string) (os.FileMode, error) {
	mode, err := filehandle.ParseMode(s)
	if err != nil {
		return 0, err
	}
	if mode == 0 {
		return 0, errZeroMode
	}
	return mode, nil
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Poll options live in a free-form map; decode and validate them only
	// when the poll strategy is selected
	if cfg.Lock.Strategy == lockwait.StrategyPoll {
		pollCfg, err := decodePollerConfig(cfg.Lock.Poll)
		if err != nil {
			return fmt.Errorf("lock.poll: %w", err)
		}
		if err := validate.Struct(pollCfg); err != nil {
			return fmt.Errorf("lock.poll: %w", formatValidationError(err))
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
