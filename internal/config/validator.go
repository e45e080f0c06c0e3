// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any failure
// aborts startup, so the binary never runs with a malformed log, HTTP,
// Vault, identity, or pool section.
//
// The `repository` section is skipped (`validate:"-"`).  Its rules are
// ordered and live in `internal/options`.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New()

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
// Field errors are flattened to "Namespace: tag" for log readability.
func validateStruct(c *Config) error {
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", ErrInvalid, fe.Namespace(), fe.Tag())
	}
	return err
}

// ErrInvalid wraps every ambient-section validation failure.
var ErrInvalid = errors.New("invalid configuration")
