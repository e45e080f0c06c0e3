// internal/options/validator.go
//
// Pre-provisioning gate for RepositoryOptions.
//
// Context
// -------
// The provisioner calls ValidateForContainerCreation once per options
// snapshot, before it touches the network.  Checks run in a fixed order
// and the first failure is returned:
//
//  1. holder present
//  2. connection secret or token credential present
//  3. account endpoint present (identity auth only)
//  4. database id, then container id (shared topology only)
//
// The validator is stateless and never writes to the options, so one
// value can be shared across goroutines.
package options

// Field names reported in FieldError.
const (
	FieldOptions          = "options"
	FieldConnectionSecret = "connectionSecret"
	FieldAccountEndpoint  = "accountEndpoint"
	FieldDatabaseID       = "databaseId"
	FieldContainerID      = "containerId"
)

// Validator gates options before container creation.
type Validator interface {
	ValidateForContainerCreation(h Holder) error
}

// DefaultValidator implements Validator.  Zero value is ready to use.
type DefaultValidator struct{}

var _ Validator = DefaultValidator{}

// ValidateForContainerCreation returns nil when h is complete, or the first
// *FieldError found.
func (DefaultValidator) ValidateForContainerCreation(h Holder) error {
	return ValidateForContainerCreation(h)
}

// ValidateForContainerCreation is the package-level form of
// DefaultValidator.ValidateForContainerCreation.
func ValidateForContainerCreation(h Holder) error {
	opts, ok := h.Value()
	if !ok {
		return missing(MissingOptions, FieldOptions)
	}

	switch opts.AuthMode() {
	case AuthNone:
		return missing(MissingCredential, FieldConnectionSecret)
	case AuthIdentity:
		if !present(opts.AccountEndpoint) {
			return missing(MissingAccountEndpoint, FieldAccountEndpoint)
		}
	}

	if !opts.ContainerPerItemType {
		if !present(opts.DatabaseID) {
			return missing(MissingDatabaseID, FieldDatabaseID)
		}
		if !present(opts.ContainerID) {
			return missing(MissingContainerID, FieldContainerID)
		}
	}
	return nil
}
