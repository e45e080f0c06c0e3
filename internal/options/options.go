// internal/options/options.go
//
// Repository connection and topology options.
//
// Context
// -------
// `RepositoryOptions` is the snapshot handed to the provisioner before it
// opens a connection or creates containers.  It is built once by
// `internal/config` and treated as read-only afterwards.
//
// Absence is explicit: an empty (or blank) string means "not set", and a
// nil `TokenCredential` (typed nil included) means no identity credential.  The whole snapshot
// travels inside a `Holder` so callers can tell "no options at all" apart
// from "options with missing fields".
//
// Notes
// -----
//   - Struct tags use `koanf:"…"` so the config loader can unmarshal the
//     `repository` section directly.
//   - Oxford commas, two spaces after periods.
package options

import (
	"context"
	"reflect"
	"strings"
	"time"
)

//
// Identity credential
//

// AccessToken is a bearer token plus its expiry.
type AccessToken struct {
	Value     string
	ExpiresOn time.Time
}

// TokenCredential is anything that can produce an access token for
// identity-based authentication.  The Vault client satisfies it.
type TokenCredential interface {
	Token(ctx context.Context) (AccessToken, error)
}

// StaticToken is a fixed credential for development and tests.
type StaticToken string

// Token returns the static value with no expiry.
func (s StaticToken) Token(context.Context) (AccessToken, error) {
	return AccessToken{Value: string(s)}, nil
}

//
// Authentication mode
//

// AuthMode is the authentication scheme chosen from the options.
type AuthMode int

const (
	AuthNone     AuthMode = iota // neither secret nor credential
	AuthSecret                   // ConnectionSecret, takes precedence
	AuthIdentity                 // TokenCredential + AccountEndpoint
)

func (m AuthMode) String() string {
	switch m {
	case AuthSecret:
		return "secret"
	case AuthIdentity:
		return "identity"
	default:
		return "none"
	}
}

//
// Container options
//

// ContainerOptions customises the container backing one item type.  Only
// consulted when ContainerPerItemType is true.
type ContainerOptions struct {
	ItemType         string        `koanf:"item_type"`
	Name             string        `koanf:"name"`
	PartitionKeyPath string        `koanf:"partition_key_path"`
	DefaultTTL       time.Duration `koanf:"default_ttl"`
}

//
// Root options
//

// RepositoryOptions describes authentication and storage topology.
type RepositoryOptions struct {
	ConnectionSecret     string             `koanf:"connection_secret"`
	TokenCredential      TokenCredential    `koanf:"-"` // attached at runtime
	AccountEndpoint      string             `koanf:"account_endpoint"`
	DatabaseID           string             `koanf:"database_id"`
	ContainerID          string             `koanf:"container_id"`
	ContainerPerItemType bool               `koanf:"container_per_item_type"`
	Containers           []ContainerOptions `koanf:"containers"`
}

// AuthMode reports which scheme the options select.  A present secret wins
// even when a credential is also set.
func (o RepositoryOptions) AuthMode() AuthMode {
	switch {
	case present(o.ConnectionSecret):
		return AuthSecret
	case HasCredential(o.TokenCredential):
		return AuthIdentity
	default:
		return AuthNone
	}
}

// ContainerFor resolves the container name for itemType.  Shared topology
// always yields ContainerID.  Per-item-type topology yields the configured
// name, falling back to the item type itself.
func (o RepositoryOptions) ContainerFor(itemType string) string {
	if !o.ContainerPerItemType {
		return o.ContainerID
	}
	if c, ok := o.containerOptions(itemType); ok && present(c.Name) {
		return c.Name
	}
	return itemType
}

// ContainerOptionsFor returns the per-item-type settings, if any.
func (o RepositoryOptions) ContainerOptionsFor(itemType string) (ContainerOptions, bool) {
	return o.containerOptions(itemType)
}

func (o RepositoryOptions) containerOptions(itemType string) (ContainerOptions, bool) {
	for _, c := range o.Containers {
		if c.ItemType == itemType {
			return c, true
		}
	}
	return ContainerOptions{}, false
}

// ItemTypes lists the item types named in Containers, in order.
func (o RepositoryOptions) ItemTypes() []string {
	out := make([]string, 0, len(o.Containers))
	for _, c := range o.Containers {
		if present(c.ItemType) {
			out = append(out, c.ItemType)
		}
	}
	return out
}

//
// Holder
//

// Holder is an optional RepositoryOptions.  The zero value is absent.
type Holder struct {
	opts RepositoryOptions
	ok   bool
}

// None is the absent holder.
var None = Holder{}

// Of wraps opts in a present holder.  The holder keeps its own copy of the
// struct; Containers shares its backing array and must not be mutated.
func Of(opts RepositoryOptions) Holder { return Holder{opts: opts, ok: true} }

// Value returns the options and whether the holder is present.
func (h Holder) Value() (RepositoryOptions, bool) { return h.opts, h.ok }

// Present reports whether the holder carries options.
func (h Holder) Present() bool { return h.ok }

// IsSet reports whether s counts as a value.  Blank strings are unset.
func IsSet(s string) bool { return present(s) }

func present(s string) bool { return strings.TrimSpace(s) != "" }

// HasCredential reports whether c can be asked for a token.  A nil pointer,
// map, func, or chan stored in the interface counts as absent.
func HasCredential(c TokenCredential) bool {
	if c == nil {
		return false
	}
	switch v := reflect.ValueOf(c); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface, reflect.Slice:
		return !v.IsNil()
	}
	return true
}
