// internal/options/validator_test.go
//
// Unit-tests for ValidateForContainerCreation.
//
// Run: go test ./internal/options -v

package options

import (
	"context"
	"errors"
	"sync"
	"testing"
)

var cred = StaticToken("token")

type ptrCred struct{}

func (*ptrCred) Token(context.Context) (AccessToken, error) { return AccessToken{Value: "t"}, nil }

type funcCred func(context.Context) (AccessToken, error)

func (f funcCred) Token(ctx context.Context) (AccessToken, error) { return f(ctx) }

func TestValidateForContainerCreation(t *testing.T) {
	cases := []struct {
		name string
		h    Holder
		want error // nil means success
	}{
		{"absent holder", None, ErrMissingOptions},
		{"zero holder", Holder{}, ErrMissingOptions},
		{"no secret and no credential", Of(RepositoryOptions{}), ErrMissingCredential},
		{"blank secret and no credential", Of(RepositoryOptions{
			ConnectionSecret:     "   ",
			ContainerPerItemType: true,
		}), ErrMissingCredential},
		{"secret, per item type", Of(RepositoryOptions{
			ConnectionSecret:     "cs",
			ContainerPerItemType: true,
		}), nil},
		{"secret, shared, complete", Of(RepositoryOptions{
			ConnectionSecret: "cs",
			DatabaseID:       "db1",
			ContainerID:      "c1",
		}), nil},
		{"secret, shared, no database", Of(RepositoryOptions{
			ConnectionSecret: "Some Connection String",
		}), ErrMissingDatabaseID},
		{"secret, shared, no container", Of(RepositoryOptions{
			ConnectionSecret: "Some Connection String",
			DatabaseID:       "Database 1",
		}), ErrMissingContainerID},
		{"identity, shared, no database", Of(RepositoryOptions{
			TokenCredential: cred,
			AccountEndpoint: "ep",
		}), ErrMissingDatabaseID},
		{"identity, shared, no container", Of(RepositoryOptions{
			TokenCredential: cred,
			AccountEndpoint: "ep",
			DatabaseID:      "Database 1",
		}), ErrMissingContainerID},
		{"identity, no endpoint, per item type", Of(RepositoryOptions{
			TokenCredential:      cred,
			DatabaseID:           "Database 1",
			ContainerPerItemType: true,
		}), ErrMissingAccountEndpoint},
		{"typed nil pointer credential", Of(RepositoryOptions{
			TokenCredential:      (*ptrCred)(nil),
			AccountEndpoint:      "db:3306",
			ContainerPerItemType: true,
		}), ErrMissingCredential},
		{"nil func credential", Of(RepositoryOptions{
			TokenCredential:      funcCred(nil),
			AccountEndpoint:      "db:3306",
			ContainerPerItemType: true,
		}), ErrMissingCredential},
		{"identity, no endpoint beats missing database", Of(RepositoryOptions{
			TokenCredential: cred,
		}), ErrMissingAccountEndpoint},
		{"identity, per item type", Of(RepositoryOptions{
			TokenCredential:      cred,
			AccountEndpoint:      "ep",
			ContainerPerItemType: true,
		}), nil},
		{"identity, shared, complete", Of(RepositoryOptions{
			TokenCredential: cred,
			AccountEndpoint: "ep",
			DatabaseID:      "Database 1",
			ContainerID:     "Container",
		}), nil},
		{"secret wins over credential without endpoint", Of(RepositoryOptions{
			ConnectionSecret:     "cs",
			TokenCredential:      cred,
			ContainerPerItemType: true,
		}), nil},
		{"missing database reported before container", Of(RepositoryOptions{
			ConnectionSecret: "cs",
			ContainerID:      "c1",
		}), ErrMissingDatabaseID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateForContainerCreation(tc.h)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("%v does not match ErrInvalidOptions", err)
			}
		})
	}
}

func TestFieldErrorNamesField(t *testing.T) {
	cases := []struct {
		h     Holder
		field string
	}{
		{None, FieldOptions},
		{Of(RepositoryOptions{}), FieldConnectionSecret},
		{Of(RepositoryOptions{TokenCredential: cred}), FieldAccountEndpoint},
		{Of(RepositoryOptions{ConnectionSecret: "cs"}), FieldDatabaseID},
		{Of(RepositoryOptions{ConnectionSecret: "cs", DatabaseID: "db"}), FieldContainerID},
	}
	for _, tc := range cases {
		var fe *FieldError
		if !errors.As(ValidateForContainerCreation(tc.h), &fe) {
			t.Fatalf("expected *FieldError for %s", tc.field)
		}
		if fe.Field != tc.field {
			t.Errorf("field = %q, want %q", fe.Field, tc.field)
		}
	}
}

func TestKindsAreDistinct(t *testing.T) {
	err := ValidateForContainerCreation(None)
	for _, other := range []error{
		ErrMissingCredential,
		ErrMissingAccountEndpoint,
		ErrMissingDatabaseID,
		ErrMissingContainerID,
	} {
		if errors.Is(err, other) {
			t.Errorf("%v unexpectedly matches %v", err, other)
		}
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	in := RepositoryOptions{
		TokenCredential: cred,
		AccountEndpoint: "ep",
		Containers:      []ContainerOptions{{ItemType: "person", Name: "people"}},
	}
	h := Of(in)
	_ = DefaultValidator{}.ValidateForContainerCreation(h)

	got, _ := h.Value()
	if got.AccountEndpoint != "ep" || got.DatabaseID != "" || got.Containers[0].Name != "people" {
		t.Fatalf("options changed: %#v", got)
	}
}

func TestValidateConcurrent(t *testing.T) {
	h := Of(RepositoryOptions{ConnectionSecret: "cs", DatabaseID: "db"})
	var v Validator = DefaultValidator{}

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- v.ValidateForContainerCreation(h)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrMissingContainerID) {
			t.Fatalf("got %v, want missing container", err)
		}
	}
}
