package main

import (
	"context"
	"testing"

	"github.com/yanizio/itemstore/internal/config"
	"github.com/yanizio/itemstore/internal/options"
)

func TestBuildOptionsStaticIdentity(t *testing.T) {
	cfg := &config.Config{
		Identity: config.Identity{Source: "static", Token: "tok"},
		Repository: options.RepositoryOptions{
			AccountEndpoint:      "db:3306",
			ContainerPerItemType: true,
		},
	}
	opts, err := buildOptions(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.AuthMode() != options.AuthIdentity {
		t.Fatalf("auth = %s", opts.AuthMode())
	}
	if err := options.ValidateForContainerCreation(options.Of(opts)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Repository.TokenCredential != nil {
		t.Fatalf("config snapshot was mutated")
	}
}

func TestBuildOptionsPlainSecret(t *testing.T) {
	cfg := &config.Config{Repository: options.RepositoryOptions{ConnectionSecret: "app:pw@tcp(db:3306)/"}}
	opts, err := buildOptions(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.ConnectionSecret != "app:pw@tcp(db:3306)/" || opts.TokenCredential != nil {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestBuildOptionsVaultDisabled(t *testing.T) {
	cases := []*config.Config{
		{Repository: options.RepositoryOptions{ConnectionSecret: "vault:secret/itemstore/db#dsn"}},
		{Identity: config.Identity{Source: "vault"}},
	}
	for _, cfg := range cases {
		if _, err := buildOptions(context.Background(), cfg, nil); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
