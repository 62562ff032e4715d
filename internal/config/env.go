package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Env holds the DEP_SYNC_* environment overrides. Unset variables stay nil
// so they do not mask lower layers.
type Env struct {
	Manifest          *string `env:"DEP_SYNC_MANIFEST,noinit"`
	NoStash           *bool   `env:"DEP_SYNC_NO_STASH,noinit"`
	FetchForTags      *string `env:"DEP_SYNC_FETCH_FOR_TAGS,noinit"`
	MergeForBranches  *string `env:"DEP_SYNC_MERGE_FOR_BRANCHES,noinit"`
	LocalIdentityOnly *bool   `env:"DEP_SYNC_LOCAL_IDENTITY_ONLY,noinit"`
	AllowBranches     *bool   `env:"DEP_SYNC_ALLOW_BRANCHES,noinit"`
	BackupSuffix      *string `env:"DEP_SYNC_BACKUP_SUFFIX,noinit"`
	Concurrency       *int    `env:"DEP_SYNC_CONCURRENCY,noinit"`

	// NoInherit skips the system and user config layers.
	NoInherit bool `env:"DEP_SYNC_NO_INHERIT,default=false"`
}

// LoadEnv reads the overrides through l. A nil l reads the process
// environment.
func LoadEnv(ctx context.Context, l envconfig.Lookuper) (*Env, error) {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	var e Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &e, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &e, nil
}

// Layer turns the overrides into a Config that can be merged on top of the
// file layers.
func (e *Env) Layer() *Config {
	cfg := &Config{
		Checkout: Checkout{
			NoStash:           e.NoStash,
			LocalIdentityOnly: e.LocalIdentityOnly,
		},
		Freeze: Freeze{
			AllowBranches: e.AllowBranches,
			BackupSuffix:  e.BackupSuffix,
		},
	}
	if e.Manifest != nil {
		cfg.Manifest = *e.Manifest
	}
	if e.FetchForTags != nil {
		cfg.Checkout.FetchForTags = *e.FetchForTags
	}
	if e.MergeForBranches != nil {
		cfg.Checkout.MergeForBranches = *e.MergeForBranches
	}
	if e.Concurrency != nil {
		cfg.Status.Concurrency = *e.Concurrency
	}
	return cfg
}

// Resolve merges the environment layer over a file configuration,
// validates the result and applies defaults.
func Resolve(files *Config, e *Env) (Settings, error) {
	merged, err := Merge(files, e.Layer())
	if err != nil {
		return Settings{}, err
	}
	if errs := Validate(merged); len(errs) > 0 {
		return Settings{}, &ValidationError{Errors: errs}
	}
	return merged.Settings(), nil
}
