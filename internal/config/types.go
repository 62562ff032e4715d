package config

import "github.com/bianoble/dep-sync/internal/manifest"

// Config represents one dep-sync configuration file. Every field is
// optional; unset fields fall through to lower layers and then to the
// defaults in Defaults.
type Config struct {
	Version  int      `yaml:"version,omitempty" toml:"version,omitempty"`
	Manifest string   `yaml:"manifest,omitempty" toml:"manifest,omitempty"`
	Checkout Checkout `yaml:"checkout,omitempty" toml:"checkout,omitempty"`
	Freeze   Freeze   `yaml:"freeze,omitempty" toml:"freeze,omitempty"`
	Status   Status   `yaml:"status,omitempty" toml:"status,omitempty"`
}

// Checkout holds defaults for the checkout command.
type Checkout struct {
	NoStash          *bool  `yaml:"no_stash,omitempty" toml:"no_stash,omitempty"`
	FetchForTags     string `yaml:"fetch_for_tags,omitempty" toml:"fetch_for_tags,omitempty"`         // "no", "prompt", "prompt_force", "force"
	MergeForBranches string `yaml:"merge_for_branches,omitempty" toml:"merge_for_branches,omitempty"` // "ff-only", "rebase", "merge", "no"
	// LocalIdentityOnly copies user identity into new clones from the main
	// project's own git config only, ignoring global and system config.
	LocalIdentityOnly *bool `yaml:"local_identity_only,omitempty" toml:"local_identity_only,omitempty"`
}

// Freeze holds defaults for the freeze command.
type Freeze struct {
	AllowBranches *bool `yaml:"allow_branches,omitempty" toml:"allow_branches,omitempty"`
	// BackupSuffix is appended to the manifest name for the backup copy.
	// An explicit empty string disables the backup.
	BackupSuffix *string `yaml:"backup_suffix,omitempty" toml:"backup_suffix,omitempty"`
}

// Status holds defaults for the status command.
type Status struct {
	Concurrency int `yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`
}

// Settings is a fully resolved configuration.
type Settings struct {
	Manifest          string
	NoStash           bool
	FetchForTags      string
	MergeForBranches  string
	LocalIdentityOnly bool
	AllowBranches     bool
	BackupSuffix      string
	Concurrency       int
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Manifest:         manifest.DefaultFileName,
		FetchForTags:     "no",
		MergeForBranches: "ff-only",
		BackupSuffix:     ".bak",
	}
}

// Settings applies c on top of Defaults.
func (c *Config) Settings() Settings {
	s := Defaults()
	if c == nil {
		return s
	}
	if c.Manifest != "" {
		s.Manifest = c.Manifest
	}
	if c.Checkout.NoStash != nil {
		s.NoStash = *c.Checkout.NoStash
	}
	if c.Checkout.FetchForTags != "" {
		s.FetchForTags = c.Checkout.FetchForTags
	}
	if c.Checkout.MergeForBranches != "" {
		s.MergeForBranches = c.Checkout.MergeForBranches
	}
	if c.Checkout.LocalIdentityOnly != nil {
		s.LocalIdentityOnly = *c.Checkout.LocalIdentityOnly
	}
	if c.Freeze.AllowBranches != nil {
		s.AllowBranches = *c.Freeze.AllowBranches
	}
	if c.Freeze.BackupSuffix != nil {
		s.BackupSuffix = *c.Freeze.BackupSuffix
	}
	if c.Status.Concurrency != 0 {
		s.Concurrency = c.Status.Concurrency
	}
	return s
}
