package config

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func TestLoadEnvUnset(t *testing.T) {
	e, err := LoadEnv(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if diff := cmp.Diff(&Env{}, e); diff != "" {
		t.Errorf("unset env should be empty (-want +got):\n%s", diff)
	}
}

func TestLoadEnvValues(t *testing.T) {
	e, err := LoadEnv(context.Background(), envconfig.MapLookuper(map[string]string{
		"DEP_SYNC_MANIFEST":           "deps.txt",
		"DEP_SYNC_NO_STASH":           "true",
		"DEP_SYNC_FETCH_FOR_TAGS":     "force",
		"DEP_SYNC_MERGE_FOR_BRANCHES": "rebase",
		"DEP_SYNC_ALLOW_BRANCHES":     "false",
		"DEP_SYNC_BACKUP_SUFFIX":      ".old",
		"DEP_SYNC_CONCURRENCY":        "3",
		"DEP_SYNC_NO_INHERIT":         "1",
	}))
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if !e.NoInherit {
		t.Error("NoInherit should be set")
	}

	s, err := Resolve(&Config{Freeze: Freeze{AllowBranches: ptr(true)}}, e)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := Settings{
		Manifest:         "deps.txt",
		NoStash:          true,
		FetchForTags:     "force",
		MergeForBranches: "rebase",
		AllowBranches:    false,
		BackupSuffix:     ".old",
		Concurrency:      3,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvBadValue(t *testing.T) {
	_, err := LoadEnv(context.Background(), envconfig.MapLookuper(map[string]string{
		"DEP_SYNC_CONCURRENCY": "many",
	}))
	if err == nil {
		t.Fatal("expected error for non-numeric concurrency")
	}
}

func TestResolveFileLayerKeptWhenEnvUnset(t *testing.T) {
	files := &Config{Checkout: Checkout{MergeForBranches: "merge", NoStash: ptr(true)}}
	s, err := Resolve(files, &Env{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.MergeForBranches != "merge" || !s.NoStash {
		t.Errorf("file settings lost: %+v", s)
	}
	if s.Manifest != "Dependencies.txt" || s.BackupSuffix != ".bak" {
		t.Errorf("defaults not applied: %+v", s)
	}
}

func TestResolveRejectsInvalidEnv(t *testing.T) {
	bad := "sometimes"
	_, err := Resolve(&Config{}, &Env{FetchForTags: &bad})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
}
