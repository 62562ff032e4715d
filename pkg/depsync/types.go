package depsync

import "github.com/bianoble/dep-sync/internal/engine"

// Type aliases re-export engine types as the public API.
// Users import "github.com/bianoble/dep-sync/pkg/depsync" and use
// depsync.CheckoutResult, depsync.StatusReport, etc.

type Kind = engine.Kind
type Tally = engine.Tally
type RepoResult = engine.RepoResult
type CheckoutResult = engine.CheckoutResult
type FreezeResult = engine.FreezeResult
type DependencyStatus = engine.DependencyStatus
type StatusReport = engine.StatusReport
type ConfirmFunc = engine.ConfirmFunc
