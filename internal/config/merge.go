package config

import "fmt"

// Merge combines two configs where overlay takes precedence over base:
//   - version: must agree if both declare it (non-zero); fatal error on mismatch
//   - every other field: the overlay value wins when it is set
func Merge(base, overlay *Config) (*Config, error) {
	if base == nil {
		return overlay, nil
	}
	if overlay == nil {
		return base, nil
	}

	result := *base
	if err := mergeVersion(base.Version, overlay.Version, &result.Version); err != nil {
		return nil, err
	}

	result.Manifest = pick(base.Manifest, overlay.Manifest)

	result.Checkout.NoStash = pickPtr(base.Checkout.NoStash, overlay.Checkout.NoStash)
	result.Checkout.FetchForTags = pick(base.Checkout.FetchForTags, overlay.Checkout.FetchForTags)
	result.Checkout.MergeForBranches = pick(base.Checkout.MergeForBranches, overlay.Checkout.MergeForBranches)
	result.Checkout.LocalIdentityOnly = pickPtr(base.Checkout.LocalIdentityOnly, overlay.Checkout.LocalIdentityOnly)

	result.Freeze.AllowBranches = pickPtr(base.Freeze.AllowBranches, overlay.Freeze.AllowBranches)
	result.Freeze.BackupSuffix = pickPtr(base.Freeze.BackupSuffix, overlay.Freeze.BackupSuffix)

	result.Status.Concurrency = pick(base.Status.Concurrency, overlay.Status.Concurrency)

	return &result, nil
}

// MergeAll merges multiple configs in order (lowest precedence first).
// Returns an error if any version mismatch is found.
func MergeAll(configs []*Config) (*Config, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no configs to merge")
	}

	result := configs[0]
	for i := 1; i < len(configs); i++ {
		var err error
		result, err = Merge(result, configs[i])
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func mergeVersion(base, overlay int, out *int) error {
	switch {
	case base == 0:
		*out = overlay
	case overlay == 0 || base == overlay:
		*out = base
	default:
		return fmt.Errorf("config version mismatch: one layer declares version %d, another declares version %d; all config layers must agree on version", base, overlay)
	}
	return nil
}

func pick[T comparable](base, overlay T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

func pickPtr[T any](base, overlay *T) *T {
	if overlay != nil {
		return overlay
	}
	return base
}
