package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

const configDirName = "dep-sync"

// systemAndUserFileNames are tried in order inside the system and user
// configuration directories.
var systemAndUserFileNames = []string{"config.yaml", "config.yml", "config.toml"}

// ProjectFileNames are tried in order next to the manifest.
var ProjectFileNames = []string{".dep-sync.yaml", ".dep-sync.yml", ".dep-sync.toml"}

// ConfigLevel represents the precedence level of a configuration file.
type ConfigLevel string

const (
	LevelSystem  ConfigLevel = "system"
	LevelUser    ConfigLevel = "user"
	LevelProject ConfigLevel = "project"
	LevelEnv     ConfigLevel = "env"
)

// ConfigLayerInfo describes a discovered config file and its load status.
type ConfigLayerInfo struct {
	Err    error // non-nil if the file exists but failed to load
	Path   string
	Level  ConfigLevel
	Loaded bool
}

// DiscoverOptions controls how config paths are discovered.
type DiscoverOptions struct {
	// ProjectPath is the project-level config path.
	ProjectPath string

	// SystemConfigPath overrides the default system config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	SystemConfigPath string

	// UserConfigPath overrides the default user config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	UserConfigPath string
}

// DiscoverPaths returns the ordered list of config file paths to check,
// from lowest precedence (system) to highest (project).
// Paths are deduplicated by resolved absolute path.
func DiscoverPaths(opts DiscoverOptions) []ConfigLayerInfo {
	var layers []ConfigLayerInfo
	seen := make(map[string]bool)

	addLayer := func(level ConfigLevel, path string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		layers = append(layers, ConfigLayerInfo{Path: path, Level: level})
	}

	sysPath := opts.SystemConfigPath
	if sysPath == "" {
		sysPath = defaultSystemConfigPath()
	}
	addLayer(LevelSystem, sysPath)

	userPath := opts.UserConfigPath
	if userPath == "" {
		userPath = defaultUserConfigPath()
	}
	addLayer(LevelUser, userPath)

	// Project-level config (always last, highest precedence).
	addLayer(LevelProject, opts.ProjectPath)

	return layers
}

// FindProjectConfig returns the first project config file present in dir,
// or the path of the default name when there is none.
func FindProjectConfig(dir string) string {
	return firstExisting(dir, ProjectFileNames)
}

func firstExisting(dir string, names []string) string {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, names[0])
}

// defaultSystemConfigPath returns the platform-standard system config path.
func defaultSystemConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			pd = `C:\ProgramData`
		}
		return firstExisting(filepath.Join(pd, configDirName), systemAndUserFileNames)
	default: // linux, darwin, etc.
		return firstExisting(filepath.Join("/etc", configDirName), systemAndUserFileNames)
	}
}

// defaultUserConfigPath returns the platform-standard user config path.
func defaultUserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return firstExisting(filepath.Join(dir, configDirName), systemAndUserFileNames)
}

// HierarchicalOptions controls LoadHierarchical.
type HierarchicalOptions struct {
	ProjectPath      string
	SystemConfigPath string
	UserConfigPath   string

	// NoInherit skips the system and user layers.
	NoInherit bool
	// RequireProject makes a missing project file an error. Set when the
	// path was given explicitly.
	RequireProject bool
}

// HierarchicalResult is a merged configuration and the layers it came from.
type HierarchicalResult struct {
	Config *Config
	Layers []ConfigLayerInfo
}

// LoadHierarchical reads every discovered layer that exists, merges them in
// precedence order and validates the result. Missing files are skipped.
func LoadHierarchical(opts HierarchicalOptions) (*HierarchicalResult, error) {
	var layers []ConfigLayerInfo
	if opts.NoInherit {
		if opts.ProjectPath != "" {
			layers = []ConfigLayerInfo{{Path: opts.ProjectPath, Level: LevelProject}}
		}
	} else {
		layers = DiscoverPaths(DiscoverOptions{
			ProjectPath:      opts.ProjectPath,
			SystemConfigPath: opts.SystemConfigPath,
			UserConfigPath:   opts.UserConfigPath,
		})
	}

	configs := []*Config{{}}
	for i := range layers {
		l := &layers[i]
		data, err := os.ReadFile(l.Path)
		if errors.Is(err, fs.ErrNotExist) {
			if l.Level == LevelProject && opts.RequireProject {
				return nil, fmt.Errorf("reading project config %s: %w", l.Path, err)
			}
			continue
		}
		if err != nil {
			l.Err = err
			return nil, fmt.Errorf("reading %s config %s: %w", l.Level, l.Path, err)
		}
		cfg, err := Decode(data, FormatOf(l.Path))
		if err != nil {
			l.Err = err
			return nil, fmt.Errorf("parsing %s config %s: %w", l.Level, l.Path, err)
		}
		l.Loaded = true
		configs = append(configs, cfg)
	}

	merged, err := MergeAll(configs)
	if err != nil {
		return nil, err
	}
	if errs := Validate(merged); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return &HierarchicalResult{Config: merged, Layers: layers}, nil
}
