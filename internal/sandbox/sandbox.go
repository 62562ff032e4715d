package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DependencyDir joins a manifest dependency path onto the container
// directory that holds the main project and its siblings. The result must
// stay strictly inside container. The check is lexical: a dependency
// directory may itself be a symlink to somewhere else.
func DependencyDir(container, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("empty dependency path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("dependency path '%s' must be relative to '%s'", rel, container)
	}
	root := filepath.Clean(container)
	candidate := filepath.Join(root, rel)
	if !within(root, candidate) || candidate == root {
		return "", fmt.Errorf("dependency path '%s' resolves to '%s' which is outside '%s'", rel, candidate, root)
	}
	return candidate, nil
}

// ValidatePath checks if targetPath is safely within projectRoot.
// It resolves symlinks, normalizes paths, and verifies containment.
// Returns the resolved absolute path or an error.
func ValidatePath(projectRoot, targetPath string) (string, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving project root symlinks: %w", err)
	}

	candidate := filepath.Clean(filepath.Join(realRoot, targetPath))

	// The path may not exist yet, so resolve as much as we can.
	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving target path: %w", err)
	}

	if !within(realRoot, resolved) {
		return "", fmt.Errorf("path '%s' resolves to '%s' which is outside the project root '%s'", targetPath, resolved, realRoot)
	}
	return resolved, nil
}

func within(root, path string) bool {
	// Trailing separator keeps "root2" from matching "root".
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// resolveExistingPath resolves symlinks for the longest existing prefix of the path,
// then appends the non-existing suffix.
func resolveExistingPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}
	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}

// SafeWrite atomically writes content to a path within the project root.
func SafeWrite(projectRoot, relPath string, content []byte, perm os.FileMode) error {
	resolved, err := ValidatePath(projectRoot, relPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return writeAtomic(resolved, content, perm)
}

// BackupError is returned when the original file cannot be moved aside.
// Nothing has been written when it is returned.
type BackupError struct {
	Path   string
	Backup string
	Err    error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("could not back up %s to %s: %s", e.Path, e.Backup, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// RewriteWithBackup replaces the file at path with content. The previous
// file is first renamed to path+suffix, replacing an older backup; an empty
// suffix skips the backup. The new file keeps the old file's permissions.
func RewriteWithBackup(path string, content []byte, suffix string) error {
	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if suffix != "" {
		backup := path + suffix
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &BackupError{Path: path, Backup: backup, Err: err}
		}
		if err := os.Rename(path, backup); err != nil {
			return &BackupError{Path: path, Backup: backup, Err: err}
		}
	}
	return writeAtomic(path, content, perm)
}

func writeAtomic(path string, content []byte, perm os.FileMode) error {
	// Temp file in the same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dep-sync-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}

	success = true
	return nil
}
