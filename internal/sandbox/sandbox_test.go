package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePathWithinRoot(t *testing.T) {
	root := t.TempDir()

	resolved, err := ValidatePath(root, "subdir/file.txt")
	if err != nil {
		t.Fatalf("ValidatePath: %v", err)
	}

	realRoot, _ := filepath.EvalSymlinks(root)
	expected := filepath.Join(realRoot, "subdir/file.txt")
	if resolved != expected {
		t.Errorf("got %q, want %q", resolved, expected)
	}
}

func TestValidatePathRejectsDotDot(t *testing.T) {
	root := t.TempDir()

	_, err := ValidatePath(root, "../escape.txt")
	if err == nil {
		t.Fatal("expected error for .. escape")
	}
	if !strings.Contains(err.Error(), "outside the project root") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidatePathRejectsDotDotNested(t *testing.T) {
	root := t.TempDir()

	_, err := ValidatePath(root, "subdir/../../escape.txt")
	if err == nil {
		t.Fatal("expected error for nested .. escape")
	}
	if !strings.Contains(err.Error(), "outside the project root") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	root := t.TempDir()
	outsideDir := t.TempDir()

	// Create a symlink inside root pointing outside.
	symlink := filepath.Join(root, "escape-link")
	if err := os.Symlink(outsideDir, symlink); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	_, err := ValidatePath(root, "escape-link/file.txt")
	if err == nil {
		t.Fatal("expected error for symlink escape")
	}
	if !strings.Contains(err.Error(), "outside the project root") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidatePathAllowsInternalSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	root := t.TempDir()
	// Create a real target directory.
	realDir := filepath.Join(root, "real")
	if err := os.MkdirAll(realDir, 0755); err != nil {
		t.Fatal(err)
	}
	// Create a symlink inside root pointing to another location inside root.
	symlink := filepath.Join(root, "link")
	if err := os.Symlink(realDir, symlink); err != nil {
		t.Fatal(err)
	}

	resolved, err := ValidatePath(root, "link/file.txt")
	if err != nil {
		t.Fatalf("ValidatePath should allow internal symlinks: %v", err)
	}

	realRoot, _ := filepath.EvalSymlinks(root)
	expected := filepath.Join(realRoot, "real", "file.txt")
	if resolved != expected {
		t.Errorf("got %q, want %q", resolved, expected)
	}
}

func TestSafeWriteCreatesFile(t *testing.T) {
	root := t.TempDir()
	content := []byte("hello world")

	if err := SafeWrite(root, "subdir/test.txt", content, 0644); err != nil {
		t.Fatalf("SafeWrite: %v", err)
	}

	realRoot, _ := filepath.EvalSymlinks(root)
	written, err := os.ReadFile(filepath.Join(realRoot, "subdir/test.txt"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(written) != "hello world" {
		t.Errorf("content = %q, want %q", string(written), "hello world")
	}
}

func TestSafeWriteRejectsEscape(t *testing.T) {
	root := t.TempDir()
	err := SafeWrite(root, "../escape.txt", []byte("bad"), 0644)
	if err == nil {
		t.Fatal("expected error for escape attempt")
	}
}

func TestDependencyDir(t *testing.T) {
	container := filepath.Join(t.TempDir(), "work")

	tests := []struct {
		rel     string
		want    string
		wantErr string
	}{
		{rel: "lib", want: filepath.Join(container, "lib")},
		{rel: "vendor/lib", want: filepath.Join(container, "vendor", "lib")},
		{rel: "./lib/", want: filepath.Join(container, "lib")},
		{rel: "a/../lib", want: filepath.Join(container, "lib")},
		{rel: "../lib", wantErr: "outside"},
		{rel: "a/../../lib", wantErr: "outside"},
		{rel: ".", wantErr: "outside"},
		{rel: "", wantErr: "empty dependency path"},
		{rel: "/abs/lib", wantErr: "must be relative"},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := DependencyDir(container, tt.rel)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("DependencyDir(%q) = %q, want error", tt.rel, got)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DependencyDir(%q): %v", tt.rel, err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDependencyDirAllowsSymlinkedDependency(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	container := t.TempDir()
	elsewhere := t.TempDir()
	if err := os.Symlink(elsewhere, filepath.Join(container, "lib")); err != nil {
		t.Fatal(err)
	}

	got, err := DependencyDir(container, "lib")
	if err != nil {
		t.Fatalf("DependencyDir: %v", err)
	}
	if got != filepath.Join(container, "lib") {
		t.Errorf("got %q, symlink should be kept as written", got)
	}
}

func TestRewriteWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dependencies.txt")
	if err := os.WriteFile(path, []byte("lib v1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := RewriteWithBackup(path, []byte("lib abc123\n"), ".bak"); err != nil {
		t.Fatalf("RewriteWithBackup: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "lib abc123\n" {
		t.Errorf("content = %q", data)
	}
	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(backup) != "lib v1\n" {
		t.Errorf("backup = %q", backup)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("permissions = %04o, want 0600", info.Mode().Perm())
		}
	}
}

func TestRewriteWithBackupReplacesOldBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dependencies.txt")
	if err := os.WriteFile(path, []byte("second\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".orig", []byte("first\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RewriteWithBackup(path, []byte("third\n"), ".orig"); err != nil {
		t.Fatalf("RewriteWithBackup: %v", err)
	}

	backup, _ := os.ReadFile(path + ".orig")
	if string(backup) != "second\n" {
		t.Errorf("backup = %q, want the file that was replaced", backup)
	}
}

func TestRewriteWithBackupNoSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dependencies.txt")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RewriteWithBackup(path, []byte("new\n"), ""); err != nil {
		t.Fatalf("RewriteWithBackup: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the rewritten file, found %d entries", len(entries))
	}
}

func TestRewriteWithBackupMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dependencies.txt")

	err := RewriteWithBackup(path, []byte("new\n"), ".bak")
	var be *BackupError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackupError, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("nothing should be written when the backup fails")
	}
}
