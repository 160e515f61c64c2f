// Copyright 2024-2026 Aiku AI

package helpbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeHelpFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "help.md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write help file: %v", err)
	}
	return path
}

func TestLoadHelpText(t *testing.T) {
	t.Parallel()
	path := writeHelpFile(t, t.TempDir(), "Ask me anything.")
	help, err := LoadHelpText(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadHelpText: %v", err)
	}
	defer help.Close()
	if got := help.Text(); got != "Ask me anything." {
		t.Errorf("Text: got %q", got)
	}
}

func TestLoadHelpTextMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadHelpText(filepath.Join(t.TempDir(), "missing.md"), zerolog.Nop())
	if err == nil {
		t.Fatal("LoadHelpText should fail for a missing file")
	}
}

func TestHelpTextReloadOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeHelpFile(t, dir, "old text")

	help, err := LoadHelpText(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadHelpText: %v", err)
	}
	defer help.Close()
	if err := help.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("new text"), 0o600); err != nil {
		t.Fatalf("rewrite help file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for help.Text() != "new text" {
		if time.Now().After(deadline) {
			t.Fatalf("help text not reloaded, still %q", help.Text())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHelpTextReloadIgnoresOtherFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeHelpFile(t, dir, "help text")

	help, err := LoadHelpText(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadHelpText: %v", err)
	}
	defer help.Close()
	if err := help.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	other := filepath.Join(dir, "unrelated.txt")
	if err := os.WriteFile(other, []byte("noise"), 0o600); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}
	// Give the watcher a moment; the text must not change.
	time.Sleep(100 * time.Millisecond)
	if got := help.Text(); got != "help text" {
		t.Errorf("Text: got %q, want unchanged", got)
	}
}

func TestHelpTextCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	path := writeHelpFile(t, t.TempDir(), "text")
	help, err := LoadHelpText(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("LoadHelpText: %v", err)
	}
	if err := help.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	help.Close()
	help.Close()
}
