package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveDataDirHonorsOverride(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("LANSHARED_DATA_DIR", tempDir)

	dataDir, err := ResolveDataDir()
	if err != nil {
		t.Fatalf("ResolveDataDir failed: %v", err)
	}
	if dataDir != tempDir {
		t.Fatalf("expected override %q, got %q", tempDir, dataDir)
	}
}

func TestLoadSettingsReturnsDefaultsWhenMissing(t *testing.T) {
	tempDir := t.TempDir()

	settings, err := LoadSettings(tempDir)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if settings.Theme != ThemeSystem {
		t.Fatalf("expected default theme %q, got %q", ThemeSystem, settings.Theme)
	}
	if !settings.MinimizeOnClose {
		t.Fatalf("expected MinimizeOnClose to default true")
	}
	if settings.DownloadDirectory == "" {
		t.Fatalf("expected a non-empty default download directory")
	}
}

func TestSaveSettingsRoundTrips(t *testing.T) {
	tempDir := t.TempDir()

	want := Settings{
		MinimizeOnClose:   false,
		Theme:             ThemeDark,
		DownloadDirectory: filepath.Join(tempDir, "downloads"),
	}
	if err := SaveSettings(tempDir, want); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, err := LoadSettings(tempDir)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLoadSettingsRejectsCorruptFile(t *testing.T) {
	tempDir := t.TempDir()
	if err := EnsureDataDirectories(tempDir); err != nil {
		t.Fatalf("EnsureDataDirectories failed: %v", err)
	}
	if err := SaveSettings(tempDir, defaultSettings()); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	corruptPath := settingsPath(tempDir)
	if err := os.WriteFile(corruptPath, []byte("not json"), 0o600); err != nil {
		t.Fatalf("corrupt settings file: %v", err)
	}

	if _, err := LoadSettings(tempDir); err == nil {
		t.Fatalf("expected an error loading a corrupt settings file")
	}
}
