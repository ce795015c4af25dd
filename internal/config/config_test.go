package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.TypingDebounce = Duration(3 * time.Second)
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.TypingDebounce.Std() != 3*time.Second {
		t.Errorf("TypingDebounce = %v, want 3s", loaded.TypingDebounce.Std())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Resolve(filepath.Join(t.TempDir(), "missing.toml"), "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.TypingDebounce.Std() != 2*time.Second {
		t.Errorf("TypingDebounce = %v, want 2s", cfg.TypingDebounce.Std())
	}
	if cfg.PresenceTTL.Std() != 6*time.Second {
		t.Errorf("PresenceTTL = %v, want 6s", cfg.PresenceTTL.Std())
	}
	if cfg.TypingGrace.Std() != time.Second {
		t.Errorf("TypingGrace = %v, want 1s", cfg.TypingGrace.Std())
	}
	if cfg.RealtimeURL() != cfg.APIURL {
		t.Errorf("RealtimeURL() = %q, want fallback to %q", cfg.RealtimeURL(), cfg.APIURL)
	}
}

func TestResolveFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "api_url = \"https://deals.example.com\"\ntyping_debounce = \"1500ms\"\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvSocketURL, "wss://rt.example.com")

	cfg, err := Resolve(path, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.APIURL != "https://deals.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.TypingDebounce.Std() != 1500*time.Millisecond {
		t.Errorf("TypingDebounce = %v, want 1.5s", cfg.TypingDebounce.Std())
	}
	if cfg.RealtimeURL() != "wss://rt.example.com" {
		t.Errorf("RealtimeURL() = %q", cfg.RealtimeURL())
	}
}

func TestResolveEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte(EnvSession+"=work\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets process env; make sure it is cleared afterwards.
	t.Setenv(EnvSession, "")
	os.Unsetenv(EnvSession)

	cfg, err := Resolve(filepath.Join(dir, "missing.toml"), envFile)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want work", cfg.DefaultSession)
	}
}

func TestResolveRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIURL, "not a url")

	if _, err := Resolve(filepath.Join(t.TempDir(), "missing.toml"), ""); err == nil {
		t.Error("Resolve() expected validation error for bad api_url")
	}
}

func TestValidateReconnectBounds(t *testing.T) {
	cfg := Default()
	cfg.ReconnectMax = Duration(time.Millisecond)
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when reconnect_max < reconnect_min")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIURL, EnvSocketURL, EnvSession, EnvMetricsAddr} {
		t.Setenv(k, "")
	}
}
