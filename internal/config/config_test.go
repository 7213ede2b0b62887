package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.LLM.Provider != "" || len(f.Connections) != 0 {
		t.Fatalf("expected zero-value File, got %+v", f)
	}
}

func TestLoadMalformedFileReturnsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoadValidFileParsesLLMAndConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[llm]
provider = "anthropic"
model = "claude"

[connections.mydb]
host = "localhost"
database = "app"
username = "alice"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.LLM.Provider != "anthropic" || f.LLM.Model != "claude" {
		t.Fatalf("unexpected llm section: %+v", f.LLM)
	}
	if len(f.Connections) != 1 || f.Connections["mydb"].Host != "localhost" {
		t.Fatalf("unexpected connections: %+v", f.Connections)
	}
}

func TestConnectionProfilesFillsDefaults(t *testing.T) {
	f := File{Connections: map[string]ConnectionSection{
		"mydb": {Host: "localhost", Database: "app", Username: "alice"},
	}}

	profiles := f.ConnectionProfiles()
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]
	if p.Backend != "postgres" || p.Port != 5432 || p.Name != "mydb" {
		t.Fatalf("expected defaulted backend/port, got %+v", p)
	}
}

func TestConfigDirCreatesAndNamesAppDirectory(t *testing.T) {
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if filepath.Base(dir) != appDirName {
		t.Fatalf("expected dir named %q, got %q", appDirName, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected config dir to exist: %v", err)
	}
}
