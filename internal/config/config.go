// Package config locates glance's platform config directory and state
// database path, and loads the optional TOML config file under that
// directory. Environment variables and CLI flags are not read here;
// cmd/glance handles them.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"github.com/glance-db/glance/internal/glanceerr"
	"github.com/glance-db/glance/internal/store"
)

const appDirName = "db-glance"

// ConfigDir returns the platform config directory for glance, creating it
// if necessary.
func ConfigDir() (string, error) {
	dir := filepath.Join(xdg.ConfigHome, appDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", glanceerr.Wrap(glanceerr.Config, "failed to create config directory", err)
	}
	return dir, nil
}

// StatePath returns the fixed location of the local state database.
func StatePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// File is the on-disk TOML shape at <config_dir>/config.toml.
type File struct {
	LLM         LLMSection                  `toml:"llm"`
	Connections map[string]ConnectionSection `toml:"connections"`
}

type LLMSection struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
}

// ConnectionSection mirrors store.ConnectionProfile minus timestamps and
// secret fields — passwords never live in the config file.
type ConnectionSection struct {
	Backend  string `toml:"backend"`
	Database string `toml:"database"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	SSLMode  string `toml:"sslmode"`
}

// Load reads the config file at path, returning a zero-value File if the
// file does not exist. A malformed file is a Config-kind error.
func Load(path string) (File, error) {
	var f File
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return f, nil
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return f, glanceerr.Wrap(glanceerr.Config, "failed to parse config file "+path, err)
	}
	return f, nil
}

// ConnectionProfiles converts the file's [connections.<name>] sections into
// store.ConnectionProfile rows ready for UpsertConnection, so a freshly
// written config file seeds the persisted connection list on first run.
func (f File) ConnectionProfiles() []store.ConnectionProfile {
	profiles := make([]store.ConnectionProfile, 0, len(f.Connections))
	for name, c := range f.Connections {
		backend := c.Backend
		if backend == "" {
			backend = "postgres"
		}
		port := c.Port
		if port == 0 {
			port = 5432
		}
		profiles = append(profiles, store.ConnectionProfile{
			Name:     name,
			Backend:  backend,
			Database: c.Database,
			Host:     c.Host,
			Port:     port,
			Username: c.Username,
			SSLMode:  c.SSLMode,
		})
	}
	return profiles
}
