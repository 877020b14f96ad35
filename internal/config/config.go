// Package config loads engine configuration from the environment and
// the tenant app registry from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/calyx-ai/memory-engine/internal/model"
)

// Config holds the engine's runtime settings.
type Config struct {
	DBPath       string
	ListenAddr   string
	RegistryPath string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	dbPath := os.Getenv("MEMENGINE_DB")
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, ".memory-engine", "engine.db")
	}

	addr := os.Getenv("MEMENGINE_ADDR")
	if addr == "" {
		addr = ":8807"
	}

	return &Config{
		DBPath:       dbPath,
		ListenAddr:   addr,
		RegistryPath: os.Getenv("MEMENGINE_APPS"),
	}
}

type registryFile struct {
	Apps []registryApp `yaml:"apps"`
}

type registryApp struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Domains   []string `yaml:"domains"`
	Internal  bool     `yaml:"internal"`
	AIEnabled bool     `yaml:"ai_enabled"`
	Active    *bool    `yaml:"active"`
}

// LoadRegistry parses the apps registry file. Apps default to active
// unless the file says otherwise.
func LoadRegistry(path string) ([]model.App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var f registryFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	apps := make([]model.App, 0, len(f.Apps))
	for _, a := range f.Apps {
		if a.ID == "" {
			return nil, fmt.Errorf("registry app missing id (name=%q)", a.Name)
		}
		active := true
		if a.Active != nil {
			active = *a.Active
		}
		apps = append(apps, model.App{
			ID:        a.ID,
			Name:      a.Name,
			Type:      a.Type,
			Domains:   a.Domains,
			Internal:  a.Internal,
			AIEnabled: a.AIEnabled,
			Active:    active,
		})
	}
	return apps, nil
}
