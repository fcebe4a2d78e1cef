package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/morezero/json-bridge/pkg/catalog"
	"github.com/morezero/json-bridge/pkg/coerce"
)

const logPrefix = "manifest:loader"

// EnvFile names the environment variable that points at a manifest file.
const EnvFile = "BRIDGE_MANIFEST_FILE"

// DefaultPaths are tried after explicit paths and EnvFile.
var DefaultPaths = []string{"config/bridge.yaml", "config/bridge.json", "bridge.yaml", "bridge.json"}

// Load loads the manifest. It tries paths in order: first any paths passed in, then the
// BRIDGE_MANIFEST_FILE env, then DefaultPaths. Files that are missing, malformed or invalid
// are skipped with a warning. The first file that loads is overlaid on the default
// manifest; when none loads, the default manifest is returned.
func Load(paths ...string) (*Manifest, error) {
	all := make([]string, 0, len(paths)+len(DefaultPaths)+1)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(EnvFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, DefaultPaths...)

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		m, err := Parse(data, filepath.Ext(p))
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse manifest file %s: %v", logPrefix, p, err))
			continue
		}
		if err := m.Validate(); err != nil {
			slog.Warn(fmt.Sprintf("%s - Ignoring invalid manifest file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded manifest %s %s from %s", logPrefix, m.Name, m.Version, p))
		return Merge(Default(), m), nil
	}

	slog.Info(fmt.Sprintf("%s - Using default manifest", logPrefix))
	return Default(), nil
}

// Parse decodes a manifest. ext selects YAML for ".yaml" and ".yml"; anything else is JSON.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s - decode yaml: %w", logPrefix, err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s - decode json: %w", logPrefix, err)
		}
	}
	return &m, nil
}

// Default returns the fallback manifest. It publishes nothing by itself; services fall back
// to their own declarations at version 1.0.0.
func Default() *Manifest {
	return &Manifest{
		Name:        "json-bridge",
		Version:     "1.0.0",
		Description: "Default bridge manifest",
		Services:    map[string]ServiceManifest{},
		Aliases:     map[string]string{},
	}
}

// Validate checks versions, statuses, names and alias targets.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Version != "" {
		if _, err := masterminds.NewVersion(m.Version); err != nil {
			errs = append(errs, fmt.Errorf("manifest version %q: %w", m.Version, err))
		}
	}
	if m.Locale != "" {
		if _, err := coerce.ParseLocale(m.Locale); err != nil {
			errs = append(errs, fmt.Errorf("locale %q: %w", m.Locale, err))
		}
	}
	for name, s := range m.Services {
		if !catalog.ValidateServiceName(name) {
			errs = append(errs, fmt.Errorf("invalid service name %q", name))
		}
		if s.Version != "" {
			if _, err := masterminds.NewVersion(s.Version); err != nil {
				errs = append(errs, fmt.Errorf("service %s version %q: %w", name, s.Version, err))
			}
		}
		switch s.Status {
		case "", catalog.StatusActive, catalog.StatusDeprecated, catalog.StatusDisabled:
		default:
			errs = append(errs, fmt.Errorf("service %s: invalid status %q", name, s.Status))
		}
		for i, d := range s.Operations {
			if d.Method == "" {
				errs = append(errs, fmt.Errorf("service %s: operation %d has no method", name, i))
			}
		}
	}
	for alias, target := range m.Aliases {
		if !catalog.ValidateServiceName(alias) {
			errs = append(errs, fmt.Errorf("invalid alias %q", alias))
		}
		if _, ok := m.Services[target]; !ok {
			errs = append(errs, fmt.Errorf("alias %s targets undeclared service %s", alias, target))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	return nil
}

// Merge overlays override onto base. Services and aliases are replaced per key.
func Merge(base, override *Manifest) *Manifest {
	merged := *base
	merged.Services = make(map[string]ServiceManifest, len(base.Services)+len(override.Services))
	for name, s := range base.Services {
		merged.Services[name] = s
	}
	for name, s := range override.Services {
		merged.Services[name] = s
	}

	merged.Aliases = make(map[string]string, len(base.Aliases)+len(override.Aliases))
	for alias, target := range base.Aliases {
		merged.Aliases[alias] = target
	}
	for alias, target := range override.Aliases {
		merged.Aliases[alias] = target
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Locale != "" {
		merged.Locale = override.Locale
	}
	return &merged
}
