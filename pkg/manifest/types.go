// Package manifest loads the bridge manifest: the file that declares, per service, the
// version to publish, how its Go methods are exposed and which aliases resolve to it.
package manifest

import "github.com/morezero/json-bridge/pkg/operation"

// Manifest is the root manifest document. It may be written as JSON or YAML.
type Manifest struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Locale overrides the configured coercion locale, e.g. "de-DE".
	Locale   string                     `json:"locale,omitempty" yaml:"locale,omitempty"`
	Services map[string]ServiceManifest `json:"services" yaml:"services"`
	// Aliases maps alternative service names to service names.
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// ServiceManifest declares how one service is published.
type ServiceManifest struct {
	// Version restricts the entry to the binding of that version; empty applies it to all.
	Version     string `json:"version" yaml:"version"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// DefaultMajor pins the major selected by references without a range.
	DefaultMajor *int `json:"defaultMajor,omitempty" yaml:"defaultMajor,omitempty"`
	// Operations override the declarations of the methods they name.
	Operations []operation.Declaration `json:"operations,omitempty" yaml:"operations,omitempty"`
}

// Service returns the manifest entry for name, following aliases.
func (m *Manifest) Service(name string) (ServiceManifest, bool) {
	if s, ok := m.Services[name]; ok {
		return s, true
	}
	if target, ok := m.Aliases[name]; ok {
		s, ok := m.Services[target]
		return s, ok
	}
	return ServiceManifest{}, false
}

// Declarations returns the operation declarations for a service, or nil when the manifest
// leaves them to the service.
func (m *Manifest) Declarations(service string) []operation.Declaration {
	s, ok := m.Service(service)
	if !ok {
		return nil
	}
	return s.Operations
}

// ResolveAlias resolves an alias to the service name.
func (m *Manifest) ResolveAlias(alias string) string {
	if resolved, ok := m.Aliases[alias]; ok {
		return resolved
	}
	return alias
}
