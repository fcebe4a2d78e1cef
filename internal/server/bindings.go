package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/morezero/json-bridge/pkg/catalog"
	"github.com/morezero/json-bridge/pkg/coerce"
	"github.com/morezero/json-bridge/pkg/invoker"
	"github.com/morezero/json-bridge/pkg/manifest"
	"github.com/morezero/json-bridge/pkg/operation"
)

const bindingsLogPrefix = "server:bindings"

// Binding is a Go service object the bridge publishes as one service version.
type Binding struct {
	Name        string
	Version     string
	Description string
	Target      any
	// Translator renders errors returned by the target. Nil declines every error.
	Translator invoker.Translator
}

// RegisterBindingsParams holds parameters for RegisterBindings.
type RegisterBindingsParams struct {
	Catalog   *catalog.Catalog
	Manifest  *manifest.Manifest
	Converter *coerce.Converter
	Bindings  []Binding
	// Options apply to every invoker, e.g. observers and the mapper.
	Options []invoker.Option
}

// RegisterBindings builds an invoker per binding and registers it. A manifest entry for
// the binding's name overrides its status, description and declarations; an entry with a
// version applies only to that version. Default majors and aliases are applied last.
func RegisterBindings(params RegisterBindingsParams) error {
	m := params.Manifest
	if m == nil {
		m = manifest.Default()
	}

	bound := make(map[string]bool)
	for _, b := range params.Bindings {
		sm, ok := m.Services[b.Name]
		if ok && sm.Version != "" && sm.Version != b.Version {
			ok = false
		}

		var decls []operation.Declaration
		status, desc := "", b.Description
		if ok {
			decls = sm.Operations
			status = sm.Status
			if sm.Description != "" {
				desc = sm.Description
			}
		}

		svc, err := operation.Build(b.Name, b.Target, decls...)
		if err != nil {
			return fmt.Errorf("%s - %w", bindingsLogPrefix, err)
		}
		svc.Version = b.Version
		svc.Description = desc

		opts := append([]invoker.Option{}, params.Options...)
		if b.Translator != nil {
			opts = append(opts, invoker.WithTranslator(b.Translator))
		}
		if _, err := params.Catalog.Register(catalog.RegisterParams{
			Name:        b.Name,
			Version:     b.Version,
			Status:      status,
			Description: desc,
			Invoker:     invoker.New(svc, params.Converter, opts...),
		}); err != nil {
			return fmt.Errorf("%s - %w", bindingsLogPrefix, err)
		}
		bound[b.Name] = true
	}

	var errs []error
	for _, name := range sortedKeys(m.Services) {
		sm := m.Services[name]
		if !bound[name] {
			slog.Warn(fmt.Sprintf("%s - manifest declares service %s but nothing implements it", bindingsLogPrefix, name))
			continue
		}
		if sm.DefaultMajor != nil {
			if err := params.Catalog.SetDefaultMajor(name, *sm.DefaultMajor); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for _, alias := range sortedKeys(m.Aliases) {
		target := m.Aliases[alias]
		if !bound[target] {
			slog.Warn(fmt.Sprintf("%s - skipping alias %s: service %s is not bound", bindingsLogPrefix, alias, target))
			continue
		}
		if err := params.Catalog.Alias(alias, target); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s - %w", bindingsLogPrefix, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
