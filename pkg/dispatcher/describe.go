package dispatcher

import (
	"sort"

	"github.com/morezero/json-bridge/pkg/catalog"
)

// ServiceDescription is the public view of one service version and its operations.
type ServiceDescription struct {
	Name        string                 `json:"name"`
	Ref         string                 `json:"ref"`
	Version     string                 `json:"version"`
	Major       int                    `json:"major"`
	Status      string                 `json:"status"`
	Description string                 `json:"description,omitempty"`
	Versions    []VersionSummary       `json:"versions,omitempty"`
	Operations  []OperationDescription `json:"operations"`
}

// OperationDescription describes one exposed operation.
type OperationDescription struct {
	Name        string                 `json:"name"`
	Method      string                 `json:"method"`
	Description string                 `json:"description,omitempty"`
	Params      []ParameterDescription `json:"params"`
	// Result is the Go result type, empty for operations without one.
	Result string `json:"result,omitempty"`
}

// ParameterDescription describes one operation parameter.
type ParameterDescription struct {
	Name   string `json:"name"`
	Header bool   `json:"header,omitempty"`
	Type   string `json:"type"`
}

// VersionSummary is one version of a service.
type VersionSummary struct {
	Version string `json:"version"`
	Status  string `json:"status"`
}

// ServiceSummary is one line of the catalog listing.
type ServiceSummary struct {
	Name     string           `json:"name"`
	Latest   string           `json:"latest,omitempty"`
	Majors   []int            `json:"majors"`
	Versions []VersionSummary `json:"versions"`
	Aliases  []string         `json:"aliases,omitempty"`
}

// Describe builds the description of entry. versions lists every version of the service.
func Describe(entry *catalog.Entry, versions []*catalog.Entry) *ServiceDescription {
	svc := entry.Invoker.Service()
	desc := &ServiceDescription{
		Name:        entry.Name,
		Ref:         entry.Ref(),
		Version:     entry.Version.String(),
		Major:       int(entry.Version.Major()),
		Status:      entry.Status,
		Description: entry.Description,
		Versions:    summarize(versions),
		Operations:  []OperationDescription{},
	}
	if desc.Description == "" {
		desc.Description = svc.Description
	}

	for _, op := range svc.Operations {
		if !op.Exposed {
			continue
		}
		od := OperationDescription{
			Name:        op.Name,
			Method:      op.Method,
			Description: op.Description,
			Params:      make([]ParameterDescription, 0, len(op.Params)),
		}
		if rt := op.Result(); rt != nil {
			od.Result = rt.String()
		}
		for _, p := range op.Params {
			od.Params = append(od.Params, ParameterDescription{Name: p.Name, Header: p.Header, Type: p.Type.String()})
		}
		desc.Operations = append(desc.Operations, od)
	}
	return desc
}

// List summarizes every service of c.
func List(c *catalog.Catalog) []ServiceSummary {
	aliases := make(map[string][]string)
	for alias, target := range c.Aliases() {
		aliases[target] = append(aliases[target], alias)
	}
	for _, list := range aliases {
		sort.Strings(list)
	}

	out := make([]ServiceSummary, 0)
	for _, name := range c.Names() {
		s := ServiceSummary{
			Name:     name,
			Majors:   c.Majors(name),
			Versions: summarize(c.Versions(name)),
			Aliases:  aliases[name],
		}
		if latest, err := c.Resolve(name); err == nil {
			s.Latest = latest.Version.String()
		}
		out = append(out, s)
	}
	return out
}

func summarize(entries []*catalog.Entry) []VersionSummary {
	out := make([]VersionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, VersionSummary{Version: e.Version.String(), Status: e.Status})
	}
	return out
}
