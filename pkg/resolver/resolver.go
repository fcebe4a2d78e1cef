// Package resolver selects the single declared operation that accepts a request's operation
// name and the set of supplied parameter names. Parameter types play no part in the choice.
package resolver

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/morezero/json-bridge/pkg/failure"
	"github.com/morezero/json-bridge/pkg/operation"
)

const logPrefix = "resolver:resolve"

// Status is the outcome of a resolution.
type Status int

const (
	Resolved Status = iota
	NotFound
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Resolution is the tagged result of Resolve. Operation is set only when Status is Resolved;
// Candidates holds every match when Status is Ambiguous.
type Resolution struct {
	Status     Status
	Name       string
	Supplied   []string
	Operation  *operation.Descriptor
	Candidates []*operation.Descriptor
}

// Err converts an unresolved outcome into a classified failure. It returns nil when resolved.
func (r Resolution) Err() error {
	switch r.Status {
	case Resolved:
		return nil
	case Ambiguous:
		names := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			names[i] = c.Method
		}
		return failure.NewAmbiguous(r.Name, names)
	}
	return failure.NewNotFound(r.Name, r.Supplied)
}

// Resolve filters ops to those exposed under name whose parameters match params:
// the supplied header names must be a subset of the operation's header names, and the
// supplied non-header names must equal its non-header names exactly.
func Resolve(name string, params []operation.RawParameter, ops []*operation.Descriptor) Resolution {
	headers, body := nameSets(params)
	res := Resolution{Name: name, Supplied: suppliedNames(params)}

	for _, op := range ops {
		if op.Name != name || !op.Exposed {
			continue
		}
		if Matches(op, headers, body) {
			res.Candidates = append(res.Candidates, op)
		}
	}

	switch len(res.Candidates) {
	case 0:
		res.Status = NotFound
		slog.Debug(fmt.Sprintf("%s - no match for %s%v", logPrefix, name, res.Supplied))
	case 1:
		res.Status = Resolved
		res.Operation = res.Candidates[0]
	default:
		res.Status = Ambiguous
		slog.Debug(fmt.Sprintf("%s - %d candidates for %s%v", logPrefix, len(res.Candidates), name, res.Supplied))
	}
	return res
}

// Matches applies the name-set rule to one operation.
func Matches(op *operation.Descriptor, headers, body map[string]struct{}) bool {
	opHeaders := map[string]struct{}{}
	opBody := map[string]struct{}{}
	for _, p := range op.Params {
		if p.Header {
			opHeaders[p.Name] = struct{}{}
		} else {
			opBody[p.Name] = struct{}{}
		}
	}
	for n := range headers {
		if _, ok := opHeaders[n]; !ok {
			return false
		}
	}
	if len(body) != len(opBody) {
		return false
	}
	for n := range body {
		if _, ok := opBody[n]; !ok {
			return false
		}
	}
	return true
}

func nameSets(params []operation.RawParameter) (headers, body map[string]struct{}) {
	headers = map[string]struct{}{}
	body = map[string]struct{}{}
	for _, p := range params {
		if p.Header {
			headers[p.Name] = struct{}{}
		} else {
			body[p.Name] = struct{}{}
		}
	}
	return headers, body
}

func suppliedNames(params []operation.RawParameter) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range params {
		if p.Header || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}
