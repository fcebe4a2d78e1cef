package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/morezero/json-bridge/pkg/commsutil"
	"github.com/morezero/json-bridge/pkg/operation"
)

// maxBodyBytes bounds request bodies read by the API handler.
const maxBodyBytes = 1 << 20

var errBodyNotObject = errors.New("request body must be a JSON object")

// RequestParams collects the raw parameters of an HTTP request: query values and the
// top-level keys of a JSON object body are non-header parameters, headers starting with
// prefix are header parameters. A body key replaces a query value of the same name.
// Parameters are ordered by name, headers first.
func RequestParams(r *http.Request, prefix string) ([]operation.RawParameter, error) {
	var out []operation.RawParameter

	headers := make(map[string]any)
	for key, values := range r.Header {
		name, ok := headerParamName(key, prefix)
		if !ok || len(values) == 0 {
			continue
		}
		headers[name] = headerValue(values[0])
	}
	for _, name := range sortedKeys(headers) {
		out = append(out, operation.RawParameter{Name: name, Header: true, Value: headers[name]})
	}

	fields := make(map[string]any)
	for key, values := range r.URL.Query() {
		switch len(values) {
		case 0:
		case 1:
			fields[key] = values[0]
		default:
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			fields[key] = list
		}
	}

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	for key, v := range body {
		fields[key] = v
	}

	for _, name := range sortedKeys(fields) {
		out = append(out, operation.RawParameter{Name: name, Value: fields[name]})
	}
	return out, nil
}

func readBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] != '{' {
		return nil, errBodyNotObject
	}
	var fields map[string]any
	if err := commsutil.DecodeNumbers(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyNotObject, err)
	}
	return fields, nil
}

// headerParamName turns "X-Param-Tenant-Id" into "tenantId" for prefix "X-Param-".
func headerParamName(key, prefix string) (string, bool) {
	if len(key) <= len(prefix) || !strings.EqualFold(key[:len(prefix)], prefix) {
		return "", false
	}
	parts := strings.Split(key[len(prefix):], "-")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		p = strings.ToLower(p)
		if i > 0 && b.Len() > 0 {
			p = strings.ToUpper(p[:1]) + p[1:]
		}
		b.WriteString(p)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// headerKey is the inverse of headerParamName: "tenantId" becomes "X-Param-Tenant-Id".
func headerKey(prefix, name string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte('-')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// headerValue decodes a header as JSON when it is valid JSON, and keeps it as a bare
// string otherwise.
func headerValue(raw string) any {
	var v any
	if err := commsutil.DecodeNumbers([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// operationCandidates lists the operation names an HTTP request may address, in order:
// the verb-prefixed name, then the path segment as-is.
func operationCandidates(method, segment string) []string {
	verb := ""
	switch method {
	case http.MethodGet, http.MethodHead:
		verb = "get"
	case http.MethodPost:
		verb = "create"
	case http.MethodPut:
		verb = "update"
	case http.MethodDelete:
		verb = "delete"
	case http.MethodPatch:
		verb = "patch"
	}
	if verb == "" || hasVerbPrefix(segment, verb) {
		return []string{segment}
	}
	return []string{operation.VerbName(verb, segment), segment}
}

// hasVerbPrefix reports whether name already reads as verb + Resource, e.g. "getWidget".
func hasVerbPrefix(name, verb string) bool {
	if len(name) <= len(verb) || !strings.HasPrefix(name, verb) {
		return false
	}
	return unicode.IsUpper(rune(name[len(verb)]))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if raw, ok := v.(json.RawMessage); ok {
		w.Write(raw)
		return
	}
	json.NewEncoder(w).Encode(v)
}
