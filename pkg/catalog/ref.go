// Package catalog holds the versioned set of services a bridge exposes and resolves
// service references such as "widgets", "widgets@2" or "widgets@^1.4.0".
package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const logPrefix = "catalog:ref"

// ServiceRef is a parsed service reference.
type ServiceRef struct {
	// Name is the service name or an alias.
	Name string
	// Range is the version selector after '@'. Empty selects the default major.
	Range string
	Raw   string
}

var (
	serviceNameRegex  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseServiceRef parses a service reference.
//
// Supported formats:
//   - widgets            (default major, latest)
//   - widgets@2          (major only)
//   - widgets@2.1.0      (exact version)
//   - widgets@^2.1.0     (caret range)
//   - widgets@>=1.0.0 <3 (comparison range)
func ParseServiceRef(input string) (*ServiceRef, error) {
	raw := strings.TrimSpace(input)
	name, rangeStr, _ := strings.Cut(raw, "@")
	name = strings.TrimSpace(name)
	rangeStr = strings.TrimSpace(rangeStr)

	if !ValidateServiceName(name) {
		return nil, fmt.Errorf("%s - invalid service name in reference %q", logPrefix, raw)
	}
	if strings.Contains(raw, "@") && rangeStr == "" {
		return nil, fmt.Errorf("%s - empty version range in reference %q", logPrefix, raw)
	}

	return &ServiceRef{Name: name, Range: rangeStr, Raw: raw}, nil
}

// String renders the reference as name[@range].
func (r *ServiceRef) String() string {
	return BuildServiceRef(r.Name, r.Range)
}

// BuildServiceRef joins a name and an optional version or range.
func BuildServiceRef(name, version string) string {
	if version == "" {
		return name
	}
	return name + "@" + version
}

// ValidateServiceName reports whether name is a legal service name: a letter followed by
// letters, digits, dots, hyphens or underscores.
func ValidateServiceName(name string) bool {
	return serviceNameRegex.MatchString(name)
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajor returns the major of a major-only range, or -1.
func ExtractMajor(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	major, err := strconv.Atoi(rangeStr)
	if err != nil {
		return -1
	}
	return major
}
