package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	masterminds "github.com/Masterminds/semver/v3"

	"github.com/morezero/json-bridge/pkg/failure"
	"github.com/morezero/json-bridge/pkg/invoker"
)

const catalogLogPrefix = "catalog:catalog"

// Version statuses.
const (
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
	StatusDisabled   = "disabled"
)

// Entry is one registered version of a service. Entries are never mutated after they are
// published; status changes replace the entry.
type Entry struct {
	Name        string
	Version     *masterminds.Version
	Status      string
	Description string
	Invoker     *invoker.Invoker
}

// Ref returns the exact reference of the entry, e.g. "widgets@1.2.0".
func (e *Entry) Ref() string {
	return BuildServiceRef(e.Name, e.Version.String())
}

// RegisterParams holds parameters for Register.
type RegisterParams struct {
	Name        string
	Version     string
	Status      string
	Description string
	Invoker     *invoker.Invoker
}

// Catalog is the set of services a bridge exposes. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	entries  map[string][]*Entry // newest version first
	aliases  map[string]string
	defaults map[string]int
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries:  make(map[string][]*Entry),
		aliases:  make(map[string]string),
		defaults: make(map[string]int),
	}
}

// Register adds a service version.
func (c *Catalog) Register(params RegisterParams) (*Entry, error) {
	if !ValidateServiceName(params.Name) {
		return nil, fmt.Errorf("%s - invalid service name %q", catalogLogPrefix, params.Name)
	}
	if params.Invoker == nil {
		return nil, fmt.Errorf("%s - service %s has no invoker", catalogLogPrefix, params.Name)
	}
	version := params.Version
	if version == "" {
		version = "1.0.0"
	}
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("%s - service %s: invalid version %q: %w", catalogLogPrefix, params.Name, version, err)
	}
	status := params.Status
	if status == "" {
		status = StatusActive
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("%s - service %s: invalid status %q", catalogLogPrefix, params.Name, status)
	}

	entry := &Entry{
		Name:        params.Name,
		Version:     sv,
		Status:      status,
		Description: params.Description,
		Invoker:     params.Invoker,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.aliases[params.Name]; taken {
		return nil, fmt.Errorf("%s - service name %s is already an alias", catalogLogPrefix, params.Name)
	}
	for _, e := range c.entries[params.Name] {
		if e.Version.Equal(sv) {
			return nil, fmt.Errorf("%s - service %s already registered", catalogLogPrefix, entry.Ref())
		}
	}
	list := append(c.entries[params.Name], entry)
	sortEntriesDesc(list)
	c.entries[params.Name] = list

	slog.Info(fmt.Sprintf("%s - Registered service %s (%s, %d operations)", catalogLogPrefix, entry.Ref(), status, len(params.Invoker.Service().Operations)))
	return entry, nil
}

// Alias makes alias resolve to the service target.
func (c *Catalog) Alias(alias, target string) error {
	if !ValidateServiceName(alias) {
		return fmt.Errorf("%s - invalid alias %q", catalogLogPrefix, alias)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[target]; !ok {
		return fmt.Errorf("%s - alias %s targets unknown service %s", catalogLogPrefix, alias, target)
	}
	if _, ok := c.entries[alias]; ok {
		return fmt.Errorf("%s - alias %s shadows a service", catalogLogPrefix, alias)
	}
	c.aliases[alias] = target
	return nil
}

// SetDefaultMajor selects the major used when a reference carries no range.
func (c *Catalog) SetDefaultMajor(name string, major int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name = c.resolveAlias(name)
	for _, e := range c.entries[name] {
		if int(e.Version.Major()) == major && e.Status != StatusDisabled {
			c.defaults[name] = major
			slog.Info(fmt.Sprintf("%s - Default major of %s set to %d", catalogLogPrefix, name, major))
			return nil
		}
	}
	return fmt.Errorf("%s - service %s has no usable version in major %d", catalogLogPrefix, name, major)
}

// SetStatus changes the status of one exact service version.
func (c *Catalog) SetStatus(name, version, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("%s - invalid status %q", catalogLogPrefix, status)
	}
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s - invalid version %q: %w", catalogLogPrefix, version, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	name = c.resolveAlias(name)
	list := c.entries[name]
	for i, e := range list {
		if e.Version.Equal(sv) {
			updated := *e
			updated.Status = status
			list[i] = &updated
			slog.Info(fmt.Sprintf("%s - Service %s is now %s", catalogLogPrefix, updated.Ref(), status))
			return nil
		}
	}
	return fmt.Errorf("%s - service %s not registered", catalogLogPrefix, BuildServiceRef(name, version))
}

// Resolve returns the entry ref addresses. A reference without a range selects the default
// major, or the highest one, and within it the newest stable active version. Disabled
// versions never resolve. The error is a *failure.Error of kind NotFound.
func (c *Catalog) Resolve(ref string) (*Entry, error) {
	parsed, err := ParseServiceRef(ref)
	if err != nil {
		fe := failure.NewServiceNotFound(ref)
		fe.Err = err
		return nil, fe
	}

	c.mu.RLock()
	name := c.resolveAlias(parsed.Name)
	candidates := make([]*Entry, 0, len(c.entries[name]))
	for _, e := range c.entries[name] {
		if e.Status != StatusDisabled {
			candidates = append(candidates, e)
		}
	}
	defaultMajor, hasDefault := c.defaults[name]
	c.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, failure.NewServiceNotFound(ref)
	}

	var found *Entry
	switch {
	case parsed.Range == "":
		major := highestMajor(candidates)
		if hasDefault {
			major = defaultMajor
		}
		found = latestInMajor(candidates, major)
	case IsMajorOnly(parsed.Range):
		found = latestInMajor(candidates, ExtractMajor(parsed.Range))
	default:
		found = matchRange(candidates, parsed.Range)
	}
	if found == nil {
		return nil, failure.NewServiceNotFound(ref)
	}
	return found, nil
}

// Names returns the registered service names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns every version of a service, newest first.
func (c *Catalog) Versions(name string) []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.entries[c.resolveAlias(name)]
	out := make([]*Entry, len(list))
	copy(out, list)
	return out
}

// List returns every entry ordered by name, newest version first.
func (c *Catalog) List() []*Entry {
	var out []*Entry
	for _, name := range c.Names() {
		out = append(out, c.Versions(name)...)
	}
	return out
}

// Majors returns the distinct majors of a service, highest first.
func (c *Catalog) Majors(name string) []int {
	seen := make(map[int]bool)
	var majors []int
	for _, e := range c.Versions(name) {
		m := int(e.Version.Major())
		if !seen[m] {
			seen[m] = true
			majors = append(majors, m)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(majors)))
	return majors
}

// Aliases returns a copy of the alias table.
func (c *Catalog) Aliases() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

func (c *Catalog) resolveAlias(name string) string {
	if target, ok := c.aliases[name]; ok {
		return target
	}
	return name
}

func validStatus(s string) bool {
	return s == StatusActive || s == StatusDeprecated || s == StatusDisabled
}

// --- internal helpers ---

func highestMajor(entries []*Entry) int {
	highest := -1
	for _, e := range entries {
		if m := int(e.Version.Major()); m > highest {
			highest = m
		}
	}
	return highest
}

// latestInMajor prefers stable releases over prereleases, then active over deprecated.
// entries are sorted newest first.
func latestInMajor(entries []*Entry, major int) *Entry {
	var inMajor, stable []*Entry
	for _, e := range entries {
		if int(e.Version.Major()) != major {
			continue
		}
		inMajor = append(inMajor, e)
		if e.Version.Prerelease() == "" {
			stable = append(stable, e)
		}
	}
	if len(inMajor) == 0 {
		return nil
	}
	if len(stable) > 0 {
		return preferActive(stable)
	}
	return preferActive(inMajor)
}

func matchRange(entries []*Entry, rangeStr string) *Entry {
	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - %q is not a range, trying exact match: %v", catalogLogPrefix, rangeStr, err))
		for _, e := range entries {
			if e.Version.Original() == rangeStr || e.Version.String() == rangeStr {
				return e
			}
		}
		return nil
	}

	var matching []*Entry
	for _, e := range entries {
		if constraint.Check(e.Version) {
			matching = append(matching, e)
		}
	}
	if len(matching) == 0 {
		return nil
	}
	return preferActive(matching)
}

func preferActive(entries []*Entry) *Entry {
	for _, e := range entries {
		if e.Status == StatusActive {
			return e
		}
	}
	return entries[0]
}

func sortEntriesDesc(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Version.GreaterThan(entries[j].Version)
	})
}
