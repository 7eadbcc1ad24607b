package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"CircularsDesk/internal/domain"
)

// Section describes one listing page of a site, as provided by config.
type Section struct {
	Name   string
	URL    string
	Layout string
}

// Request carries all parameters required to scan one section.
type Request struct {
	SiteName string
	BaseURL  string
	Section  Section
	MaxRows  int
	Options  map[string]string
}

// Scanner reads the circulars listed on one section page.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Circular, error)
}

// ErrUnknownScanner is returned by Resolve for a name nobody registered.
var ErrUnknownScanner = errors.New("unknown scanner")

// Registry maps the scanner names used in site config to implementations.
type Registry struct {
	byName map[string]Scanner
}

// NewRegistry returns a registry holding scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{byName: make(map[string]Scanner, len(scanners))}
	for _, sc := range scanners {
		r.Register(sc)
	}
	return r
}

// Register adds sc; a later scanner with the same name wins.
func (r *Registry) Register(sc Scanner) {
	if r.byName == nil {
		r.byName = map[string]Scanner{}
	}
	r.byName[sc.Name()] = sc
}

// Resolve looks up a scanner. The error names the registered alternatives.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if sc, ok := r.byName[name]; ok {
		return sc, nil
	}
	return nil, fmt.Errorf("%w %q (registered: %s)", ErrUnknownScanner, name, strings.Join(r.Names(), ", "))
}

// Names lists registered scanner names in sorted order.
func (r *Registry) Names() []string {
	var names []string
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
