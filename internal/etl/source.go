package etl

import (
	"context"
	"fmt"
)

// ── Extractor ──────────────────────────────────────────────
// An Extractor turns one source-specific input into SourceRecords.
// Implementations live in etl/sources/, one file per source kind.

// ConfigField describes a single configuration key an extractor reads.
type ConfigField struct {
	Key      string `json:"key"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes an extractor: its kind, label and config keys.
type SourceSpec struct {
	Kind         SourceKind    `json:"kind"`
	Label        string        `json:"label"`
	Input        string        `json:"input"` // "file" | "url"
	ConfigFields []ConfigField `json:"configFields"`
}

// Extractor is the contract every source adapter satisfies.
type Extractor interface {
	// Spec returns metadata about this extractor.
	Spec() SourceSpec

	// Extract reads input (a path or URL) and returns the records it could build.
	// It never panics past its boundary. The error is informational: it has
	// already been logged, and the returned records are always usable (possibly
	// empty, possibly partial).
	Extract(ctx context.Context, input string) ([]SourceRecord, error)
}

// ── Registry ───────────────────────────────────────────────

// Registry holds at most one extractor per SourceKind.
type Registry struct {
	byKind map[SourceKind]Extractor
}

// NewRegistry registers exts, rejecting unknown kinds and duplicates.
func NewRegistry(exts ...Extractor) (*Registry, error) {
	r := &Registry{byKind: make(map[SourceKind]Extractor, len(exts))}
	for _, e := range exts {
		kind := e.Spec().Kind
		if !kind.Valid() {
			return nil, fmt.Errorf("register extractor: unknown source kind %q", kind)
		}
		if _, dup := r.byKind[kind]; dup {
			return nil, fmt.Errorf("register extractor: duplicate source kind %q", kind)
		}
		r.byKind[kind] = e
	}
	return r, nil
}

// Get returns the extractor for kind.
func (r *Registry) Get(kind SourceKind) (Extractor, error) {
	e, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for %q", kind)
	}
	return e, nil
}

// Ordered returns the registered extractors in AllKinds order.
func (r *Registry) Ordered() []Extractor {
	out := make([]Extractor, 0, len(r.byKind))
	for _, k := range AllKinds {
		if e, ok := r.byKind[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Specs returns the specs of all registered extractors in run order.
func (r *Registry) Specs() []SourceSpec {
	ordered := r.Ordered()
	specs := make([]SourceSpec, 0, len(ordered))
	for _, e := range ordered {
		specs = append(specs, e.Spec())
	}
	return specs
}

// Inputs maps each source kind to its configured path or URL.
type Inputs map[SourceKind]string
