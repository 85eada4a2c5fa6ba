package monitor

import (
	"context"
	"fmt"
)

// NamedSource pairs a Source with the name used in logs and errors.
type NamedSource struct {
	Name   string
	Source Source
}

// MultiSource concatenates several sources in order.
//
// If any source fails the whole enumeration fails and the handles already
// collected are closed: a partial enumeration would make the registry
// drop every device of the failed source.
type MultiSource struct {
	sources []NamedSource
}

// NewMultiSource creates a source enumerating each of sources in turn.
func NewMultiSource(sources ...NamedSource) *MultiSource {
	return &MultiSource{sources: sources}
}

// Enumerate implements Source.
func (m *MultiSource) Enumerate(ctx context.Context) ([]Handle, error) {
	var all []Handle
	for _, s := range m.sources {
		handles, err := s.Source.Enumerate(ctx)
		if err != nil {
			for _, h := range all {
				h.Close() //nolint:errcheck // Best effort cleanup on error path
			}
			return nil, fmt.Errorf("enumerating %s: %w", s.Name, err)
		}
		all = append(all, handles...)
	}
	return all, nil
}
