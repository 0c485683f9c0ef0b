package scraper

import (
	"fmt"
	"sort"

	"mkrew_service/internal/domain/model"
)

// Registry: неизменяемое соответствие кода источника и адаптера, собирается при старте.
type Registry struct {
	adapters map[string]model.SourceAdapter
}

func NewRegistry(adapters ...model.SourceAdapter) (*Registry, error) {
	m := make(map[string]model.SourceAdapter, len(adapters))
	for _, a := range adapters {
		if _, dup := m[a.SourceCode()]; dup {
			return nil, fmt.Errorf("duplicate adapter for source %s", a.SourceCode())
		}
		m[a.SourceCode()] = a
	}
	return &Registry{adapters: m}, nil
}

// DefaultAdapters returns adapters for every supported blood bank.
func DefaultAdapters(opts Options) []model.SourceAdapter {
	return []model.SourceAdapter{
		NewRzeszow(opts),
		NewKrakow(opts),
		NewWroclaw(opts),
	}
}

// Lookup never fails for an unknown code, it reports absence.
func (r *Registry) Lookup(code string) (model.SourceAdapter, bool) {
	a, ok := r.adapters[code]
	return a, ok
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
