package ai

import (
	"fmt"
	"sort"
)

// Factory builds a Provider from provider-specific options
type Factory func(opts map[string]string) (Provider, error)

// ProviderSet maps provider names to factories. The caller builds one at
// startup with every vendor client it links in and hands it to the wiring
// code; there is no package-level registry.
type ProviderSet struct {
	factories map[string]Factory
}

// NewProviderSet returns an empty set
func NewProviderSet() *ProviderSet {
	return &ProviderSet{factories: make(map[string]Factory)}
}

// Register adds a provider under name, replacing any previous entry
func (s *ProviderSet) Register(name string, factory Factory) {
	s.factories[name] = factory
}

// Open builds the named provider
func (s *ProviderSet) Open(name string, opts map[string]string) (Provider, error) {
	factory, ok := s.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown model provider %q (available: %v)", name, s.Names())
	}
	return factory(opts)
}

// Names lists the registered provider names, sorted
func (s *ProviderSet) Names() []string {
	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
