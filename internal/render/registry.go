package render

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProcessor is returned when a processor name has no registered
// factory.
var ErrUnknownProcessor = errors.New("unknown processor")

// ErrProcessorCreate is returned when a factory fails to build an instance.
var ErrProcessorCreate = errors.New("processor could not be created")

// Registry maps processor names to factories.
type Registry struct {
	m map[string]Factory
}

func NewRegistry() *Registry { return &Registry{m: map[string]Factory{}} }

func (r *Registry) Register(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	r.m[name] = f
}

func (r *Registry) Has(name string) bool {
	_, ok := r.m[name]
	return ok
}

func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.m[name]
	return f, ok
}

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build constructs a processor by name. Failures are reported as
// distinguishable configuration errors: ErrUnknownProcessor for a missing
// name, ErrProcessorCreate wrapping whatever the factory returned.
func (r *Registry) Build(name string, args map[string]interface{}) (Processor, error) {
	f, ok := r.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcessor, name)
	}
	p, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrProcessorCreate, name, err)
	}
	return p, nil
}
