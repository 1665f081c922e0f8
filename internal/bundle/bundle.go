package bundle

import (
	"slices"
)

// Module is a single virtual source file.
type Module struct {
	Path  string
	Code  string
	Entry bool
}

// Field is a top-level bundle member the codec does not interpret, kept as raw JSON.
type Field struct {
	Key string
	Raw string
}

// Bundle is a named collection of virtual source files consumed by a preview sandbox.
type Bundle struct {
	Kind    string
	Modules *Modules
	Extra   []Field
}

// New creates an empty bundle of the given kind
func New(kind string) *Bundle {
	return &Bundle{
		Kind:    kind,
		Modules: NewModules(),
	}
}

// Clone returns a deep copy of the bundle
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	return &Bundle{
		Kind:    b.Kind,
		Modules: b.Modules.Clone(),
		Extra:   slices.Clone(b.Extra),
	}
}

// Modules maps paths to modules and remembers insertion order.
type Modules struct {
	paths  []string
	byPath map[string]*Module
}

// NewModules creates an empty module set
func NewModules() *Modules {
	return &Modules{
		byPath: make(map[string]*Module),
	}
}

// Set stores the module under its path. Replacing an existing path keeps its position.
// The zero value is ready to use.
func (m *Modules) Set(mod *Module) {
	if m.byPath == nil {
		m.byPath = make(map[string]*Module)
	}
	if _, exists := m.byPath[mod.Path]; !exists {
		m.paths = append(m.paths, mod.Path)
	}
	m.byPath[mod.Path] = mod
}

// Get returns the module stored at path, or nil
func (m *Modules) Get(path string) *Module {
	if m == nil {
		return nil
	}
	return m.byPath[path]
}

func (m *Modules) Has(path string) bool {
	return m.Get(path) != nil
}

// Paths returns module paths in insertion order
func (m *Modules) Paths() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.paths)
}

func (m *Modules) Len() int {
	if m == nil {
		return 0
	}
	return len(m.paths)
}

// Each calls fn for every module in insertion order until fn returns false
func (m *Modules) Each(fn func(mod *Module) bool) {
	if m == nil {
		return
	}
	for _, path := range m.paths {
		if !fn(m.byPath[path]) {
			return
		}
	}
}

// Clone returns a deep copy of the module set
func (m *Modules) Clone() *Modules {
	out := NewModules()
	m.Each(func(mod *Module) bool {
		cp := *mod
		out.Set(&cp)
		return true
	})
	return out
}

// Pick returns a new set holding only the given paths, in the order given.
// Paths that are absent are skipped.
func (m *Modules) Pick(paths ...string) *Modules {
	out := NewModules()
	for _, path := range paths {
		if mod := m.Get(path); mod != nil {
			out.Set(mod)
		}
	}
	return out
}
