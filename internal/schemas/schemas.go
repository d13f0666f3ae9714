// Package schemas collects the API types and shared constants features expose
// and renders them as a zod module for clients.
package schemas

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hypersequent/zen"
)

var constantName = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Registry holds API struct types keyed by id and named constants.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]interface{}
	constants map[string]json.RawMessage
}

func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]interface{}),
		constants: make(map[string]json.RawMessage),
	}
}

// AddType registers v under id. v must be a struct or a pointer to one.
func (r *Registry) AddType(id string, v interface{}) error {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("schema %s: want a struct, got %T", id, v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.types[id]; found {
		return fmt.Errorf("schema already registered %s", id)
	}
	r.types[id] = v
	return nil
}

// AddConstant registers a value clients read as `export const name`. The
// value is fixed at registration time.
func (r *Registry) AddConstant(name string, v interface{}) error {
	if !constantName.MatchString(name) {
		return fmt.Errorf("constant %q: name must be upper snake case", name)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("constant %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.constants[name]; found {
		return fmt.Errorf("constant already registered %s", name)
	}
	r.constants[name] = encoded
	return nil
}

func (r *Registry) Type(id string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, found := r.types[id]
	return v, found
}

// IDs returns the registered type ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.types)
}

// Constants returns the registered constant names in sorted order.
func (r *Registry) Constants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.constants)
}

// WriteZod writes the zod import, then the constants, then the types, each
// group ordered by name so the output is stable across runs.
func (r *Registry) WriteZod(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("import { z } from \"zod\";\n\n")

	names := sortedKeys(r.constants)
	for _, name := range names {
		fmt.Fprintf(&b, "export const %s = %s;\n", name, r.constants[name])
	}
	if len(names) > 0 {
		b.WriteString("\n")
	}

	c := zen.NewConverterWithOpts()
	for _, id := range sortedKeys(r.types) {
		c.AddType(r.types[id])
	}
	b.WriteString(c.Export())

	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var registry = NewRegistry()

// Register adds a type to the process registry. Called from init, so a bad
// registration panics.
func Register(id string, v interface{}) {
	if err := registry.AddType(id, v); err != nil {
		panic(err)
	}
}

// RegisterConstant adds a constant to the process registry and panics on error.
func RegisterConstant(name string, v interface{}) {
	if err := registry.AddConstant(name, v); err != nil {
		panic(err)
	}
}

func Get(id string) (interface{}, bool) {
	return registry.Type(id)
}

func List() []string {
	return registry.IDs()
}

func ToZodSchema() string {
	var b strings.Builder
	// strings.Builder never fails a write.
	_ = registry.WriteZod(&b)
	return b.String()
}
