package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Connector is a named integration endpoint from the static catalog.
// Immutable once loaded.
type Connector struct {
	Name           string   `json:"name"`
	Category       Category `json:"category"`
	RequiredFields []string `json:"required_fields,omitempty"`
}

// Registry is the process-wide, read-only connector catalog.
type Registry struct {
	connectors []Connector
	byName     map[string]int // lowercase name -> index into connectors
}

type catalogFile struct {
	Connectors []Connector `json:"connectors"`
}

// Load reads the catalog file produced by the external build step.
// Entries without an explicit category get one derived from their name.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	return New(file.Connectors)
}

// New builds a registry from a connector list, preserving insertion order.
func New(connectors []Connector) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]int, len(connectors)),
	}
	for _, c := range connectors {
		if c.Name == "" {
			return nil, fmt.Errorf("catalog entry with empty name")
		}
		key := strings.ToLower(c.Name)
		if _, exists := r.byName[key]; exists {
			return nil, fmt.Errorf("duplicate catalog entry: %s", c.Name)
		}
		if c.Category == "" {
			c.Category = Categorize(c.Name)
		}
		r.byName[key] = len(r.connectors)
		r.connectors = append(r.connectors, c)
	}
	return r, nil
}

// Lookup finds a connector by name, case-insensitively.
// A miss is a normal result, not a fault: the name may describe a
// connector outside the catalog.
func (r *Registry) Lookup(name string) (Connector, bool) {
	idx, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Connector{}, false
	}
	return r.connectors[idx], true
}

// All returns the catalog in insertion order. The slice is a copy;
// callers cannot mutate the registry through it.
func (r *Registry) All() []Connector {
	out := make([]Connector, len(r.connectors))
	copy(out, r.connectors)
	return out
}

// Names returns every connector display name in insertion order.
// Used to ground classification prompts deterministically.
func (r *Registry) Names() []string {
	names := make([]string, len(r.connectors))
	for i, c := range r.connectors {
		names[i] = c.Name
	}
	return names
}
