package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateTestName is returned when registering a name that exists.
	ErrDuplicateTestName = errors.New("duplicate test name")

	// ErrUnknownTest is returned when looking up an unregistered name.
	ErrUnknownTest = errors.New("unknown test")
)

// Catalog is the registry of named benchmark test definitions. It is
// write-once per name and read-heavy after process warm-up.
type Catalog struct {
	log logrus.FieldLogger

	mu    sync.RWMutex
	tests map[string]bench.TestDefinition
}

// New creates an empty catalog.
func New(log logrus.FieldLogger) *Catalog {
	return &Catalog{
		log:   log.WithField("component", "catalog"),
		tests: make(map[string]bench.TestDefinition, 16),
	}
}

// Register adds a definition to the catalog. The catalog stores its own
// copy, so later mutation of the caller's value has no effect.
func (c *Catalog) Register(def bench.TestDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("test definition requires a name")
	}

	for _, p := range def.Paths {
		if !p.Valid() {
			return fmt.Errorf("test %q: unknown execution path %q", def.Name, p)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tests[def.Name]; exists {
		return fmt.Errorf("test %q: %w", def.Name, ErrDuplicateTestName)
	}

	c.tests[def.Name] = def.Clone()

	c.log.WithField("test", def.Name).Debug("Registered test definition")

	return nil
}

// Lookup returns a copy of the definition registered under name.
func (c *Catalog) Lookup(name string) (bench.TestDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.tests[name]
	if !ok {
		return bench.TestDefinition{}, fmt.Errorf("test %q: %w", name, ErrUnknownTest)
	}

	return def.Clone(), nil
}

// List returns copies of all registered definitions sorted by name.
func (c *Catalog) List() []bench.TestDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]bench.TestDefinition, 0, len(c.tests))
	for _, def := range c.tests {
		out = append(out, def.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

// Names returns all registered test names sorted alphabetically.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tests))
	for name := range c.tests {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of registered tests.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tests)
}
