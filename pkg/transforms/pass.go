// Package transforms implements function-level passes over the device IR in
// pkg/mlir, and the catalog through which drivers instantiate them by name.
package transforms

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/gomlx/go-mlir/pkg/mlir"
)

// Pass is a transformation over one function. Run mutates the function in
// place; it returns an error only for malformed input, never for a missed
// optimization opportunity.
type Pass interface {
	// Name is the stable identifier of the pass, e.g. "replicate-invariant-op-hoisting".
	Name() string
	// Description is a one-line summary for catalogs and CLIs.
	Description() string
	// Run applies the pass to the function.
	Run(fn *mlir.Func) error
}

var passFactories = make(map[string]func() Pass)

// Register adds a pass factory to the catalog, keyed by the pass name.
// It panics on duplicate names; it is meant to be called from init.
func Register(factory func() Pass) {
	name := factory().Name()
	if _, dup := passFactories[name]; dup {
		panic("transforms: Register called twice for pass " + name)
	}
	passFactories[name] = factory
}

// New instantiates a registered pass by name.
func New(name string) (Pass, error) {
	factory, ok := passFactories[name]
	if !ok {
		return nil, errors.Errorf("no pass registered with name %q", name)
	}
	return factory(), nil
}

// Names returns the registered pass names, sorted.
func Names() []string {
	names := make([]string, 0, len(passFactories))
	for name := range passFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
