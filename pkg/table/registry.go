package table

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/logger"
)

// AggFunc reduces one column of a group partition to a scalar. A nil
// result is the missing marker. Returning an error aborts the whole
// aggregation call with no partial output.
type AggFunc func(c *Column) (interface{}, error)

// TableOp is a named table operator: a free function taking the table
// as its explicit first argument plus a bag of operator arguments.
// Pipelines dispatch steps through the operator registry by name.
type TableOp func(t *Table, args map[string]interface{}) (*Table, error)

// Registry holds named aggregators and table operators. Registration is
// write-once: a name can never be replaced, and there is no removal, so
// after startup the registry is read-only.
type Registry struct {
	mu          sync.RWMutex
	aggregators map[string]AggFunc
	ops         map[string]TableOp
	logger      *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		aggregators: make(map[string]AggFunc),
		ops:         make(map[string]TableOp),
		logger:      logger.Get().With(zap.String("component", "table_registry")),
	}
}

// RegisterAggregator registers a named aggregator. Registering a name
// twice is a ConfigError.
func (r *Registry) RegisterAggregator(name string, fn AggFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.aggregators[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "aggregator %s already registered", name)
	}
	r.aggregators[name] = fn
	return nil
}

// Aggregator looks up a named aggregator.
func (r *Registry) Aggregator(name string) (AggFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.aggregators[name]
	return fn, ok
}

// Aggregators returns the registered aggregator names, sorted.
func (r *Registry) Aggregators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.aggregators))
	for name := range r.aggregators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterOp registers a named table operator. Registering a name twice
// is a ConfigError.
func (r *Registry) RegisterOp(name string, op TableOp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ops[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "operator %s already registered", name)
	}
	r.ops[name] = op
	r.logger.Debug("table operator registered", zap.String("name", name))
	return nil
}

// Op looks up a named table operator.
func (r *Registry) Op(name string) (TableOp, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Ops returns the registered operator names, sorted.
func (r *Registry) Ops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global registry functions

// RegisterAggregator registers a named aggregator in the global registry.
func RegisterAggregator(name string, fn AggFunc) error {
	return globalRegistry.RegisterAggregator(name, fn)
}

// LookupAggregator looks up a named aggregator in the global registry.
func LookupAggregator(name string) (AggFunc, bool) {
	return globalRegistry.Aggregator(name)
}

// Aggregators returns the global registry's aggregator names.
func Aggregators() []string {
	return globalRegistry.Aggregators()
}

// RegisterOp registers a named table operator in the global registry.
func RegisterOp(name string, op TableOp) error {
	return globalRegistry.RegisterOp(name, op)
}

// LookupOp looks up a named table operator in the global registry.
func LookupOp(name string) (TableOp, bool) {
	return globalRegistry.Op(name)
}

// Ops returns the global registry's operator names.
func Ops() []string {
	return globalRegistry.Ops()
}

// mustRegister panics on registration failure; used only for the
// built-ins wired in at init time, where a duplicate is a programmer
// error.
func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
