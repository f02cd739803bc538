package step

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viant/stepflow/model/instance"
)

// Flow carries the immutable instance parameters and the results of the
// steps completed so far.  Results are kept in their persisted form so a
// replayed flow is indistinguishable from an uninterrupted one.
type Flow struct {
	InstanceID string
	Kind       string
	parameters instance.Parameters
	mux        sync.RWMutex
	results    map[string]json.RawMessage
	order      []string
}

// NewFlow creates a flow for an instance.
func NewFlow(anInstance *instance.Instance) *Flow {
	return &Flow{
		InstanceID: anInstance.ID,
		Kind:       anInstance.Kind,
		parameters: anInstance.Parameters.Clone(),
		results:    make(map[string]json.RawMessage),
	}
}

// Params decodes the instance parameters into dest.
func (f *Flow) Params(dest interface{}) error {
	return f.parameters.Decode(dest)
}

// Parameters returns a copy of the instance parameters.
func (f *Flow) Parameters() instance.Parameters {
	return f.parameters.Clone()
}

// Add appends a completed step result.
func (f *Flow) Add(name string, result json.RawMessage) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if _, ok := f.results[name]; !ok {
		f.order = append(f.order, name)
	}
	f.results[name] = result
}

// Has reports whether the named step completed.
func (f *Flow) Has(name string) bool {
	f.mux.RLock()
	defer f.mux.RUnlock()
	_, ok := f.results[name]
	return ok
}

// Result decodes the named step result into dest.
func (f *Flow) Result(name string, dest interface{}) error {
	f.mux.RLock()
	raw, ok := f.results[name]
	f.mux.RUnlock()
	if !ok {
		return fmt.Errorf("step %q has no result", name)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode step %q result: %w", name, err)
	}
	return nil
}

// Completed returns completed step names in execution order.
func (f *Flow) Completed() []string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return append([]string(nil), f.order...)
}
