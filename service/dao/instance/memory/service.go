package memory

import (
	"github.com/viant/stepflow/model/instance"
	"github.com/viant/stepflow/service/dao"
	"github.com/viant/stepflow/service/dao/criteria"
	"github.com/viant/stepflow/service/dao/store"
)

// Service is an in-memory, thread-safe instance store.  Save and Load work
// with copies, so the runner and status readers never share a record.
type Service struct {
	*store.MemoryStore[string, instance.Instance]
}

var _ dao.Service[string, instance.Instance] = (*Service)(nil)

func key(i *instance.Instance) string { return i.ID }

func filter(i *instance.Instance, parameters []*dao.Parameter) bool {
	return criteria.FilterInstance(string(i.State), i.Kind, parameters)
}

func clone(i *instance.Instance) instance.Instance { return *i.Clone() }

// New creates an in-memory instance store.
func New() *Service {
	return &Service{MemoryStore: store.NewMemoryStore[string, instance.Instance](key, filter).WithClone(clone)}
}
