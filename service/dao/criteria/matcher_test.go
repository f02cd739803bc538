package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/stepflow/service/dao"
)

func TestFilterInstance(t *testing.T) {
	testCases := []struct {
		name       string
		state      string
		kind       string
		parameters []*dao.Parameter
		expect     bool
	}{
		{name: "no filters", state: "running", kind: "poll", expect: true},
		{name: "state match", state: "running", kind: "poll", parameters: []*dao.Parameter{dao.NewParameter("State", "running")}, expect: true},
		{name: "state mismatch", state: "failed", kind: "poll", parameters: []*dao.Parameter{dao.NewParameter("State", "running")}, expect: false},
		{name: "state in list", state: "pending", kind: "office", parameters: []*dao.Parameter{dao.NewParameter("State", "pending", "running")}, expect: true},
		{name: "state and kind", state: "pending", kind: "office", parameters: []*dao.Parameter{dao.NewParameter("State", "pending", "running"), dao.NewParameter("Kind", "poll")}, expect: false},
		{name: "unknown field ignored", state: "failed", kind: "poll", parameters: []*dao.Parameter{dao.NewParameter("Owner", "x")}, expect: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, FilterInstance(tc.state, tc.kind, tc.parameters))
		})
	}
}
