package criteria

import (
	"github.com/viant/stepflow/service/dao"
)

// Match reports whether the named field value satisfies every parameter
// filtering that field.  Parameters naming other fields are ignored.
func Match(field, value string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != field {
			continue
		}
		switch actual := parameter.Value.(type) {
		case string:
			if value != actual {
				return false
			}
		case []string:
			matched := false
			for _, candidate := range actual {
				if value == candidate {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

// FilterInstance applies "State" and "Kind" filters.
func FilterInstance(state, kind string, parameters []*dao.Parameter) bool {
	return Match("State", state, parameters) && Match("Kind", kind, parameters)
}
