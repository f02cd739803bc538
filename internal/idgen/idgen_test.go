package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	id := For("office")
	assert.True(t, strings.HasPrefix(id, "office/"))
	assert.NotEqual(t, id, For("office"))

	original := NewFunc
	NewFunc = func() string { return "fixed" }
	defer func() { NewFunc = original }()
	assert.Equal(t, "poll/fixed", For("poll"))
	assert.Equal(t, "fixed", For(""))
}
