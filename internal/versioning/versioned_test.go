package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAreSiblings(t *testing.T) {
	a := NewVersioned("v1", New().Increment(1))
	b := NewVersioned("v2", New().Increment(2))
	assert.True(t, AreSiblings(a, b))

	c := NewVersioned("v3", a.Version.Increment(1))
	assert.False(t, AreSiblings(a, c))
}
