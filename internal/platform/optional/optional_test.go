package optional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	var absent Value[int]
	_, ok := absent.Get()
	assert.False(t, ok)
	assert.Equal(t, 7, absent.OrElse(7))
	assert.False(t, None[string]().IsSet())

	zero := Some(0)
	v, ok := zero.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, zero.OrElse(7))

	var cleared Value[*int] = Some[*int](nil)
	p, ok := cleared.Get()
	assert.True(t, ok)
	assert.Nil(t, p)
}
