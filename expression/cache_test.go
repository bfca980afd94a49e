package expression

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramCache(t *testing.T) {
	pc := NewProgramCache(0)
	a, err := pc.Parse("markup(value, 0.2)")
	require.NoError(t, err)
	b, err := pc.Parse("markup(value, 0.2)")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, pc.Len())

	_, err = pc.Parse("markup(")
	assert.Error(t, err)
	assert.Equal(t, 1, pc.Len())

	pc.Flush()
	assert.Equal(t, 0, pc.Len())
}

func TestProgramCacheConcurrentEvaluate(t *testing.T) {
	pc := NewProgramCache(0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := pc.Evaluate("value * 2", Context{"value": i})
			assert.NoError(t, err)
			assert.Equal(t, Number(i*2), v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, pc.Len())
}
