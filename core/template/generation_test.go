package template

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerations(t *testing.T) {
	var g Generations

	first := g.Next()
	assert.True(t, g.Current(first))
	assert.NoError(t, g.Check(first))

	second := g.Next()
	assert.False(t, g.Current(first))
	assert.ErrorIs(t, g.Check(first), ErrStale)
	assert.NoError(t, g.Check(second))
}

func TestGenerationsConcurrent(t *testing.T) {
	var g Generations
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Next()
		}()
	}
	wg.Wait()
	assert.True(t, g.Current(50))
}
