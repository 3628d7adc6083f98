package renderings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedCompiler(t *testing.T) {
	c := NewCachedCompiler(Compiler{}, 2)

	first := c.Compile("Yerusalem\nSalem")
	second := c.Compile("Yerusalem\nSalem")
	require.Len(t, first, 2)
	assert.Same(t, first[0], second[0])
	assert.Equal(t, 1, c.Len())

	c.Compile("a")
	c.Compile("b")
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCachedCompilerMatchesCompile(t *testing.T) {
	c := NewCachedCompiler(Compiler{}, 0)
	for _, r := range []string{"", "Yerusalem*", "(@X)\nY", "a || b (c"} {
		assert.Equal(t, Compile(r).Sources(), c.Compile(r).Sources(), r)
	}
}

func TestCachedCompilerConcurrent(t *testing.T) {
	c := NewCachedCompiler(Compiler{}, 8)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.Compile("Yerusalem*").MatchAny("Yerusalemu"))
		}()
	}
	wg.Wait()
}
