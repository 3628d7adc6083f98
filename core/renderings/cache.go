package renderings

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// DefaultCacheSize is the number of renderings strings a CachedCompiler keeps.
const DefaultCacheSize = 1024

// CachedCompiler memoizes Compile. Keys are BLAKE3 digests of the renderings
// text, so long renderings do not stay resident as map keys. Safe for
// concurrent use.
type CachedCompiler struct {
	compiler Compiler
	patterns *lru.Cache[[32]byte, Patterns]
}

// NewCachedCompiler wraps c with an LRU of the given size. A size below one
// uses DefaultCacheSize.
func NewCachedCompiler(c Compiler, size int) *CachedCompiler {
	if size < 1 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[[32]byte, Patterns](size)
	return &CachedCompiler{compiler: c, patterns: cache}
}

// Compile returns the patterns for renderings, compiling on a cache miss.
func (c *CachedCompiler) Compile(renderings string) Patterns {
	key := blake3.Sum256([]byte(renderings))
	if ps, ok := c.patterns.Get(key); ok {
		return ps
	}
	ps := c.compiler.Compile(renderings)
	c.patterns.Add(key, ps)
	return ps
}

// Len returns the number of cached renderings strings.
func (c *CachedCompiler) Len() int {
	return c.patterns.Len()
}

// Purge empties the cache.
func (c *CachedCompiler) Purge() {
	c.patterns.Purge()
}
