package template

import (
	"errors"
	"sync/atomic"
)

// ErrStale is returned for a resolution that a newer request superseded.
var ErrStale = errors.New("template resolution superseded")

// Generations tags asynchronous requests so that only the newest result is
// applied. The zero value is ready to use and safe for concurrent use.
type Generations struct {
	n atomic.Uint64
}

// Next starts a new request and returns its tag. Every earlier tag becomes stale.
func (g *Generations) Next() uint64 {
	return g.n.Add(1)
}

// Current reports whether gen is the newest tag.
func (g *Generations) Current(gen uint64) bool {
	return g.n.Load() == gen
}

// Check returns ErrStale unless gen is the newest tag.
func (g *Generations) Check(gen uint64) error {
	if !g.Current(gen) {
		return ErrStale
	}
	return nil
}
