package lang

import (
	"strconv"
	"sync"
)

// Gensym generates names that are unique per prefix, in the form
// "<prefix><n>" with n counting from 0 separately for each prefix.
// The zero value is ready to use and safe for concurrent use.
type Gensym struct {
	mu    sync.Mutex
	count map[string]int
}

// Next returns the next name for prefix.
func (g *Gensym) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == nil {
		g.count = make(map[string]int)
	}

	n := g.count[prefix]
	g.count[prefix] = n + 1

	return prefix + strconv.Itoa(n)
}

// Reset forgets all counters.
func (g *Gensym) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count = nil
}
