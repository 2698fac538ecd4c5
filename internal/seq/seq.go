// Package seq provides a sequence guard for discarding stale asynchronous
// results. Each logical slot (for example "public IP lookup") owns one Guard;
// a handler that resolves after a newer request was issued observes that its
// token is no longer current and drops its result.
package seq

import "sync/atomic"

// Token identifies one issued request within a Guard.
type Token uint64

// Guard hands out monotonically increasing tokens. The zero value is ready
// to use and safe for concurrent access.
type Guard struct {
	latest atomic.Uint64
}

// Issue returns a new token, newer than every previously issued one.
func (g *Guard) Issue() Token {
	return Token(g.latest.Add(1))
}

// Current reports whether no newer token has been issued since t.
func (g *Guard) Current(t Token) bool {
	return uint64(t) == g.latest.Load()
}
