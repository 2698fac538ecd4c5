package seq

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardZeroValueReady(t *testing.T) {
	var g Guard
	tok := g.Issue()
	assert.True(t, g.Current(tok))
}

func TestStaleTokenRejected(t *testing.T) {
	var g Guard

	first := g.Issue()
	second := g.Issue()

	assert.False(t, g.Current(first), "older token must not be current")
	assert.True(t, g.Current(second))
}

func TestOnlyNewestTokenCurrent(t *testing.T) {
	var g Guard

	tokens := make([]Token, 5)
	for i := range tokens {
		tokens[i] = g.Issue()
	}

	for i := 0; i < len(tokens)-1; i++ {
		assert.False(t, g.Current(tokens[i]))
	}
	assert.True(t, g.Current(tokens[len(tokens)-1]))
}

func TestConcurrentIssue(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup

	const n = 100
	tokens := make([]Token, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i] = g.Issue()
		}(i)
	}
	wg.Wait()

	seen := make(map[Token]struct{}, n)
	current := 0
	for _, tok := range tokens {
		_, dup := seen[tok]
		assert.False(t, dup, "tokens must be unique")
		seen[tok] = struct{}{}
		if g.Current(tok) {
			current++
		}
	}
	assert.Equal(t, 1, current, "exactly one token is current")
}
