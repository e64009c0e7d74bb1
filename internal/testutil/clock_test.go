package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_Frozen(t *testing.T) {
	c := NewFixedClock()
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch, c.Now(), "clock must not move on its own")
}

func TestFixedClock_Advance(t *testing.T) {
	c := NewFixedClock()
	c.Advance(90 * time.Second)
	assert.Equal(t, Epoch.Add(90*time.Second), c.Now())

	later := Epoch.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "match-0001", g.NewID())
	assert.Equal(t, "match-0002", g.NewID())

	g.Reset()
	assert.Equal(t, "match-0001", g.NewID())

	p := NewSequentialIDs("player")
	assert.Equal(t, "player-0001", p.NewID())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	g := NewSequentialIDs("m")
	const goroutines = 10
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := g.NewID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}
