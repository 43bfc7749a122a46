package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, 0, c.Current(), "new clock should start at 0")
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()

	assert.Equal(t, 1, c.Advance())
	assert.Equal(t, 2, c.Advance())
	assert.Equal(t, 2, c.Current())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				c.Advance()
				_ = c.Current()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*callsPerGoroutine, c.Current())
}
