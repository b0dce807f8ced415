package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestClock_FrozenUntilAdvanced(t *testing.T) {
	clock := NewClock(epoch)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())

	assert.Equal(t, epoch.Add(time.Millisecond), clock.Advance(time.Millisecond))
	assert.Equal(t, epoch.Add(time.Millisecond), clock.Now())
}

func TestClock_Set(t *testing.T) {
	clock := NewClock(epoch)
	later := epoch.Add(24 * time.Hour)

	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestClock_ConcurrentAdvance(t *testing.T) {
	clock := NewClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(100*time.Millisecond), clock.Now())
}
