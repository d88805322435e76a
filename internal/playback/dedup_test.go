package playback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_TryActivateThenDuplicateFails(t *testing.T) {
	d := NewDedup(4)
	require.NoError(t, d.TryActivate(42))
	assert.ErrorIs(t, d.TryActivate(42), ErrDuplicate)
}

// After the first completes (Deactivate), a
// third call for the same id succeeds again.
func TestDedup_DeactivateAllowsReactivation(t *testing.T) {
	d := NewDedup(4)
	require.NoError(t, d.TryActivate(42))
	assert.ErrorIs(t, d.TryActivate(42), ErrDuplicate)

	d.Deactivate(42)
	assert.False(t, d.Active(42))
	assert.NoError(t, d.TryActivate(42))
}

func TestDedup_OverflowReturns503Sentinel(t *testing.T) {
	d := NewDedup(2)
	require.NoError(t, d.TryActivate(1))
	require.NoError(t, d.TryActivate(2))

	err := d.TryActivate(3)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDedup_DeactivateUnknownIDIsNoop(t *testing.T) {
	d := NewDedup(4)
	d.Deactivate(999) // must not panic or release a phantom slot
	require.NoError(t, d.TryActivate(1))
}

func TestDedup_DefaultCapacityIs32(t *testing.T) {
	d := NewDedup(0)
	for i := int64(0); i < 32; i++ {
		require.NoError(t, d.TryActivate(i))
	}
	assert.ErrorIs(t, d.TryActivate(32), ErrOverflow)
}

func TestDedup_ConcurrentActivateOnlyOneWinnerPerID(t *testing.T) {
	d := NewDedup(8)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.TryActivate(7) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
