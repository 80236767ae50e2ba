package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCacheGetOrLoad(t *testing.T) {
	c := NewResultCache[string](time.Minute)
	key := CacheKey("abc", "Tender Bond Guarantee")
	loads := 0
	load := func() (string, bool, error) {
		loads++
		return "fields", true, nil
	}

	v, hit, err := c.GetOrLoad(key, load)
	require.NoError(t, err)
	assert.Equal(t, "fields", v)
	assert.False(t, hit)

	v, hit, err = c.GetOrLoad(key, load)
	require.NoError(t, err)
	assert.Equal(t, "fields", v)
	assert.True(t, hit)
	assert.Equal(t, 1, loads)
}

func TestResultCacheDoesNotStoreErrorsOrUncacheable(t *testing.T) {
	c := NewResultCache[int](time.Minute)

	_, _, err := c.GetOrLoad("k", func() (int, bool, error) { return 0, true, errors.New("model down") })
	assert.Error(t, err)

	v, hit, err := c.GetOrLoad("k", func() (int, bool, error) { return 7, false, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, hit)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResultCacheExpires(t *testing.T) {
	c := NewResultCache[string](time.Minute)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, _, err := c.GetOrLoad("k", func() (string, bool, error) { return "v", true, nil })
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestResultCacheInvalidateAndClear(t *testing.T) {
	c := NewResultCache[string](0)
	for _, k := range []string{"a", "b"} {
		_, _, err := c.GetOrLoad(k, func() (string, bool, error) { return k, true, nil })
		require.NoError(t, err)
	}

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestResultCacheConcurrentLoadsOnce(t *testing.T) {
	c := NewResultCache[int](time.Minute)
	var mu sync.Mutex
	loads := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrLoad("same", func() (int, bool, error) {
				mu.Lock()
				loads++
				mu.Unlock()
				return 1, true, nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, loads)
}

func TestResultCacheLoadDoesNotBlockOtherKeys(t *testing.T) {
	c := NewResultCache[string](time.Minute)
	_, _, err := c.GetOrLoad("ready", func() (string, bool, error) { return "cached", true, nil })
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = c.GetOrLoad("slow", func() (string, bool, error) {
			close(started)
			<-release
			return "slow", true, nil
		})
	}()
	<-started

	// A long load of one key leaves reads of other keys free.
	got := make(chan string, 1)
	go func() {
		v, _ := c.Get("ready")
		got <- v
	}()
	select {
	case v := <-got:
		assert.Equal(t, "cached", v)
	case <-time.After(time.Second):
		t.Fatal("Get blocked behind an unrelated load")
	}

	close(release)
	<-done
	v, ok := c.Get("slow")
	assert.True(t, ok)
	assert.Equal(t, "slow", v)
}

func TestResultCacheWaitersShareOneLoad(t *testing.T) {
	c := NewResultCache[int](time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	type result struct {
		v   int
		hit bool
	}
	leader := make(chan result, 1)
	go func() {
		v, hit, _ := c.GetOrLoad("k", func() (int, bool, error) {
			close(started)
			<-release
			return 7, true, nil
		})
		leader <- result{v, hit}
	}()
	<-started

	waiter := make(chan result, 1)
	go func() {
		v, hit, _ := c.GetOrLoad("k", func() (int, bool, error) {
			t.Error("second load for the same key")
			return 0, true, nil
		})
		waiter <- result{v, hit}
	}()
	// give the waiter time to join the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.Equal(t, result{7, false}, <-leader)
	assert.Equal(t, result{7, true}, <-waiter)
}
