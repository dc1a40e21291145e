package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/mongols/session"
)

func fill(c *session.Cache) {
	c.Set(session.Databases, "", []string{"berlin", "test"})
	c.Set(session.Collections, "berlin", []string{"cocktailbars"})
	c.Set(session.Fields, "test.collection", []string{"JavaScript"})
	c.Set(session.StreamProcessors, "", []string{"solar"})
}

func TestCache_GetSet(t *testing.T) {
	t.Parallel()

	c := session.New(nil)

	_, ok := c.Get(session.Collections, "berlin")
	assert.False(t, ok)

	c.Set(session.Collections, "berlin", []string{"a", "b"})
	got, ok := c.Get(session.Collections, "berlin")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	c.Set(session.Collections, "berlin", []string{"c"})
	got, _ = c.Get(session.Collections, "berlin")
	assert.Equal(t, []string{"c"}, got, "last write wins")

	got[0] = "mutated"
	again, _ := c.Get(session.Collections, "berlin")
	assert.Equal(t, []string{"c"}, again)
}

func TestCache_SetNilIsCachedEmpty(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	c.Set(session.Databases, "", nil)

	got, ok := c.Get(session.Databases, "")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		scope   session.Scope
		cleared []session.Store
	}{
		{name: "databases only", scope: session.Scope{Databases: true}, cleared: []session.Store{session.Databases}},
		{name: "fields and collections", scope: session.Scope{Fields: true, Collections: true}, cleared: []session.Store{session.Fields, session.Collections}},
		{name: "nothing", scope: session.Scope{}},
		{name: "all", scope: session.ScopeAll, cleared: session.AllStores},
	}

	keys := map[session.Store]string{
		session.Databases:        "",
		session.Collections:      "berlin",
		session.Fields:           "test.collection",
		session.StreamProcessors: "",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := session.New(nil)
			fill(c)
			c.Clear(tt.scope)

			for _, store := range session.AllStores {
				_, ok := c.Get(store, keys[store])
				assert.Equal(t, !contains(tt.cleared, store), ok, "store %s", store)
			}
		})
	}
}

func contains(stores []session.Store, s session.Store) bool {
	for _, x := range stores {
		if x == s {
			return true
		}
	}

	return false
}

func TestCache_Delete(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	c.Set(session.Collections, "a", []string{"x"})
	c.Set(session.Collections, "b", []string{"y"})
	c.Delete(session.Collections, "a")

	_, ok := c.Get(session.Collections, "a")
	assert.False(t, ok)

	_, ok = c.Get(session.Collections, "b")
	assert.True(t, ok)
}

func TestCache_Switch(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	fill(c)

	before := c.Epoch()
	after := c.Switch()

	assert.Equal(t, before+1, after)
	assert.Equal(t, after, c.Epoch())

	for _, store := range session.AllStores {
		for _, key := range []string{"", "berlin", "test.collection"} {
			_, ok := c.Get(store, key)
			assert.False(t, ok, "store %s key %q survived switch", store, key)
		}
	}
}

func TestCache_LoadCachesResult(t *testing.T) {
	t.Parallel()

	c := session.New(nil)

	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)

		return []string{"orders"}, nil
	}

	for range 3 {
		got, err := c.Load(context.Background(), session.Collections, "shop", fetch)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders"}, got)
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_LoadDeduplicatesConcurrentMisses(t *testing.T) {
	t.Parallel()

	c := session.New(nil)

	var calls atomic.Int32

	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}

		<-release

		return []string{"a", "b"}, nil
	}

	var wg sync.WaitGroup

	results := make([][]string, 8)

	wg.Add(1)

	go func() {
		defer wg.Done()

		results[0], _ = c.Load(context.Background(), session.Fields, "db.coll", fetch)
	}()

	<-started

	for i := 1; i < len(results); i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], _ = c.Load(context.Background(), session.Fields, "db.coll", fetch)
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, r := range results {
		assert.Equal(t, []string{"a", "b"}, r)
	}
}

func TestCache_LoadFailureIsNotCached(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	boom := errors.New("boom")

	_, err := c.Load(context.Background(), session.Databases, "", func(context.Context) ([]string, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := c.Get(session.Databases, "")
	assert.False(t, ok)

	got, err := c.Load(context.Background(), session.Databases, "", func(context.Context) ([]string, error) {
		return []string{"admin"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, got)
}

func TestCache_LoadAcrossSwitchIsNotStored(t *testing.T) {
	t.Parallel()

	c := session.New(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []string)

	go func() {
		names, _ := c.Load(context.Background(), session.Databases, "", func(context.Context) ([]string, error) {
			close(started)
			<-release

			return []string{"stale"}, nil
		})
		done <- names
	}()

	<-started
	c.Switch()
	close(release)

	assert.Equal(t, []string{"stale"}, <-done)

	_, ok := c.Get(session.Databases, "")
	assert.False(t, ok, "result from previous connection must not be cached")
}

func TestCache_LoadAcrossScopedClearIsNotStored(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	c.Set(session.Databases, "", []string{"berlin"})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []string)

	go func() {
		names, _ := c.Load(context.Background(), session.Collections, "berlin", func(context.Context) ([]string, error) {
			close(started)
			<-release

			return []string{"cocktailbars"}, nil
		})
		done <- names
	}()

	<-started
	c.Clear(session.Scope{Collections: true})
	close(release)

	assert.Equal(t, []string{"cocktailbars"}, <-done)

	_, ok := c.Get(session.Collections, "berlin")
	assert.False(t, ok, "fetch started before the clear must not be cached")

	names, ok := c.Get(session.Databases, "")
	require.True(t, ok, "other stores are untouched")
	assert.Equal(t, []string{"berlin"}, names)

	names, err := c.Load(context.Background(), session.Collections, "berlin", func(context.Context) ([]string, error) {
		return []string{"fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, names)

	names, ok = c.Get(session.Collections, "berlin")
	require.True(t, ok, "fetch started after the clear is cached")
	assert.Equal(t, []string{"fresh"}, names)
}

func TestCache_LoadHonoursCallerContext(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Load(ctx, session.Collections, "slow", func(context.Context) ([]string, error) {
		<-release

		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCache_LoadAtStaleEpochBypassesCache(t *testing.T) {
	t.Parallel()

	c := session.New(nil)
	stale := c.Epoch()
	c.Switch()
	c.Set(session.Databases, "", []string{"current"})

	got, err := c.LoadAt(context.Background(), stale, session.Databases, "", func(context.Context) ([]string, error) {
		return []string{"old"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, got)

	cached, _ := c.Get(session.Databases, "")
	assert.Equal(t, []string{"current"}, cached)
}
