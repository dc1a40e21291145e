// Package session holds the per-connection name caches that feed completion.
package session

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store identifies one of the four caches.
type Store string

// Stores.
const (
	Databases        Store = "databases"
	Collections      Store = "collections"
	Fields           Store = "fields"
	StreamProcessors Store = "streamProcessors"
)

// AllStores lists every store.
var AllStores = []Store{Databases, Collections, Fields, StreamProcessors}

// Scope selects stores for a scoped clear.
type Scope struct {
	Databases        bool `json:"databases,omitempty"`
	Collections      bool `json:"collections,omitempty"`
	Fields           bool `json:"fields,omitempty"`
	StreamProcessors bool `json:"streamProcessors,omitempty"`
}

// ScopeAll selects every store.
var ScopeAll = Scope{Databases: true, Collections: true, Fields: true, StreamProcessors: true}

func (s Scope) stores() []Store {
	var out []Store

	if s.Databases {
		out = append(out, Databases)
	}

	if s.Collections {
		out = append(out, Collections)
	}

	if s.Fields {
		out = append(out, Fields)
	}

	if s.StreamProcessors {
		out = append(out, StreamProcessors)
	}

	return out
}

// FetchFunc retrieves names for a cache miss.
type FetchFunc func(ctx context.Context) ([]string, error)

// Cache is the session cache. Databases and stream processors are keyed by
// the empty string, collections by database name and fields by namespace.
// Writes for one key overwrite; there is no merging.
type Cache struct {
	logger *zap.Logger

	mu     sync.RWMutex
	epoch  uint64
	stores map[Store]map[string][]string

	// gens counts clears per store. A fetch is written back only if its
	// store was not cleared while it ran.
	gens map[Store]uint64

	group singleflight.Group
}

// New creates an empty cache. A nil logger disables logging.
func New(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{logger: logger}
	c.reset(AllStores)

	return c
}

func (c *Cache) reset(stores []Store) {
	if c.stores == nil {
		c.stores = make(map[Store]map[string][]string, len(AllStores))
		c.gens = make(map[Store]uint64, len(AllStores))
	}

	for _, s := range stores {
		c.stores[s] = make(map[string][]string)
		c.gens[s]++
	}
}

// Get returns the cached names for key in store.
func (c *Cache) Get(store Store, key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names, ok := c.stores[store][key]

	return slices.Clone(names), ok
}

// Set stores names for key, replacing any previous value.
func (c *Cache) Set(store Store, key string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(store, key, names)
}

func (c *Cache) set(store Store, key string, names []string) {
	m, ok := c.stores[store]
	if !ok {
		return
	}

	if names == nil {
		names = []string{}
	}

	m[key] = slices.Clone(names)
}

// Delete removes a single key from store.
func (c *Cache) Delete(store Store, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.stores[store], key)
}

// Clear empties the stores selected by scope and leaves the rest untouched.
func (c *Cache) Clear(scope Scope) {
	stores := scope.stores()
	if len(stores) == 0 {
		return
	}

	c.mu.Lock()
	c.reset(stores)
	c.mu.Unlock()

	c.logger.Debug("cleared session cache", zap.Any("scope", scope))
}

// Switch empties every store in one step and starts a new epoch. Fetches
// started before the switch still complete for their callers but are not
// written back.
func (c *Cache) Switch() uint64 {
	c.mu.Lock()
	c.reset(AllStores)
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.logger.Debug("session cache switched", zap.Uint64("epoch", epoch))

	return epoch
}

// Epoch returns the current connection epoch.
func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.epoch
}

// Load returns the cached names for key, fetching them on a miss.
// Concurrent misses for the same key share one fetch. Failed fetches are
// returned to every waiter and nothing is cached.
func (c *Cache) Load(ctx context.Context, store Store, key string, fetch FetchFunc) ([]string, error) {
	return c.LoadAt(ctx, c.Epoch(), store, key, fetch)
}

// LoadAt is Load for a caller that captured epoch together with the data
// source fetch talks to. The result is only stored while epoch is current
// and store has not been cleared since the fetch started.
func (c *Cache) LoadAt(ctx context.Context, epoch uint64, store Store, key string, fetch FetchFunc) ([]string, error) {
	c.mu.RLock()
	names, cached := c.stores[store][key]
	current := epoch == c.epoch
	gen := c.gens[store]
	c.mu.RUnlock()

	if current && cached {
		return slices.Clone(names), nil
	}

	flight := string(store) + "\x00" + key + "\x00" +
		strconv.FormatUint(epoch, 10) + "\x00" + strconv.FormatUint(gen, 10)

	// A waiter that gives up only stops waiting; the shared fetch runs on.
	fetchCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(flight, func() (any, error) {
		c.logger.Debug("fetching names", zap.String("store", string(store)), zap.String("key", key))

		names, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.epoch == epoch && c.gens[store] == gen {
			c.set(store, key, names)
		}
		c.mu.Unlock()

		return names, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		names, _ := res.Val.([]string)

		return slices.Clone(names), nil
	}
}
