package mongols

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DataSource supplies the name lists the completion engine caches.
// Every method may fail; callers treat failures as empty lists.
type DataSource interface {
	// Name returns the data source identifier (e.g., "mongodb").
	Name() string

	// ListDatabases returns the databases visible to the connection.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListCollections returns the collections of a database.
	ListCollections(ctx context.Context, database string) ([]string, error)

	// SampleSchemaFields returns top-level field names sampled from a collection.
	SampleSchemaFields(ctx context.Context, database, collection string) ([]string, error)

	// ListStreamProcessors returns stream processor names. Deployments
	// without stream processing return an empty list.
	ListStreamProcessors(ctx context.Context) ([]string, error)

	// Close releases any resources held by the data source.
	Close(ctx context.Context) error
}

// DataSourceFactory creates a DataSource from connection configuration.
type DataSourceFactory func(ctx context.Context, cfg DataSourceConfig) (DataSource, error)

// DataSourceConfig holds connection settings for a data source.
type DataSourceConfig struct {
	URI string

	// SampleSize is the number of documents sampled for field names.
	SampleSize int64
}

var (
	dataSourcesMu sync.RWMutex
	dataSources   = make(map[string]DataSourceFactory)
)

// RegisterDataSource registers a data source factory by name.
func RegisterDataSource(name string, factory DataSourceFactory) {
	dataSourcesMu.Lock()
	defer dataSourcesMu.Unlock()

	dataSources[name] = factory
}

// OpenDataSource creates a data source instance by name.
func OpenDataSource(ctx context.Context, name string, cfg DataSourceConfig) (DataSource, error) {
	dataSourcesMu.RLock()
	factory, ok := dataSources[name]
	dataSourcesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataSource, name)
	}

	return factory(ctx, cfg)
}

// RegisteredDataSources returns the names of all registered data sources.
func RegisteredDataSources() []string {
	dataSourcesMu.RLock()
	defer dataSourcesMu.RUnlock()

	names := make([]string, 0, len(dataSources))
	for name := range dataSources {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
