// Package snapshot provides a mongols DataSource backed by a YAML catalog
// snapshot, for completion without a live connection.
//
// A snapshot is produced from a live deployment with:
//
//	mongols snapshot --uri mongodb://localhost:27017 --out .mongols-catalog.yaml
//
// and used by pointing the connection at it:
//
//	connection:
//	  dataSource: snapshot
//	  uri: .mongols-catalog.yaml
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rlch/mongols"
)

// Name is the registered data source name.
const Name = "snapshot"

// scheme is the optional URI prefix for snapshot paths.
const scheme = "snapshot://"

//nolint:gochecknoinits // Data source self-registration pattern
func init() {
	mongols.RegisterDataSource(Name, func(_ context.Context, cfg mongols.DataSourceConfig) (mongols.DataSource, error) {
		return Open(cfg.URI)
	})
}

// Snapshot is the catalog of a deployment at one point in time.
type Snapshot struct {
	// Databases maps database name to its collections.
	Databases map[string]*Database `yaml:"databases"`

	// StreamProcessors lists stream processor names.
	StreamProcessors []string `yaml:"streamProcessors,omitempty"`
}

// Database is one database of a snapshot.
type Database struct {
	// Collections maps collection name to its sampled fields.
	Collections map[string]*Collection `yaml:"collections"`
}

// Collection is one collection of a snapshot.
type Collection struct {
	// Fields are sampled top-level field names, in sample order.
	Fields []string `yaml:"fields,omitempty"`
}

// New creates an empty Snapshot.
func New() *Snapshot {
	return &Snapshot{Databases: make(map[string]*Database)}
}

// Load reads a snapshot file. The path may carry a snapshot:// prefix.
func Load(path string) (*Snapshot, error) {
	cleanPath := filepath.Clean(strings.TrimPrefix(path, scheme))

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading %s: %w", cleanPath, err)
	}

	return Parse(data)
}

// Parse decodes a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	s := New()

	err := yaml.Unmarshal(data, s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parsing: %w", err)
	}

	if s.Databases == nil {
		s.Databases = make(map[string]*Database)
	}

	return s, nil
}

// Write writes s as YAML. Map keys are emitted in sorted order, so equal
// snapshots produce identical files.
func Write(w io.Writer, s *Snapshot) (err error) {
	if _, err := fmt.Fprintln(w, "# mongols catalog snapshot"); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	defer func() {
		if cerr := encoder.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return encoder.Encode(s)
}

// Capture walks src and records every database, collection, sampled field
// list and stream processor.
func Capture(ctx context.Context, src mongols.DataSource) (*Snapshot, error) {
	s := New()

	databases, err := src.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}

	for _, dbName := range databases {
		collections, err := src.ListCollections(ctx, dbName)
		if err != nil {
			return nil, err
		}

		db := &Database{Collections: make(map[string]*Collection, len(collections))}

		for _, collName := range collections {
			fields, err := src.SampleSchemaFields(ctx, dbName, collName)
			if err != nil {
				return nil, err
			}

			db.Collections[collName] = &Collection{Fields: fields}
		}

		s.Databases[dbName] = db
	}

	processors, err := src.ListStreamProcessors(ctx)
	if err != nil {
		return nil, err
	}

	s.StreamProcessors = processors

	return s, nil
}

// DataSource serves a Snapshot through the mongols.DataSource contract.
type DataSource struct {
	snapshot *Snapshot
}

// Open loads the snapshot at path as a data source.
func Open(path string) (*DataSource, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot: %w", mongols.ErrNotConnected)
	}

	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	return NewDataSource(s), nil
}

// NewDataSource serves an in-memory snapshot.
func NewDataSource(s *Snapshot) *DataSource {
	return &DataSource{snapshot: s}
}

// Name returns the data source identifier.
func (d *DataSource) Name() string {
	return Name
}

// ListDatabases returns the snapshot's database names.
func (d *DataSource) ListDatabases(context.Context) ([]string, error) {
	return sortedKeys(d.snapshot.Databases), nil
}

// ListCollections returns the collections of a database. Unknown
// databases have none.
func (d *DataSource) ListCollections(_ context.Context, database string) ([]string, error) {
	db, ok := d.snapshot.Databases[database]
	if !ok || db == nil {
		return []string{}, nil
	}

	return sortedKeys(db.Collections), nil
}

// SampleSchemaFields returns the recorded field names of a collection.
func (d *DataSource) SampleSchemaFields(_ context.Context, database, collection string) ([]string, error) {
	db, ok := d.snapshot.Databases[database]
	if !ok || db == nil {
		return []string{}, nil
	}

	coll, ok := db.Collections[collection]
	if !ok || coll == nil {
		return []string{}, nil
	}

	return append([]string{}, coll.Fields...), nil
}

// ListStreamProcessors returns the recorded stream processor names.
func (d *DataSource) ListStreamProcessors(context.Context) ([]string, error) {
	return append([]string{}, d.snapshot.StreamProcessors...), nil
}

// Close is a no-op.
func (d *DataSource) Close(context.Context) error {
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Compile-time interface check.
var _ mongols.DataSource = (*DataSource)(nil)
