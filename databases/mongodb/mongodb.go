// Package mongodb provides a mongols DataSource backed by a live MongoDB
// deployment.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/rlch/mongols"
)

// Name is the registered data source name.
const Name = "mongodb"

// appName identifies mongols connections in server logs and currentOp.
const appName = "mongols"

// codeCommandNotFound is returned by deployments without stream processing.
const codeCommandNotFound = 59

// ErrMissingURI is returned when no connection string is configured.
var ErrMissingURI = errors.New("mongodb: connection URI is required")

//nolint:gochecknoinits // Data source self-registration pattern
func init() {
	mongols.RegisterDataSource(Name, func(ctx context.Context, cfg mongols.DataSourceConfig) (mongols.DataSource, error) {
		return New(ctx, cfg)
	})
}

// DataSource implements mongols.DataSource over the official Go driver.
type DataSource struct {
	client     *mongo.Client
	sampleSize int64
}

// New connects to the deployment at cfg.URI and verifies it is reachable.
func New(ctx context.Context, cfg mongols.DataSourceConfig) (*DataSource, error) {
	if cfg.URI == "" {
		return nil, ErrMissingURI
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetAppName(appName))
	if err != nil {
		return nil, fmt.Errorf("mongodb: failed to create client: %w", err)
	}

	err = client.Ping(ctx, readpref.PrimaryPreferred())
	if err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("mongodb: failed to connect: %w", err)
	}

	sampleSize := cfg.SampleSize
	if sampleSize <= 0 {
		sampleSize = mongols.DefaultSampleSize
	}

	return &DataSource{client: client, sampleSize: sampleSize}, nil
}

// Name returns the data source identifier.
func (d *DataSource) Name() string {
	return Name
}

// ListDatabases returns the database names visible to the connection.
func (d *DataSource) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := d.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: list databases: %w", err)
	}

	sort.Strings(names)

	return names, nil
}

// ListCollections returns the collection and view names of a database.
func (d *DataSource) ListCollections(ctx context.Context, database string) ([]string, error) {
	names, err := d.client.Database(database).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: list collections of %s: %w", database, err)
	}

	sort.Strings(names)

	return names, nil
}

// SampleSchemaFields returns the top-level field names of up to sampleSize
// documents, in order of first appearance.
func (d *DataSource) SampleSchemaFields(ctx context.Context, database, collection string) ([]string, error) {
	cursor, err := d.client.Database(database).Collection(collection).
		Find(ctx, bson.D{}, options.Find().SetLimit(d.sampleSize))
	if err != nil {
		return nil, fmt.Errorf("mongodb: sample %s.%s: %w", database, collection, err)
	}

	var docs []bson.D

	err = cursor.All(ctx, &docs)
	if err != nil {
		return nil, fmt.Errorf("mongodb: sample %s.%s: %w", database, collection, err)
	}

	return fieldNames(docs), nil
}

// ListStreamProcessors returns the stream processors of an Atlas Stream
// Processing instance. Other deployments report none.
func (d *DataSource) ListStreamProcessors(ctx context.Context) ([]string, error) {
	raw, err := d.client.Database("admin").
		RunCommand(ctx, bson.D{{Key: "listStreamProcessors", Value: 1}}).Raw()
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasErrorCode(codeCommandNotFound) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("mongodb: list stream processors: %w", err)
	}

	return streamProcessorNames(raw)
}

// Close disconnects the client.
func (d *DataSource) Close(ctx context.Context) error {
	err := d.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("mongodb: failed to disconnect: %w", err)
	}

	return nil
}

// fieldNames collects the distinct top-level keys of docs.
func fieldNames(docs []bson.D) []string {
	seen := make(map[string]bool)
	names := []string{}

	for _, doc := range docs {
		for _, elem := range doc {
			if seen[elem.Key] {
				continue
			}

			seen[elem.Key] = true
			names = append(names, elem.Key)
		}
	}

	return names
}

type listStreamProcessorsReply struct {
	StreamProcessors []struct {
		Name string `bson:"name"`
	} `bson:"streamProcessors"`
}

func streamProcessorNames(raw bson.Raw) ([]string, error) {
	var reply listStreamProcessorsReply

	err := bson.Unmarshal(raw, &reply)
	if err != nil {
		return nil, fmt.Errorf("mongodb: decode stream processors: %w", err)
	}

	names := make([]string, 0, len(reply.StreamProcessors))
	for _, sp := range reply.StreamProcessors {
		names = append(names, sp.Name)
	}

	sort.Strings(names)

	return names, nil
}

// Compile-time interface check.
var _ mongols.DataSource = (*DataSource)(nil)
