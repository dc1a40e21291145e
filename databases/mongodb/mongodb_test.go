//nolint:testpackage
package mongodb

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/rlch/mongols"
)

func TestDataSource_Registration(t *testing.T) {
	t.Parallel()

	assert.True(t, slices.Contains(mongols.RegisteredDataSources(), Name), "mongodb data source not registered")
}

func TestNew_MissingURI(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), mongols.DataSourceConfig{})
	require.ErrorIs(t, err, ErrMissingURI)

	_, err = mongols.OpenDataSource(context.Background(), Name, mongols.DataSourceConfig{})
	require.ErrorIs(t, err, ErrMissingURI)
}

func TestFieldNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		docs []bson.D
		want []string
	}{
		{
			name: "empty collection",
			want: []string{},
		},
		{
			name: "single document keeps order",
			docs: []bson.D{{{Key: "_id", Value: 1}, {Key: "item", Value: "abc"}, {Key: "price", Value: 10}}},
			want: []string{"_id", "item", "price"},
		},
		{
			name: "union across documents",
			docs: []bson.D{
				{{Key: "_id", Value: 1}, {Key: "item", Value: "abc"}},
				{{Key: "_id", Value: 2}, {Key: "qty", Value: 5}, {Key: "item", Value: "xyz"}},
			},
			want: []string{"_id", "item", "qty"},
		},
		{
			name: "nested documents contribute top-level keys only",
			docs: []bson.D{{{Key: "address", Value: bson.D{{Key: "city", Value: "Berlin"}}}}},
			want: []string{"address"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tt.want, fieldNames(tt.docs)); diff != "" {
				t.Errorf("fieldNames() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStreamProcessorNames(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(bson.D{
		{Key: "ok", Value: 1},
		{Key: "streamProcessors", Value: bson.A{
			bson.D{{Key: "name", Value: "solar"}, {Key: "state", Value: "STARTED"}},
			bson.D{{Key: "name", Value: "kafka"}},
		}},
	})
	require.NoError(t, err)

	names, err := streamProcessorNames(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka", "solar"}, names)

	raw, err = bson.Marshal(bson.D{{Key: "ok", Value: 1}})
	require.NoError(t, err)

	names, err = streamProcessorNames(raw)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDataSource_Integration(t *testing.T) {
	uri := os.Getenv("MONGOLS_TEST_URI")
	if uri == "" {
		t.Skip("MONGOLS_TEST_URI not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ds, err := New(ctx, mongols.DataSourceConfig{URI: uri, SampleSize: 5})
	require.NoError(t, err)

	defer func() { _ = ds.Close(ctx) }()

	coll := ds.client.Database("mongols_test").Collection("items")
	_, err = coll.InsertOne(ctx, bson.D{{Key: "item", Value: "abc"}, {Key: "qty", Value: 1}})
	require.NoError(t, err)

	defer func() { _ = coll.Database().Drop(ctx) }()

	dbs, err := ds.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, dbs, "mongols_test")

	colls, err := ds.ListCollections(ctx, "mongols_test")
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, colls)

	fields, err := ds.SampleSchemaFields(ctx, "mongols_test", "items")
	require.NoError(t, err)
	assert.Equal(t, []string{"_id", "item", "qty"}, fields)

	_, err = ds.ListStreamProcessors(ctx)
	require.NoError(t, err)
}
