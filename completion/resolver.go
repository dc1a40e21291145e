// Package completion turns a resolved cursor state into completion items,
// filling the session cache from the active data source as needed.
package completion

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rlch/mongols"
	"github.com/rlch/mongols/analysis"
	"github.com/rlch/mongols/session"
	"github.com/rlch/mongols/shellapi"
)

// Resolver produces completion items for playground text.
type Resolver struct {
	visitor *analysis.Visitor
	cache   *session.Cache
	logger  *zap.Logger
	api     *shellapi.Signatures

	catalogs catalogs

	mu   sync.RWMutex
	conn connection
}

// connection is the active data source and the cache epoch it belongs to.
type connection struct {
	source   mongols.DataSource
	database string
	epoch    uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithSignatures replaces the embedded shell API catalogs.
func WithSignatures(api *shellapi.Signatures) Option {
	return func(r *Resolver) {
		r.api = api
	}
}

// WithVisitor sets the visitor used to resolve cursor state.
func WithVisitor(v *analysis.Visitor) Option {
	return func(r *Resolver) {
		r.visitor = v
	}
}

// NewResolver creates a Resolver over cache. It starts disconnected.
func NewResolver(cache *session.Cache, opts ...Option) *Resolver {
	r := &Resolver{cache: cache}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	if r.api == nil {
		r.api = shellapi.Default()
	}

	if r.visitor == nil {
		r.visitor = analysis.NewVisitor(r.logger)
	}

	r.catalogs = newCatalogs(r.api)
	r.conn.epoch = cache.Epoch()

	return r
}

// Connect makes src the active data source and clears every cache store in
// the same step. defaultDatabase is used when no use('...') precedes the
// cursor. A nil src disconnects.
func (r *Resolver) Connect(src mongols.DataSource, defaultDatabase string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	epoch := r.cache.Switch()
	r.conn = connection{source: src, database: defaultDatabase, epoch: epoch}

	if src == nil {
		r.logger.Info("completion disconnected")
	} else {
		r.logger.Info("completion connected",
			zap.String("dataSource", src.Name()),
			zap.String("database", defaultDatabase))
	}
}

// Connected reports whether a data source is active.
func (r *Resolver) Connected() bool {
	return r.connection().source != nil
}

func (r *Resolver) connection() connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conn
}

// Preload fills the database and stream processor stores for the active
// connection. These stores are only populated here.
func (r *Resolver) Preload(ctx context.Context) error {
	conn := r.connection()
	if conn.source == nil {
		return mongols.ErrNotConnected
	}

	_, dbErr := r.cache.LoadAt(ctx, conn.epoch, session.Databases, "", conn.source.ListDatabases)
	if dbErr != nil {
		r.logger.Warn("failed to list databases", zap.Error(dbErr))
	}

	_, spErr := r.cache.LoadAt(ctx, conn.epoch, session.StreamProcessors, "", conn.source.ListStreamProcessors)
	if spErr != nil {
		r.logger.Warn("failed to list stream processors", zap.Error(spErr))
	}

	return errors.Join(dbErr, spErr)
}

// Complete resolves the cursor state at pos and returns its completions.
// It never fails; missing data degrades to fewer items.
func (r *Resolver) Complete(ctx context.Context, text string, pos analysis.Position) []Item {
	prepared := analysis.Prepare(text, pos)
	state := r.visitor.Resolve(ctx, prepared.Text, prepared.Cursor)

	conn := r.connection()
	if state.DatabaseName == "" {
		state.DatabaseName = conn.database
	}

	return r.resolve(ctx, conn, state, lineAt(text, pos.Line), pos)
}

// Resolve returns the completions for an already resolved state. line is
// the editor line holding the cursor at pos.
func (r *Resolver) Resolve(ctx context.Context, state analysis.CompletionState, line string, pos analysis.Position) []Item {
	return r.resolve(ctx, r.connection(), state, line, pos)
}

//nolint:cyclop // One branch per completion position, in priority order.
func (r *Resolver) resolve(
	ctx context.Context,
	conn connection,
	state analysis.CompletionState,
	line string,
	pos analysis.Position,
) []Item {
	db := state.DatabaseName

	if state.IsObjectKey && state.IsStage {
		r.logger.Debug("found stage operators completion")

		return clone(r.catalogs.stages)
	}

	if state.IsObjectKey && db != "" && state.CollectionName != "" {
		if fields, ok := r.names(ctx, conn, session.Fields, state.Namespace(), func(ctx context.Context) ([]string, error) {
			return conn.source.SampleSchemaFields(ctx, db, state.CollectionName)
		}); ok {
			r.logger.Debug("found field names completion", zap.String("namespace", state.Namespace()))

			return nameItems(fields, KindField)
		}
	}

	switch {
	case state.IsShellMethod:
		r.logger.Debug("found collection methods completion")

		return clone(r.catalogs.collection)

	case state.IsAggregationCursor:
		r.logger.Debug("found aggregation cursor methods completion")

		return clone(r.catalogs.aggregationCursor)

	case state.IsFindCursor:
		r.logger.Debug("found cursor methods completion")

		return clone(r.catalogs.cursor)

	case state.IsDbCallExpression:
		items := clone(r.catalogs.database)
		if db == "" {
			r.logger.Debug("found database methods completion")

			return items
		}

		r.logger.Debug("found database methods and collection names completion", zap.String("database", db))

		return append(items, r.collectionItems(ctx, conn, db, line, pos)...)

	case state.IsCollectionName && db != "":
		r.logger.Debug("found collection names completion", zap.String("database", db))

		return r.collectionItems(ctx, conn, db, line, pos)

	case state.IsUseCallExpression:
		r.logger.Debug("found database names completion")

		databases, _ := r.cache.Get(session.Databases, "")

		return nameItems(databases, KindField)

	case state.IsStreamProcessorMethod:
		r.logger.Debug("found stream processor methods completion")

		return clone(r.catalogs.streamProcessor)

	case state.IsStreamProcessorName:
		r.logger.Debug("found stream processing methods and processor names completion")

		processors, _ := r.cache.Get(session.StreamProcessors, "")

		return append(clone(r.catalogs.streams), nameItems(processors, KindVariable)...)

	case state.IsSystemVariable:
		r.logger.Debug("found system variables completion")

		return clone(r.catalogs.systemVariables)

	case state.IsGlobalSymbol:
		r.logger.Debug("found global symbols completion")

		return clone(r.catalogs.globals)
	}

	r.logger.Debug("no completions")

	return []Item{}
}

func (r *Resolver) collectionItems(ctx context.Context, conn connection, db, line string, pos analysis.Position) []Item {
	collections, _ := r.names(ctx, conn, session.Collections, db, func(ctx context.Context) ([]string, error) {
		return conn.source.ListCollections(ctx, db)
	})

	return collectionItems(collections, line, pos)
}

// names returns cached names for key, fetching on a miss when connected.
// A failed fetch yields an empty list. ok is false only when the key is
// neither cached nor fetchable.
func (r *Resolver) names(
	ctx context.Context,
	conn connection,
	store session.Store,
	key string,
	fetch session.FetchFunc,
) ([]string, bool) {
	if names, ok := r.cache.Get(store, key); ok && conn.epoch == r.cache.Epoch() {
		return names, true
	}

	if conn.source == nil {
		return nil, false
	}

	names, err := r.cache.LoadAt(ctx, conn.epoch, store, key, fetch)
	if err != nil {
		r.logger.Warn("failed to fetch completion names",
			zap.String("store", string(store)),
			zap.String("key", key),
			zap.Error(err))

		return []string{}, true
	}

	return names, true
}

func lineAt(text string, n int) string {
	lines := strings.Split(text, "\n")
	if n < 0 || n >= len(lines) {
		return ""
	}

	return lines[n]
}
