package lsp_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"

	"github.com/rlch/mongols"
	"github.com/rlch/mongols/analysis"
	"github.com/rlch/mongols/lsp"
	"github.com/rlch/mongols/playground"
)

const (
	testDataSource = "lsptest"
	defaultURI     = "lsptest://default"
	unreachableURI = "lsptest://unreachable"
)

func init() {
	mongols.RegisterDataSource(testDataSource, func(_ context.Context, cfg mongols.DataSourceConfig) (mongols.DataSource, error) {
		if cfg.URI == unreachableURI {
			return nil, errors.New("connection refused")
		}

		return &fakeSource{
			databases:   []string{"admin", "berlin"},
			collections: map[string][]string{"berlin": {"trips", "coll-name"}},
			processors:  []string{"solar"},
		}, nil
	})
}

type fakeSource struct {
	databases   []string
	collections map[string][]string
	processors  []string
}

func (*fakeSource) Name() string { return testDataSource }

func (f *fakeSource) ListDatabases(context.Context) ([]string, error) { return f.databases, nil }

func (f *fakeSource) ListCollections(_ context.Context, db string) ([]string, error) {
	return f.collections[db], nil
}

func (*fakeSource) SampleSchemaFields(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeSource) ListStreamProcessors(context.Context) ([]string, error) { return f.processors, nil }

func (*fakeSource) Close(context.Context) error { return nil }

type fakePlayground struct {
	output []string
	result *playground.Result
	err    error

	mu       sync.Mutex
	requests []playground.Request
	stops    int
}

func (f *fakePlayground) Evaluate(ctx context.Context, req playground.Request, h playground.Handler) (*playground.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	for _, out := range f.output {
		if err := h.Event(ctx, playground.Event{Action: playground.ActionOutput, Output: out}); err != nil {
			return nil, err
		}
	}

	return f.result, f.err
}

func (f *fakePlayground) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++
}

func (f *fakePlayground) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stops
}

func (f *fakePlayground) runs() []playground.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]playground.Request(nil), f.requests...)
}

func withTestConfig() lsp.Option {
	return lsp.WithConfig(mongols.Config{
		Connection: mongols.ConnectionConfig{
			URI:        defaultURI,
			Database:   "berlin",
			DataSource: testDataSource,
		},
	})
}

func connectParams(connURI string) lsp.ConnectParams {
	return lsp.ConnectParams{URI: connURI}
}

func execute(t *testing.T, server *lsp.Server, command string, arg any) (any, error) {
	t.Helper()

	var raw json.RawMessage

	if arg != nil {
		data, err := json.Marshal(arg)
		require.NoError(t, err)

		raw = data
	}

	return server.ExecuteCommand(context.Background(), command, raw)
}

func TestServer_ConnectPreloadsAndSwitches(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, withTestConfig(), lsp.WithPlayground(&fakePlayground{}))

	openDocument(t, server, `use("");`)
	assert.Empty(t, completionLabels(t, server, 0, 5), "no databases before connect")

	result, err := execute(t, server, lsp.CommandConnect, map[string]string{"connectionId": "conn-1"})
	require.NoError(t, err)
	assert.Equal(t, &lsp.ConnectResult{ConnectionID: "conn-1"}, result)

	assert.ElementsMatch(t, []string{"admin", "berlin"}, completionLabels(t, server, 0, 5))

	openDocument(t, server, "sp.")
	assert.Contains(t, completionLabels(t, server, 0, 3), "solar")
}

func TestServer_ConnectGeneratesID(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, withTestConfig())

	first, err := server.Connect(context.Background(), connectParams(""))
	require.NoError(t, err)

	second, err := server.Connect(context.Background(), connectParams(defaultURI))
	require.NoError(t, err)

	assert.NotEmpty(t, first.ConnectionID)
	assert.NotEqual(t, first.ConnectionID, second.ConnectionID)
}

func TestServer_ConnectFailures(t *testing.T) {
	t.Parallel()

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		server, client := newTestServer(t, withTestConfig())

		_, err := server.Connect(context.Background(), connectParams(unreachableURI))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		require.Len(t, client.shownMessages(), 1)
		assert.Contains(t, client.shownMessages()[0], "Unable to connect")
	})

	t.Run("no uri", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestServer(t, lsp.WithConfig(mongols.Config{}))

		_, err := server.Connect(context.Background(), connectParams(""))

		var rpcErr *jsonrpc2.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, jsonrpc2.InvalidParams, rpcErr.Code)
	})

	t.Run("unknown data source", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestServer(t, lsp.WithConfig(mongols.Config{
			Connection: mongols.ConnectionConfig{DataSource: "nope"},
		}))

		_, err := server.Connect(context.Background(), connectParams(defaultURI))
		require.ErrorIs(t, err, mongols.ErrUnknownDataSource)
	})
}

func TestServer_ClearCachedCompletions(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, withTestConfig())

	_, err := server.Connect(context.Background(), connectParams(""))
	require.NoError(t, err)

	openDocument(t, server, `use("");`)
	require.NotEmpty(t, completionLabels(t, server, 0, 5))

	_, err = execute(t, server, lsp.CommandClearCachedCompletions, map[string]bool{"streamProcessors": true})
	require.NoError(t, err)
	assert.NotEmpty(t, completionLabels(t, server, 0, 5), "databases survive a stream processor clear")

	_, err = execute(t, server, lsp.CommandClearCachedCompletions, map[string]bool{"databases": true})
	require.NoError(t, err)
	assert.Empty(t, completionLabels(t, server, 0, 5))
}

func TestServer_Disconnect(t *testing.T) {
	t.Parallel()

	runner := &fakePlayground{}
	server, _ := newTestServer(t, withTestConfig(), lsp.WithPlayground(runner))

	_, err := server.Connect(context.Background(), connectParams(""))
	require.NoError(t, err)

	result, err := execute(t, server, lsp.CommandDisconnect, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 2, runner.stopCount(), "connect and disconnect both stop the playground")

	openDocument(t, server, `use("");`)
	assert.Empty(t, completionLabels(t, server, 0, 5))
}

func TestServer_ExecuteAll(t *testing.T) {
	t.Parallel()

	runner := &fakePlayground{
		output: []string{"hello", "world"},
		result: playground.NewResult(`{"ok": 1}`, ""),
	}
	server, client := newTestServer(t, withTestConfig(), lsp.WithPlayground(runner))

	connected, err := server.Connect(context.Background(), lsp.ConnectParams{ConnectionID: "conn-1"})
	require.NoError(t, err)

	result, err := execute(t, server, lsp.CommandExecuteAll, lsp.ExecuteAllParams{
		CodeToEvaluate: "db.test.find()",
		ConnectionID:   connected.ConnectionID,
	})
	require.NoError(t, err)

	res, ok := result.(*lsp.ExecuteAllResult)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok": 1}`, string(res.Result.Content))

	runs := runner.runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "db.test.find()", runs[0].CodeToEvaluate)
	assert.Equal(t, defaultURI, runs[0].ConnectionString)

	client.mu.Lock()
	defer client.mu.Unlock()

	require.Len(t, client.notifications, 2)

	for i, want := range []string{"hello", "world"} {
		assert.Equal(t, lsp.MethodShowConsoleOutput, client.notifications[i].method)
		assert.Equal(t, []string{want}, client.notifications[i].params)
	}
}

func TestServer_ExecuteAllResolvesNull(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		connect   bool
		runner    *fakePlayground
		params    lsp.ExecuteAllParams
		wantRuns  int
		wantShown string
	}{
		{
			name:     "inactive connection id",
			connect:  true,
			runner:   &fakePlayground{result: playground.NewResult("1", "")},
			params:   lsp.ExecuteAllParams{CodeToEvaluate: "1", ConnectionID: "stale"},
			wantRuns: 0,
		},
		{
			name:      "not connected",
			runner:    &fakePlayground{},
			params:    lsp.ExecuteAllParams{CodeToEvaluate: "1"},
			wantShown: "Please connect to a database before running a playground.",
		},
		{
			name:     "cancelled run",
			connect:  true,
			runner:   &fakePlayground{},
			params:   lsp.ExecuteAllParams{CodeToEvaluate: "1"},
			wantRuns: 1,
		},
		{
			name:      "worker crash",
			connect:   true,
			runner:    &fakePlayground{err: playground.ErrWorkerExited},
			params:    lsp.ExecuteAllParams{CodeToEvaluate: "1"},
			wantRuns:  1,
			wantShown: playground.ErrWorkerExited.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, client := newTestServer(t, withTestConfig(), lsp.WithPlayground(tt.runner))

			if tt.connect {
				_, err := server.Connect(context.Background(), lsp.ConnectParams{ConnectionID: "conn-1"})
				require.NoError(t, err)
			}

			result, err := server.ExecuteAll(context.Background(), tt.params)
			require.NoError(t, err)
			assert.Nil(t, result)
			assert.Len(t, tt.runner.runs(), tt.wantRuns)

			if tt.wantShown != "" {
				assert.Equal(t, []string{tt.wantShown}, client.shownMessages())
			}
		})
	}
}

func TestServer_SelectionCommands(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	sel := func(sl, sc, el, ec int) analysis.Selection {
		return analysis.Selection{
			Start: analysis.Position{Line: sl, Character: sc},
			End:   analysis.Position{Line: el, Character: ec},
		}
	}

	mode, err := execute(t, server, lsp.CommandExportToLanguageMode, lsp.SelectionParams{
		TextFromEditor: "db.sales.insertMany([{ '_id': 1, 'item': 'abc' }]);",
		Selection:      sel(0, 20, 0, 49),
	})
	require.NoError(t, err)
	assert.Equal(t, analysis.ExportAggregation, mode)

	ns, err := execute(t, server, lsp.CommandNamespaceForSelection, lsp.SelectionParams{
		TextFromEditor: "use('shop');\ndb.orders.find({ a: 1 })",
		Selection:      sel(1, 15, 1, 23),
	})
	require.NoError(t, err)

	data, err := json.Marshal(ns)
	require.NoError(t, err)
	assert.JSONEq(t, `{"databaseName": "shop", "collectionName": "orders"}`, string(data))

	ns, err = execute(t, server, lsp.CommandNamespaceForSelection, lsp.SelectionParams{TextFromEditor: "1 +"})
	require.NoError(t, err)

	data, err = json.Marshal(ns)
	require.NoError(t, err)
	assert.JSONEq(t, `{"databaseName": null, "collectionName": null}`, string(data))
}

func TestServer_UnknownCommand(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	_, err := execute(t, server, "mongodb.nope", nil)

	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc2.MethodNotFound, rpcErr.Code)
}
