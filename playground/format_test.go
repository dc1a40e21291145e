package playground_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/mongols/playground"
)

func runEvents(result *playground.Result, terminal playground.Action, err error) []playground.Event {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	return []playground.Event{
		{Time: start, Action: playground.ActionStarted, RunID: "r1", Source: "q.mongodb.js"},
		{Time: start, Action: playground.ActionOutput, RunID: "r1", Source: "q.mongodb.js", Output: "hello"},
		{
			Time:    start.Add(1500 * time.Millisecond),
			Action:  terminal,
			RunID:   "r1",
			Source:  "q.mongodb.js",
			Elapsed: 1500 * time.Millisecond,
			Result:  result,
			Error:   err,
		},
	}
}

func TestTextFormatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		events   []playground.Event
		expected string
	}{
		{
			name:     "finished",
			events:   runEvents(playground.NewResult("42", ""), playground.ActionFinished, nil),
			expected: "=== RUN   q.mongodb.js\nhello\n42\n--- DONE: q.mongodb.js (1.5s)\n",
		},
		{
			name:     "failed",
			events:   runEvents(nil, playground.ActionFailed, errors.New("bad")),
			expected: "=== RUN   q.mongodb.js\nhello\n--- FAIL: q.mongodb.js (1.5s)\n    bad\n",
		},
		{
			name:     "cancelled",
			events:   runEvents(nil, playground.ActionCancelled, nil),
			expected: "=== RUN   q.mongodb.js\nhello\n--- CANCELLED: q.mongodb.js (1.5s)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			f := playground.NewFormatter("text", &buf)
			for _, e := range tt.events {
				require.NoError(t, f.Format(e))
			}

			require.NoError(t, f.Summary(playground.NewTranscript()))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	f := playground.NewFormatter("json", &buf)
	transcript := playground.NewTranscript()

	for _, e := range runEvents(playground.NewResult(`{"a": 1}`, ""), playground.ActionFinished, nil) {
		require.NoError(t, f.Format(e))
		require.NoError(t, transcript.Event(context.Background(), e))
	}

	require.NoError(t, f.Summary(transcript))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var output map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &output))
	assert.Equal(t, "output", output["action"])
	assert.Equal(t, "hello", output["output"])
	assert.Equal(t, "r1", output["run"])

	var finished struct {
		Action  string             `json:"action"`
		Elapsed float64            `json:"elapsed"`
		Result  *playground.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &finished))
	assert.Equal(t, "finished", finished.Action)
	assert.InDelta(t, 1.5, finished.Elapsed, 0.001)
	require.NotNil(t, finished.Result)
	assert.JSONEq(t, `{"a": 1}`, string(finished.Result.Content))

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &summary))
	assert.Equal(t, "summary", summary["action"])
	assert.Equal(t, "finished", summary["status"])
	assert.Equal(t, true, summary["ok"])
	assert.InDelta(t, 1.0, summary["output"], 0)
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	transcript := playground.NewTranscript()
	for _, e := range runEvents(nil, playground.ActionFailed, errors.New("bad")) {
		require.NoError(t, transcript.Event(context.Background(), e))
	}

	require.NoError(t, transcript.Err("stderr line"))

	assert.Equal(t, "r1", transcript.RunID)
	assert.Equal(t, []string{"hello"}, transcript.Output)
	assert.Equal(t, []string{"stderr line"}, transcript.Stderr)
	assert.Equal(t, 1500*time.Millisecond, transcript.Elapsed())
	assert.False(t, transcript.Ok())
	assert.EqualError(t, transcript.Error, "bad")
}

func TestMultiHandler_SkipsNil(t *testing.T) {
	t.Parallel()

	var events, errs int

	h := playground.NewMultiHandler(nil, playground.HandlerFuncs{
		OnEvent: func(context.Context, playground.Event) error { events++; return nil },
		OnErr:   func(string) error { errs++; return nil },
	})

	require.NoError(t, h.Event(context.Background(), playground.Event{Action: playground.ActionStarted}))
	require.NoError(t, h.Err("x"))
	assert.Equal(t, 1, events)
	assert.Equal(t, 1, errs)
}
