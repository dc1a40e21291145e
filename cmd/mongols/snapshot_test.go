package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rlch/mongols/databases/snapshot"
)

func TestSnapshotCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.yaml")
	out := filepath.Join(dir, "out.yaml")

	writeFile(t, in, `databases:
  berlin:
    collections:
      trips:
        fields: [_id, start, end]
      coll-name: {}
  admin:
    collections: {}
streamProcessors: [solar]
`)

	err := snapshotCommand().Run(context.Background(), []string{
		"snapshot", "--source", snapshot.Name, "--uri", in, "--out", out,
	})
	require.NoError(t, err)

	want, err := snapshot.Load(in)
	require.NoError(t, err)

	got, err := snapshot.Load(out)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
