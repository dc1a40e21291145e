package playground

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

// Evaluator runs playground code. output receives console output in order
// while the evaluation is in flight.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request, output func(fragment string)) (*Result, error)
}

// printMarker prefixes console lines in mongosh output. The rest of the
// line is a JSON string.
const printMarker = "\x1eprint:"

// printPrelude reroutes print, printjson and console.log so their output
// is distinguishable from the evaluated value on stdout.
const printPrelude = `const __mongolsPrint = print;
globalThis.print = globalThis.printjson = (...args) => __mongolsPrint(
  "\u001eprint:" + JSON.stringify(args.map((a) => (typeof a === "string" ? a : EJSON.stringify(a))).join(" "))
);
console.log = globalThis.print;
`

// ConnectionStringEnv carries the connection string to mongosh. It is kept
// off the command line, where credentials would show in the process list.
const ConnectionStringEnv = "MONGOLS_CONNECTION_STRING"

// connectPrelude opens the connection from ConnectionStringEnv.
const connectPrelude = "db = connect(process.env." + ConnectionStringEnv + ");\n"

// Mongosh evaluates code with the mongosh binary.
type Mongosh struct {
	binary string
	logger *zap.Logger
}

// NewMongosh creates a Mongosh evaluator. An empty binary means "mongosh"
// on PATH.
func NewMongosh(binary string, logger *zap.Logger) *Mongosh {
	if binary == "" {
		binary = "mongosh"
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Mongosh{binary: binary, logger: logger}
}

// Args returns the mongosh arguments used for req. mongosh starts without
// a connection; the evaluated script connects using Env.
func (m *Mongosh) Args(req Request) []string {
	return []string{
		"--nodb",
		"--quiet",
		"--json=relaxed",
		"--eval", connectPrelude + printPrelude + req.CodeToEvaluate,
	}
}

// Env returns the environment additions used for req.
func (m *Mongosh) Env(req Request) []string {
	return []string{ConnectionStringEnv + "=" + req.ConnectionString}
}

// Evaluate runs req through mongosh. Output lines written by print are
// streamed; everything else on stdout is the evaluated value.
func (m *Mongosh) Evaluate(ctx context.Context, req Request, output func(fragment string)) (*Result, error) {
	if req.ConnectionString == "" {
		return nil, ErrNoConnection
	}

	var value []string

	stdout := newLineWriter(func(line string) {
		payload, ok := strings.CutPrefix(line, printMarker)
		if !ok {
			value = append(value, line)

			return
		}

		var fragment string
		if err := json.Unmarshal([]byte(payload), &fragment); err != nil {
			fragment = payload
		}

		output(fragment)
	})

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, m.binary, m.Args(req)...) //nolint:gosec // binary comes from config
	cmd.Env = append(os.Environ(), m.Env(req)...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	m.logger.Debug("running mongosh", zap.String("binary", m.binary))

	err := cmd.Run()
	stdout.Flush()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("playground: mongosh: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return NewResult(strings.Join(value, "\n"), ""), nil
}
