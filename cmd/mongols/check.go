package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/boyter/gocodewalker"
	"github.com/urfave/cli/v3"

	"github.com/rlch/mongols/analysis"
	"github.com/rlch/mongols/playground"
)

// Check command errors.
var (
	ErrNoPlaygroundFiles = errors.New("no playground files found")
)

// playgroundExtensions are the suffixes of playground files.
var playgroundExtensions = []string{".mongodb.js", ".mongodb"}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Report legacy shell syntax in playground files",
		ArgsUsage: "[files or directories...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "where",
				Usage: `only report diagnostics matching an expression, e.g. 'line > 3 && code == "invalidInteractiveSyntaxes"'`,
			},
		},
		Action: runCheck,
	}
}

// fileDiagnostics holds the diagnostics reported for one file.
type fileDiagnostics struct {
	path        string
	diagnostics []analysis.Diagnostic
}

func runCheck(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		args = []string{"."}
	}

	var filter *analysis.Filter

	if where := cmd.String("where"); where != "" {
		var err error

		filter, err = analysis.CompileFilter(where)
		if err != nil {
			return err
		}
	}

	files, err := collectPlaygroundFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoPlaygroundFiles
	}

	results := make([]fileDiagnostics, 0, len(files))

	for _, file := range files {
		data, err := os.ReadFile(file) //nolint:gosec // G304: file path from user input is expected
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}

		diagnostics, err := filter.Apply(analysis.Scan(string(data)))
		if err != nil {
			return err
		}

		if len(diagnostics) > 0 {
			results = append(results, fileDiagnostics{path: file, diagnostics: diagnostics})
		}
	}

	if printDiagnostics(os.Stdout, playground.DefaultStyles(), results, len(files)) > 0 {
		return cli.Exit("", 1)
	}

	return nil
}

// printDiagnostics writes one line per diagnostic and a summary, and
// returns the number of diagnostics written.
func printDiagnostics(w io.Writer, styles *playground.Styles, results []fileDiagnostics, checked int) int {
	var total int

	for _, r := range results {
		for _, d := range r.diagnostics {
			total++

			loc := fmt.Sprintf("%s:%d:%d:", r.path, d.Range.Start.Line+1, d.Range.Start.Character+1)
			line := fmt.Sprintf("%s %s %s", styles.Path.Render(loc), severityStyle(styles, d.Severity), d.Message)

			if d.Fix != "" {
				line += " " + styles.Muted.Render("(fix: "+d.Fix+")")
			}

			fmt.Fprintln(w, line)
		}
	}

	if total == 0 {
		fmt.Fprintln(w, styles.Pass.Render(fmt.Sprintf("%s %d files checked", styles.SymbolPass, checked)))

		return 0
	}

	fmt.Fprintln(w, styles.Fail.Render(fmt.Sprintf("%s %d problems in %d of %d files", styles.SymbolFail, total, len(results), checked)))

	return total
}

func severityStyle(styles *playground.Styles, severity analysis.DiagnosticSeverity) string {
	label := severity.String() + ":"

	switch severity {
	case analysis.SeverityError:
		return styles.Fail.Render(label)
	case analysis.SeverityWarning:
		return styles.Warn.Render(label)
	default:
		return styles.Info.Render(label)
	}
}

// collectPlaygroundFiles expands directories into the playground files
// below them. Files named explicitly are kept whatever their extension.
func collectPlaygroundFiles(args []string) ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, arg)

			continue
		}

		err = walkDir(arg, func(path string) {
			if !isPlaygroundFile(path) {
				return
			}

			mu.Lock()
			files = append(files, path)
			mu.Unlock()
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)

	return files, nil
}

func isPlaygroundFile(path string) bool {
	for _, ext := range playgroundExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	return false
}

// walkDir walks a directory for playground files, respecting .gitignore.
func walkDir(root string, callback func(path string)) error {
	fileListQueue := make(chan *gocodewalker.File, 100)

	// Extensions are matched by suffix in the callback; ".mongodb.js"
	// has two dots.
	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)

	var walkErr error

	fileWalker.SetErrorHandler(func(e error) bool {
		walkErr = e

		return true
	})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for f := range fileListQueue {
			callback(f.Location)
		}
	}()

	if err := fileWalker.Start(); err != nil {
		return err
	}

	wg.Wait()

	return walkErr
}
