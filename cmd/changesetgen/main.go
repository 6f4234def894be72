// Command changesetgen reads one or more script files of INSERT/UPDATE/
// DELETE statements (sqldigest's restricted grammar) and emits a single
// patchset built from applying them, in file-argument order, to one
// builder.
//
// Reading each input file is independent of the others, so changesetgen
// reads them concurrently with an errgroup; the file contents are then
// lexed, parsed and applied to the (single-threaded per call) builder
// sequentially.
package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	changeset "github.com/jordanwade90/sqlite-changeset"
	"github.com/jordanwade90/sqlite-changeset/sqldigest"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	var (
		schemaPath string
		outPath    string
	)

	root := &cobra.Command{
		Use:   "changesetgen --schema <file> <script...>",
		Short: "Build a patchset from one or more SQL-like script files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(schemaPath, outPath, args)
		},
	}
	root.Flags().StringVar(&schemaPath, "schema", "", "path to a JSON column-name schema file (required)")
	root.Flags().StringVar(&outPath, "out", "", "output path for the built patchset bytes (default: stdout)")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("changesetgen failed")
		os.Exit(1)
	}
}

func run(schemaPath, outPath string, scriptPaths []string) error {
	if schemaPath == "" {
		return fmt.Errorf("changesetgen: --schema is required")
	}
	tables, err := loadSchema(schemaPath)
	if err != nil {
		return fmt.Errorf("changesetgen: %w", err)
	}

	contents := make([]string, len(scriptPaths))
	group := new(errgroup.Group)
	for i, path := range scriptPaths {
		i, path := i, path
		group.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %q: %w", path, err)
			}
			contents[i] = string(data)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("changesetgen: %w", err)
	}

	dst := changeset.NewPatchSet()
	for i, content := range contents {
		if err := sqldigest.Digest(dst, tables, content); err != nil {
			return fmt.Errorf("changesetgen: %s: %w", scriptPaths[i], err)
		}
	}
	log.Info().Int("files", len(scriptPaths)).Int("operations", dst.Len()).Msg("built patchset")

	out := dst.Build()
	if outPath == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}

type schemaFile map[string]struct {
	Columns []string `json:"columns"`
	PK      []byte   `json:"pk"`
}

func loadSchema(path string) (sqldigest.TableMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf schemaFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return nil, fmt.Errorf("malformed schema file: %w", err)
	}

	tables := make(sqldigest.TableMap, len(sf))
	for name, t := range sf {
		table, err := changeset.NewNamedTableSchema(name, t.Columns, t.PK)
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		tables[name] = table
	}
	return tables, nil
}
