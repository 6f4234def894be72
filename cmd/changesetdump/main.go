// Command changesetdump parses a changeset or patchset file and prints a
// human-readable listing of its contents: one line per pending
// operation, prefixed with its table's name.
package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	changeset "github.com/jordanwade90/sqlite-changeset"
	"github.com/jordanwade90/sqlite-changeset/sqldigest"
	"github.com/jordanwade90/sqlite-changeset/wire"
)

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

func main() {
	var (
		schemaPath string
		asJSON     bool
		asSQL      bool
	)

	root := &cobra.Command{
		Use:   "changesetdump <file>",
		Short: "Parse a changeset or patchset file and print its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], schemaPath, asJSON, asSQL)
		},
	}
	root.Flags().StringVar(&schemaPath, "schema", "", "path to a JSON column-name schema file, required for --as-sql and --json")
	root.Flags().BoolVar(&asJSON, "json", false, "print a JSON trace of each operation instead of a plain listing")
	root.Flags().BoolVar(&asSQL, "as-sql", false, "render each operation as an SQL statement instead of a plain listing (patchsets only, requires --schema)")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("changesetdump failed")
		os.Exit(1)
	}
}

func run(path, schemaPath string, asJSON, asSQL bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("changesetdump: %w", err)
	}

	d, err := changeset.Parse(data)
	if err != nil {
		return fmt.Errorf("changesetdump: %w", err)
	}
	log.Info().Str("file", path).Int("operations", d.Len()).Bool("patchset", d.IsPatchset()).Msg("parsed")

	if asSQL || asJSON {
		if schemaPath == "" {
			return fmt.Errorf("changesetdump: --schema is required for --as-sql and --json")
		}
		tables, err := loadSchema(schemaPath)
		if err != nil {
			return fmt.Errorf("changesetdump: %w", err)
		}
		if asJSON {
			trace, err := sqldigest.RenderTrace(d, tables)
			if err != nil {
				return fmt.Errorf("changesetdump: %w", err)
			}
			fmt.Println(string(trace))
			return nil
		}
		stmts, err := sqldigest.Render(d, tables)
		if err != nil {
			return fmt.Errorf("changesetdump: %w", err)
		}
		for _, s := range stmts {
			fmt.Println(s + ";")
		}
		return nil
	}

	d.Walk(func(schema changeset.TableSchema, op changeset.Operation) {
		printOperation(schema, op)
	})
	return nil
}

func printOperation(schema changeset.TableSchema, op changeset.Operation) {
	switch op.Kind {
	case changeset.KindInsert:
		fmt.Printf("%s INSERT %s\n", schema.Name(), renderRow(op.Row))
	case changeset.KindDelete:
		fmt.Printf("%s DELETE %s\n", schema.Name(), renderRow(op.Row))
	case changeset.KindUpdate:
		fmt.Printf("%s UPDATE old=%s new=%s\n", schema.Name(), renderRow(op.Old), renderRow(op.New))
	}
}

func renderRow(row []wire.Value) string {
	out := "["
	for i, v := range row {
		if i > 0 {
			out += ", "
		}
		out += renderValue(v)
	}
	return out + "]"
}

func renderValue(v wire.Value) string {
	switch v.Kind() {
	case wire.KindUndefined:
		return "<undefined>"
	case wire.KindNull:
		return "NULL"
	case wire.KindInteger:
		return fmt.Sprintf("%d", v.Int())
	case wire.KindReal:
		return fmt.Sprintf("%g", v.Float())
	case wire.KindText:
		return fmt.Sprintf("%q", v.Str())
	case wire.KindBlob:
		return fmt.Sprintf("x%x", v.Bytes())
	default:
		return "?"
	}
}

// schemaFile is the on-disk shape of --schema: table name to its column
// names (in column-index order) and primary-key ordinal vector, e.g.
// {"users": {"columns": ["id", "name"], "pk": [1, 0]}}.
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
