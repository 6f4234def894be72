package sqldigest

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	changeset "github.com/jordanwade90/sqlite-changeset"
	"github.com/jordanwade90/sqlite-changeset/wire"
)

// Render formats every pending operation of a patchset DiffSet as SQL
// DML text, one statement per operation, in the same table and row
// order Build would emit bytes. It is presentation-only: the result is
// meant for human inspection (or the changesetdump CLI's --as-sql flag)
// and does not feed back into the wire format.
//
// tables supplies column names for each table referenced by src;
// Render fails with ErrUnknownTable if src touches a table tables does
// not know about.
func Render(src *changeset.DiffSet, tables SchemaSet) ([]string, error) {
	if !src.IsPatchset() {
		return nil, fmt.Errorf("%w: Render only supports patchsets", ErrUnsupportedStatement)
	}

	var stmts []string
	var walkErr error
	src.Walk(func(schema changeset.TableSchema, op changeset.Operation) {
		if walkErr != nil {
			return
		}
		named, ok := tables.Table(schema.Name())
		if !ok {
			walkErr = fmt.Errorf("%w: %q", ErrUnknownTable, schema.Name())
			return
		}
		stmt, err := renderOperation(named, op)
		if err != nil {
			walkErr = err
			return
		}
		stmts = append(stmts, stmt)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return stmts, nil
}

func renderOperation(table changeset.NamedTableSchema, op changeset.Operation) (string, error) {
	switch op.Kind {
	case changeset.KindInsert:
		return renderInsert(table, op.Row), nil
	case changeset.KindDelete:
		return renderDelete(table, op.Row), nil
	case changeset.KindUpdate:
		return renderUpdate(table, op.New), nil
	default:
		return "", fmt.Errorf("%w: unrecognized operation kind", ErrUnsupportedStatement)
	}
}

func renderInsert(table changeset.NamedTableSchema, row []wire.Value) string {
	var cols, vals []string
	for i, v := range row {
		cols = append(cols, table.ColumnNames[i])
		vals = append(vals, renderLiteral(v))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table.Name(), strings.Join(cols, ", "), strings.Join(vals, ", "))
}

func renderDelete(table changeset.NamedTableSchema, row []wire.Value) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table.Name(), renderPKConjunction(table, row))
}

func renderUpdate(table changeset.NamedTableSchema, newRow []wire.Value) string {
	var sets []string
	for i, v := range newRow {
		if table.PKFlag(i) > 0 || v.IsUndefined() {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", table.ColumnNames[i], renderLiteral(v)))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table.Name(), strings.Join(sets, ", "), renderPKConjunction(table, newRow))
}

func renderPKConjunction(table changeset.NamedTableSchema, row []wire.Value) string {
	var clauses []string
	for _, idx := range table.PKIndices() {
		clauses = append(clauses, fmt.Sprintf("%s = %s", table.ColumnNames[idx], renderLiteral(row[idx])))
	}
	return strings.Join(clauses, " AND ")
}

func renderLiteral(v wire.Value) string {
	switch v.Kind() {
	case wire.KindNull, wire.KindUndefined:
		return "NULL"
	case wire.KindInteger:
		return strconv.FormatInt(v.Int(), 10)
	case wire.KindReal:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case wire.KindText:
		return "'" + strings.ReplaceAll(v.Str(), "'", "''") + "'"
	case wire.KindBlob:
		return "X'" + strings.ToUpper(fmt.Sprintf("%x", v.Bytes())) + "'"
	default:
		return "NULL"
	}
}

// traceOperation is the debug-inspection shape Render's callers can ask
// for via RenderTrace: a JSON-friendly mirror of one operation, used by
// changesetdump's --json output path.
type traceOperation struct {
	Table string `json:"table"`
	Kind  string `json:"kind"`
	SQL   string `json:"sql"`
}

// RenderTrace renders the same statements as Render and returns them as
// a JSON array with one {table, kind, sql} object per operation, in
// Render's order. It exists for
// changesetdump's --json flag, which wants structured output rather than
// bare SQL text.
func RenderTrace(src *changeset.DiffSet, tables SchemaSet) ([]byte, error) {
	stmts, err := Render(src, tables)
	if err != nil {
		return nil, err
	}

	var traces []traceOperation
	i := 0
	var walkErr error
	src.Walk(func(schema changeset.TableSchema, op changeset.Operation) {
		if walkErr != nil || i >= len(stmts) {
			return
		}
		traces = append(traces, traceOperation{
			Table: schema.Name(),
			Kind:  kindName(op.Kind),
			SQL:   stmts[i],
		})
		i++
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return json.Marshal(traces)
}

func kindName(k changeset.Kind) string {
	switch k {
	case changeset.KindInsert:
		return "insert"
	case changeset.KindDelete:
		return "delete"
	case changeset.KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}
