package changeset

import (
	"fmt"
	"sort"

	"github.com/jordanwade90/sqlite-changeset/wire"
)

// TableSchema describes a table's wire identity: its name, its column
// count, and which columns (if any) make up its primary key.
//
// This mirrors the teacher's explicit, field-based Table/Database
// structs (jordanwade90/rawlite's database.go) rather than a discovered,
// live-catalog schema: the caller supplies the schema up front, and the
// library never opens or inspects a database to learn it (per the
// source specification's Non-goals).
type TableSchema struct {
	name string
	// pkOrdinals has one entry per column. A zero entry means the column
	// is not part of the primary key; a non-zero entry k means the
	// column is the k-th primary key column (1-based).
	pkOrdinals []byte
}

// NewTableSchema builds a TableSchema for a table with the given name and
// column count, whose primary key ordinals are given by pkOrdinals (one
// entry per column, 0 for non-PK columns, otherwise a 1-based ordinal).
//
// It fails with ErrBadSchema unless the non-zero ordinals form exactly
// the set {1, ..., K} for some K <= columns, and with ErrBadRow if
// len(pkOrdinals) != columns.
func NewTableSchema(name string, columns int, pkOrdinals []byte) (TableSchema, error) {
	if name == "" {
		return TableSchema{}, fmt.Errorf("%w: table name must not be empty", ErrBadSchema)
	}
	if columns < 1 || columns > 255 {
		return TableSchema{}, fmt.Errorf("%w: column count %d out of range 1..=255", ErrBadSchema, columns)
	}
	if len(pkOrdinals) != columns {
		return TableSchema{}, fmt.Errorf("%w: pk ordinal vector length %d != column count %d", ErrBadRow, len(pkOrdinals), columns)
	}
	if err := validatePKOrdinals(pkOrdinals); err != nil {
		return TableSchema{}, err
	}
	ord := make([]byte, columns)
	copy(ord, pkOrdinals)
	return TableSchema{name: name, pkOrdinals: ord}, nil
}

func validatePKOrdinals(pkOrdinals []byte) error {
	seen := make([]bool, len(pkOrdinals)+1)
	max := byte(0)
	for _, ord := range pkOrdinals {
		if ord == 0 {
			continue
		}
		if int(ord) > len(pkOrdinals) || seen[ord] {
			return fmt.Errorf("%w: ordinal %d is out of range or duplicated", ErrBadSchema, ord)
		}
		seen[ord] = true
		if ord > max {
			max = ord
		}
	}
	for k := byte(1); k <= max; k++ {
		if !seen[k] {
			return fmt.Errorf("%w: ordinals are not contiguous starting at 1 (missing %d)", ErrBadSchema, k)
		}
	}
	return nil
}

// Name returns the table's name.
func (t TableSchema) Name() string { return t.name }

// ColumnCount returns the number of columns in the table.
func (t TableSchema) ColumnCount() int { return len(t.pkOrdinals) }

// PKFlag returns the raw PK ordinal byte for column i (0 if not a PK
// column).
func (t TableSchema) PKFlag(i int) byte { return t.pkOrdinals[i] }

// PKIndices returns the column indices that make up the primary key, in
// ordinal order.
func (t TableSchema) PKIndices() []int {
	type pair struct{ idx int; ord byte }
	var pairs []pair
	for i, ord := range t.pkOrdinals {
		if ord > 0 {
			pairs = append(pairs, pair{i, ord})
		}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].ord < pairs[b].ord })
	out := make([]int, len(pairs))
	for i, p := range pairs {
		out[i] = p.idx
	}
	return out
}

// ExtractPK returns the row-key tuple for row: the values at the PK
// column indices, in PK-ordinal order.
//
// It fails with ErrBadRow if len(row) != t.ColumnCount(). It never fails
// because a value is Null: Null is a valid PK component on the wire.
func (t TableSchema) ExtractPK(row []wire.Value) ([]wire.Value, error) {
	if len(row) != t.ColumnCount() {
		return nil, fmt.Errorf("%w: row has %d columns, table has %d", ErrBadRow, len(row), t.ColumnCount())
	}
	indices := t.PKIndices()
	pk := make([]wire.Value, len(indices))
	for i, idx := range indices {
		pk[i] = row[idx]
	}
	return pk, nil
}

// writePKFlags writes one ordinal byte per column into buf, which must
// have length t.ColumnCount().
func (t TableSchema) writePKFlags(buf []byte) {
	copy(buf, t.pkOrdinals)
}

// tableKey is the comparable identity used to key the DiffSet's outer
// map. Two TableSchema values with the same name, column count, and PK
// ordinals are the same table for consolidation purposes.
type tableKey string

func (t TableSchema) key() tableKey {
	b := make([]byte, 0, len(t.name)+len(t.pkOrdinals)+1)
	b = append(b, t.name...)
	b = append(b, 0)
	b = append(b, t.pkOrdinals...)
	return tableKey(b)
}

// NamedTableSchema extends TableSchema with column names, which the SQL
// digest adapter (package sqldigest) needs to resolve identifiers in
// INSERT/UPDATE/DELETE statements. It plays no role in the wire format
// itself.
type NamedTableSchema struct {
	TableSchema
	ColumnNames []string
}

// NewNamedTableSchema builds a NamedTableSchema, validating the same
// invariants as NewTableSchema with len(columnNames) as the column count,
// so pkOrdinals must have one entry per column name.
func NewNamedTableSchema(name string, columnNames []string, pkOrdinals []byte) (NamedTableSchema, error) {
	base, err := NewTableSchema(name, len(columnNames), pkOrdinals)
	if err != nil {
		return NamedTableSchema{}, err
	}
	names := make([]string, len(columnNames))
	copy(names, columnNames)
	return NamedTableSchema{TableSchema: base, ColumnNames: names}, nil
}

// ColumnIndex returns the index of the named column, or -1 if no column
// has that name.
func (t NamedTableSchema) ColumnIndex(name string) int {
	for i, n := range t.ColumnNames {
		if n == name {
			return i
		}
	}
	return -1
}
