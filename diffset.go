package changeset

import (
	"fmt"

	"github.com/jordanwade90/sqlite-changeset/internal/omap"
	"github.com/jordanwade90/sqlite-changeset/wire"
)

// Opcodes, as they appear on the wire after the indirect flag.
const (
	opcodeDelete = 0x09
	opcodeInsert = 0x12
	opcodeUpdate = 0x17
)

// Table section markers.
const (
	markerChangeset = 'T'
	markerPatchset  = 'P'
)

// DiffSet accumulates row-level changes for a sequence of tables and
// serializes them as either a changeset or a patchset, consolidating
// repeated touches to the same row per §4.D of the wire contract.
//
// A DiffSet is not safe for concurrent use; callers owning one across
// goroutines must synchronize externally.
type DiffSet struct {
	patchset bool
	tables   *omap.Map[tableKey, *tableEntry]
}

type tableEntry struct {
	schema TableSchema
	rows   *omap.Map[string, rowEntry]
}

type rowEntry struct {
	pk []wire.Value
	op Operation
}

// NewChangeSet returns an empty changeset builder.
func NewChangeSet() *DiffSet {
	return &DiffSet{tables: omap.New[tableKey, *tableEntry]()}
}

// NewPatchSet returns an empty patchset builder.
func NewPatchSet() *DiffSet {
	return &DiffSet{patchset: true, tables: omap.New[tableKey, *tableEntry]()}
}

// IsPatchset reports whether d builds patchset-format output.
func (d *DiffSet) IsPatchset() bool { return d.patchset }

// IsEmpty reports whether every table in d has zero pending operations.
func (d *DiffSet) IsEmpty() bool {
	for _, te := range d.tables.Values() {
		if te.rows.Len() > 0 {
			return false
		}
	}
	return true
}

// Len returns the total number of pending operations across all tables.
func (d *DiffSet) Len() int {
	n := 0
	for _, te := range d.tables.Values() {
		n += te.rows.Len()
	}
	return n
}

// AddTable registers schema with d, in first-touch order, if it is not
// already present. It never fails on a table already registered with an
// identical schema.
func (d *DiffSet) AddTable(schema TableSchema) {
	d.ensureTable(schema)
}

func (d *DiffSet) ensureTable(schema TableSchema) *tableEntry {
	key := schema.key()
	if te, ok := d.tables.Get(key); ok {
		return te
	}
	te := &tableEntry{schema: schema, rows: omap.New[string, rowEntry]()}
	d.tables.Set(key, te)
	return te
}

// pkKey returns a comparable, injective encoding of a PK-value tuple
// suitable for use as a map key.
func pkKey(pk []wire.Value) string {
	var buf []byte
	for _, v := range pk {
		buf = wire.Encode(buf, v)
	}
	return string(buf)
}

// buildPKOnlyRow returns a row of length columnCount with pk's values
// placed at the positions named by pkIndices (in the same order) and
// Undefined everywhere else.
func buildPKOnlyRow(columnCount int, pkIndices []int, pk []wire.Value) []wire.Value {
	out := make([]wire.Value, columnCount)
	for i := range out {
		out[i] = wire.Undefined
	}
	for i, idx := range pkIndices {
		out[idx] = pk[i]
	}
	return out
}

// Insert adds an INSERT operation for a full new row. row must have
// exactly schema.ColumnCount() values, none of them Undefined.
func (d *DiffSet) Insert(schema TableSchema, row []wire.Value) error {
	if err := checkFullRow(schema, row); err != nil {
		return err
	}
	pk, err := schema.ExtractPK(row)
	if err != nil {
		return err
	}
	return d.addOperation(schema, pk, insertOp(cloneRow(row)))
}

// Delete adds a DELETE operation from a full old row. It is only valid
// on a changeset DiffSet; patchset deletes carry only the primary key
// and must use DeletePK.
func (d *DiffSet) Delete(schema TableSchema, row []wire.Value) error {
	if d.patchset {
		return fmt.Errorf("%w: patchset DELETE must use DeletePK", ErrBadRow)
	}
	if err := checkFullRow(schema, row); err != nil {
		return err
	}
	pk, err := schema.ExtractPK(row)
	if err != nil {
		return err
	}
	return d.addOperation(schema, pk, deleteOp(cloneRow(row)))
}

// DeletePK adds a DELETE operation from a primary-key tuple alone. It is
// only valid on a patchset DiffSet.
func (d *DiffSet) DeletePK(schema TableSchema, pk []wire.Value) error {
	if !d.patchset {
		return fmt.Errorf("%w: changeset DELETE must supply the full old row", ErrBadRow)
	}
	indices := schema.PKIndices()
	if len(pk) != len(indices) {
		return fmt.Errorf("%w: pk tuple has %d values, table has %d pk columns", ErrBadRow, len(pk), len(indices))
	}
	full := buildPKOnlyRow(schema.ColumnCount(), indices, pk)
	return d.addOperation(schema, cloneRow(pk), deleteOp(full))
}

// Update adds an UPDATE operation carrying both old and new column
// values. It is only valid on a changeset DiffSet; old's primary-key
// columns must be defined. Columns left Undefined in both old and new
// are treated as untouched. Patchset updates must use UpdateNew.
func (d *DiffSet) Update(schema TableSchema, old, new []wire.Value) error {
	if d.patchset {
		return fmt.Errorf("%w: patchset UPDATE must use UpdateNew", ErrBadRow)
	}
	if len(old) != schema.ColumnCount() || len(new) != schema.ColumnCount() {
		return fmt.Errorf("%w: update column count mismatch", ErrBadRow)
	}
	pk, err := schema.ExtractPK(old)
	if err != nil {
		return err
	}
	for _, idx := range schema.PKIndices() {
		if old[idx].IsUndefined() {
			return fmt.Errorf("%w: primary key column must be defined in UPDATE old values", ErrBadRow)
		}
	}
	if isNoopUpdate(old, new) {
		return nil
	}
	return d.addOperation(schema, pk, updateOp(cloneRow(old), cloneRow(new)))
}

// UpdateNew adds an UPDATE operation from new column values alone. The
// primary key is extracted from new, which must have its PK columns
// defined; any other column left Undefined is treated as unchanged. It
// is only valid on a patchset DiffSet.
func (d *DiffSet) UpdateNew(schema TableSchema, new []wire.Value) error {
	if !d.patchset {
		return fmt.Errorf("%w: changeset UPDATE must supply old and new values", ErrBadRow)
	}
	if len(new) != schema.ColumnCount() {
		return fmt.Errorf("%w: update column count mismatch", ErrBadRow)
	}
	pk, err := schema.ExtractPK(new)
	if err != nil {
		return err
	}
	old := buildPKOnlyRow(schema.ColumnCount(), schema.PKIndices(), pk)
	if isNoopUpdate(old, new) {
		return nil
	}
	return d.addOperation(schema, pk, updateOp(old, cloneRow(new)))
}

func checkFullRow(schema TableSchema, row []wire.Value) error {
	if len(row) != schema.ColumnCount() {
		return fmt.Errorf("%w: row has %d columns, table has %d", ErrBadRow, len(row), schema.ColumnCount())
	}
	for _, v := range row {
		if v.IsUndefined() {
			return fmt.Errorf("%w: INSERT/changeset-DELETE rows must not contain Undefined", ErrBadRow)
		}
	}
	return nil
}

func cloneRow(row []wire.Value) []wire.Value {
	out := make([]wire.Value, len(row))
	copy(out, row)
	return out
}

// peekOperation returns the operation currently recorded for pk under
// schema, if any, without mutating d.
func (d *DiffSet) peekOperation(schema TableSchema, pk []wire.Value) (Operation, bool) {
	te, ok := d.tables.Get(schema.key())
	if !ok {
		return Operation{}, false
	}
	entry, ok := te.rows.Get(pkKey(pk))
	if !ok {
		return Operation{}, false
	}
	return entry.op, true
}

// addOperation merges newOp into whatever is already recorded for pk
// under schema, per the consolidation rules in operation.go.
func (d *DiffSet) addOperation(schema TableSchema, pk []wire.Value, newOp Operation) error {
	te := d.ensureTable(schema)
	key := pkKey(pk)

	existing, found := te.rows.Get(key)
	if !found {
		te.rows.Set(key, rowEntry{pk: pk, op: newOp})
		return nil
	}

	if existing.op.Kind == KindInsert && newOp.Kind == KindUpdate {
		return d.addInsertUpdateChangingPK(te, schema, key, existing, newOp)
	}

	combined, ok := combine(d.patchset, schema.PKIndices(), existing.op, newOp)
	if !ok {
		te.rows.Delete(key)
		return nil
	}
	te.rows.Set(key, rowEntry{pk: pk, op: combined})
	return nil
}

// addInsertUpdateChangingPK handles the case where an UPDATE combined
// into an existing INSERT changes the row's primary key: the combined
// row must be re-keyed, possibly colliding with (and replacing) a
// different row already recorded at the new key, and re-seated as close
// as possible to its original position.
func (d *DiffSet) addInsertUpdateChangingPK(te *tableEntry, schema TableSchema, key string, existing rowEntry, newOp Operation) error {
	originalIndex, _ := te.rows.IndexOf(key)
	te.rows.Delete(key)

	combined, ok := combine(d.patchset, schema.PKIndices(), existing.op, newOp)
	if !ok {
		return nil
	}
	newPK, err := schema.ExtractPK(combined.Row)
	if err != nil {
		return err
	}
	newKey := pkKey(newPK)
	if newKey != key {
		te.rows.Delete(newKey)
	}

	insertIndex := originalIndex
	if insertIndex > te.rows.Len() {
		insertIndex = te.rows.Len()
	}
	te.rows.InsertAt(insertIndex, newKey, rowEntry{pk: newPK, op: combined})
	return nil
}

// Build serializes d's non-empty tables, in first-touch order, with rows
// emitted in the reference-compatible hash-table order (§4.E).
func (d *DiffSet) Build() []byte {
	var out []byte
	for _, te := range d.tables.Values() {
		if te.rows.Len() == 0 {
			continue
		}
		writeTableHeader(&out, d.patchset, te.schema)

		pks := make([][]wire.Value, te.rows.Len())
		for i, entry := range te.rows.Values() {
			pks[i] = entry.pk
		}
		for _, idx := range sessionRowOrder(pks) {
			_, entry := te.rows.At(idx)
			writeRecord(&out, d.patchset, te.schema, entry)
		}
	}
	return out
}

// Walk calls fn once per pending operation, table by table in
// first-touch order and, within a table, in the same reference-compatible
// hash-table emission order Build uses. It is meant for presentation
// layers (e.g. package sqldigest's Render, or a dump tool) that need to
// inspect a DiffSet's contents without re-parsing its built bytes.
func (d *DiffSet) Walk(fn func(schema TableSchema, op Operation)) {
	for _, te := range d.tables.Values() {
		if te.rows.Len() == 0 {
			continue
		}
		pks := make([][]wire.Value, te.rows.Len())
		for i, entry := range te.rows.Values() {
			pks[i] = entry.pk
		}
		for _, idx := range sessionRowOrder(pks) {
			_, entry := te.rows.At(idx)
			fn(te.schema, entry.op)
		}
	}
}

func writeTableHeader(out *[]byte, patchset bool, schema TableSchema) {
	marker := byte(markerChangeset)
	if patchset {
		marker = markerPatchset
	}
	*out = append(*out, marker)
	*out = append(*out, byte(schema.ColumnCount()))

	flags := make([]byte, schema.ColumnCount())
	schema.writePKFlags(flags)
	*out = append(*out, flags...)

	*out = append(*out, schema.Name()...)
	*out = append(*out, 0)
}

func writeRecord(out *[]byte, patchset bool, schema TableSchema, entry rowEntry) {
	switch entry.op.Kind {
	case KindInsert:
		*out = append(*out, opcodeInsert, 0)
		for _, v := range entry.op.Row {
			*out = wire.Encode(*out, v)
		}
	case KindDelete:
		*out = append(*out, opcodeDelete, 0)
		if patchset {
			for col := 0; col < schema.ColumnCount(); col++ {
				if schema.PKFlag(col) > 0 {
					*out = wire.Encode(*out, entry.op.Row[col])
				}
			}
		} else {
			for _, v := range entry.op.Row {
				*out = wire.Encode(*out, v)
			}
		}
	case KindUpdate:
		*out = append(*out, opcodeUpdate, 0)
		for _, v := range entry.op.Old {
			*out = wire.Encode(*out, v)
		}
		for _, v := range entry.op.New {
			*out = wire.Encode(*out, v)
		}
	}
}

// hashAppend is the core mixing step used by the reference hash table:
// h ← (h << 3) xor h xor add.
func hashAppend(h, add uint32) uint32 {
	return (h << 3) ^ h ^ add
}

// hashPK folds a primary-key tuple into a 32-bit hash by running
// hashAppend over every byte of each column's canonical, varint-prefixed
// wire encoding, in PK-ordinal order.
func hashPK(pk []wire.Value) uint32 {
	var h uint32
	for _, v := range pk {
		buf := wire.Encode(nil, v)
		for _, b := range buf {
			h = hashAppend(h, uint32(b))
		}
	}
	return h
}

// sessionRowOrder simulates the reference's open-addressing-chained hash
// table to recover the row emission order for a table given its rows'
// primary keys, in first-touch order. It returns indices into pks.
func sessionRowOrder(pks [][]wire.Value) []int {
	n := len(pks)
	if n == 0 {
		return nil
	}

	var buckets [][]int
	nChange := 0

	for idx := 0; idx < n; idx++ {
		if nChange == 0 || idx >= nChange/2 {
			newSize := 256
			if nChange != 0 {
				newSize = nChange * 2
			}
			newBuckets := make([][]int, newSize)
			for _, oldBucket := range buckets {
				for i := len(oldBucket) - 1; i >= 0; i-- {
					entryIdx := oldBucket[i]
					h := int(hashPK(pks[entryIdx]) % uint32(newSize))
					newBuckets[h] = append(newBuckets[h], entryIdx)
				}
			}
			buckets = newBuckets
			nChange = newSize
		}

		h := int(hashPK(pks[idx]) % uint32(nChange))
		buckets[h] = append(buckets[h], idx)
	}

	order := make([]int, 0, n)
	for _, bucket := range buckets {
		for i := len(bucket) - 1; i >= 0; i-- {
			order = append(order, bucket[i])
		}
	}
	return order
}

// Reverse returns the changeset that undoes d: INSERT and DELETE swap,
// and UPDATE's old/new column pairs swap. It is only valid on a
// changeset DiffSet.
func (d *DiffSet) Reverse() (*DiffSet, error) {
	if d.patchset {
		return nil, fmt.Errorf("%w: patchsets cannot be reversed", ErrBadRow)
	}
	reversed := NewChangeSet()
	for _, te := range d.tables.Values() {
		for _, entry := range te.rows.Values() {
			revOp := entry.op.Reverse()
			var revPK []wire.Value
			var err error
			switch revOp.Kind {
			case KindInsert, KindDelete:
				revPK, err = te.schema.ExtractPK(revOp.Row)
			case KindUpdate:
				revPK, err = te.schema.ExtractPK(revOp.Old)
			}
			if err != nil {
				return nil, err
			}
			if err := reversed.addOperation(te.schema, revPK, revOp); err != nil {
				return nil, err
			}
		}
	}
	return reversed, nil
}
