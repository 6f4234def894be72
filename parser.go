package changeset

import (
	"errors"
	"fmt"

	"github.com/jordanwade90/sqlite-changeset/wire"
)

// Parse decodes arbitrary changeset or patchset bytes into a populated
// DiffSet. Empty input parses to an empty changeset. The format
// (changeset vs. patchset) is fixed by the first table marker; any later
// table section using the other marker fails with ErrMixedFormat.
//
// Every decoded row is routed through the same consolidation rules a
// caller driving the builder directly would trigger (§4.D); a
// well-formed reference payload carries exactly one operation per
// primary key and never actually triggers consolidation, but a second,
// non-identical operation for an already-seen primary key fails with
// ErrDuplicateKey rather than being silently merged.
//
// Parsing never partially commits: on any failure Parse returns an empty
// DiffSet together with the error.
func Parse(data []byte) (*DiffSet, error) {
	if len(data) == 0 {
		return NewChangeSet(), nil
	}

	var patchset bool
	switch data[0] {
	case markerChangeset:
		patchset = false
	case markerPatchset:
		patchset = true
	default:
		return NewChangeSet(), fmt.Errorf("%w: 0x%02x", ErrInvalidMarker, data[0])
	}

	d := NewChangeSet()
	if patchset {
		d = NewPatchSet()
	}

	pos := 0
	for pos < len(data) {
		schema, gotPatchset, n, err := parseTableHeader(data[pos:])
		if err != nil {
			return NewChangeSet(), err
		}
		if gotPatchset != patchset {
			return NewChangeSet(), fmt.Errorf("%w: table section at byte %d", ErrMixedFormat, pos)
		}
		pos += n
		d.AddTable(schema)

		for pos < len(data) {
			b := data[pos]
			if b == markerChangeset || b == markerPatchset {
				break
			}
			n, err := parseRecord(d, schema, patchset, data[pos:])
			if err != nil {
				return NewChangeSet(), err
			}
			pos += n
		}
	}

	return d, nil
}

// parseTableHeader decodes one table-section header: marker, column
// count, PK-ordinal vector, and NUL-terminated name.
func parseTableHeader(data []byte) (schema TableSchema, patchset bool, n int, err error) {
	if len(data) < 1 {
		return TableSchema{}, false, 0, ErrTruncated
	}
	switch data[0] {
	case markerChangeset:
		patchset = false
	case markerPatchset:
		patchset = true
	default:
		return TableSchema{}, false, 0, fmt.Errorf("%w: 0x%02x", ErrInvalidMarker, data[0])
	}
	pos := 1

	if pos >= len(data) {
		return TableSchema{}, false, 0, ErrTruncated
	}
	columnCount := int(data[pos])
	pos++
	if columnCount == 0 {
		return TableSchema{}, false, 0, fmt.Errorf("%w: column count must be at least 1", ErrBadColumnCount)
	}

	if pos+columnCount > len(data) {
		return TableSchema{}, false, 0, ErrTruncated
	}
	pkFlags := make([]byte, columnCount)
	copy(pkFlags, data[pos:pos+columnCount])
	pos += columnCount

	nameStart := pos
	for pos < len(data) && data[pos] != 0 {
		pos++
	}
	if pos >= len(data) {
		return TableSchema{}, false, 0, ErrTruncated
	}
	name := string(data[nameStart:pos])
	pos++

	schema, err = NewTableSchema(name, columnCount, pkFlags)
	if err != nil {
		return TableSchema{}, false, 0, err
	}
	return schema, patchset, pos, nil
}

// parseRecord decodes one change record (opcode, indirect flag, values)
// and routes it into d as if it had arrived through the public
// Insert/Update/Delete entry points.
func parseRecord(d *DiffSet, schema TableSchema, patchset bool, data []byte) (int, error) {
	if len(data) < 2 {
		return 0, ErrTruncated
	}
	opcode := data[0]
	pos := 2

	switch opcode {
	case opcodeInsert:
		values, n, err := parseValues(data[pos:], schema.ColumnCount())
		if err != nil {
			return 0, err
		}
		pos += n
		pk, err := schema.ExtractPK(values)
		if err != nil {
			return 0, err
		}
		if err := routeOperation(d, schema, pk, insertOp(values)); err != nil {
			return 0, err
		}

	case opcodeDelete:
		if patchset {
			pkIndices := schema.PKIndices()
			pkValues, n, err := parseValues(data[pos:], len(pkIndices))
			if err != nil {
				return 0, err
			}
			pos += n
			full := expandPKColumnOrder(schema, pkValues)
			pk, err := schema.ExtractPK(full)
			if err != nil {
				return 0, err
			}
			if err := routeOperation(d, schema, pk, deleteOp(full)); err != nil {
				return 0, err
			}
		} else {
			values, n, err := parseValues(data[pos:], schema.ColumnCount())
			if err != nil {
				return 0, err
			}
			pos += n
			pk, err := schema.ExtractPK(values)
			if err != nil {
				return 0, err
			}
			if err := routeOperation(d, schema, pk, deleteOp(values)); err != nil {
				return 0, err
			}
		}

	case opcodeUpdate:
		oldValues, n, err := parseValues(data[pos:], schema.ColumnCount())
		if err != nil {
			return 0, err
		}
		pos += n
		newValues, n, err := parseValues(data[pos:], schema.ColumnCount())
		if err != nil {
			return 0, err
		}
		pos += n

		if patchset {
			pk, err := schema.ExtractPK(newValues)
			if err != nil {
				return 0, err
			}
			old := buildPKOnlyRow(schema.ColumnCount(), schema.PKIndices(), pk)
			if isNoopUpdate(old, newValues) {
				break
			}
			if err := routeOperation(d, schema, pk, updateOp(old, newValues)); err != nil {
				return 0, err
			}
		} else {
			pk, err := schema.ExtractPK(oldValues)
			if err != nil {
				return 0, err
			}
			if isNoopUpdate(oldValues, newValues) {
				break
			}
			if err := routeOperation(d, schema, pk, updateOp(oldValues, newValues)); err != nil {
				return 0, err
			}
		}

	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, opcode)
	}

	return pos, nil
}

// routeOperation merges op into d, but unlike the public builder API it
// refuses to silently consolidate a second, genuinely different
// operation recorded for a primary key already seen in this parse.
func routeOperation(d *DiffSet, schema TableSchema, pk []wire.Value, op Operation) error {
	if existing, found := d.peekOperation(schema, pk); found && !operationsEqual(existing, op) {
		return fmt.Errorf("%w: table %q", ErrDuplicateKey, schema.Name())
	}
	return d.addOperation(schema, pk, op)
}

// expandPKColumnOrder places pkValues into the primary-key columns of a
// full, Undefined-elsewhere row. Unlike buildPKOnlyRow, pkValues are
// consumed in column-index order (matching how the builder writes a
// patchset DELETE record), not primary-key-ordinal order.
func expandPKColumnOrder(schema TableSchema, pkValues []wire.Value) []wire.Value {
	full := make([]wire.Value, schema.ColumnCount())
	for i := range full {
		full[i] = wire.Undefined
	}
	next := 0
	for col := 0; col < schema.ColumnCount(); col++ {
		if schema.PKFlag(col) > 0 {
			full[col] = pkValues[next]
			next++
		}
	}
	return full
}

// parseValues decodes count consecutive wire values.
func parseValues(data []byte, count int) ([]wire.Value, int, error) {
	values := make([]wire.Value, count)
	pos := 0
	for i := 0; i < count; i++ {
		v, n, err := wire.Decode(data[pos:])
		if err != nil {
			if errors.Is(err, wire.ErrUnknownTag) {
				return nil, 0, ErrUnknownValueTag
			}
			return nil, 0, ErrTruncated
		}
		values[i] = v
		pos += n
	}
	return values, pos, nil
}
