// Package wal2jsonlite adapts wal2json's per-tuple v2 JSON lines
// (https://github.com/eulerto/wal2json) into patchset operations on a
// changeset.DiffSet. It is deliberately minimal: a single source-level
// shape and a single translation function, meant to demonstrate the seam
// between a change-data-capture stream and the builder rather than to be
// a production Postgres logical-replication client. It imports neither a
// Postgres driver nor a message broker client.
package wal2jsonlite

import (
	"fmt"

	json "github.com/goccy/go-json"

	changeset "github.com/jordanwade90/sqlite-changeset"
	"github.com/jordanwade90/sqlite-changeset/wire"
)

// Action is wal2json v2's per-message operation tag.
type Action string

const (
	ActionInsert Action = "I"
	ActionUpdate Action = "U"
	ActionDelete Action = "D"
)

// Column is one column value as wal2json reports it: a name, a Postgres
// type name (unused by this adapter beyond documentation), and a raw
// JSON-encoded value.
type Column struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Message is one wal2json v2 line: a single tuple change. Columns holds
// the new row for I/U; Identity holds the old row's identity columns for
// U/D.
type Message struct {
	Action   Action   `json:"action"`
	Schema   string   `json:"schema"`
	Table    string   `json:"table"`
	Columns  []Column `json:"columns"`
	Identity []Column `json:"identity"`
}

// ParseLine decodes one wal2json v2 JSON line.
func ParseLine(line []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, fmt.Errorf("wal2jsonlite: malformed message: %w", err)
	}
	return m, nil
}

// RowEvent is the minimal seam a CDC source adapter must implement to
// feed a patchset DiffSet: one database row mutation, already resolved
// against a table's column order.
type RowEvent interface {
	// TableName is the name the event's target table is registered
	// under in the destination DiffSet.
	TableName() string
	// Apply forwards the event's row values into dst using schema's
	// column order.
	Apply(dst *changeset.DiffSet, schema changeset.NamedTableSchema) error
}

// insertEvent, updateEvent, and deleteEvent implement RowEvent for the
// three wal2json action kinds; ToRowEvent returns the concrete value as
// a RowEvent so callers can batch heterogeneous events before applying
// them.
type insertEvent struct {
	table   string
	columns []Column
}

type updateEvent struct {
	table    string
	columns  []Column
	identity []Column
}

type deleteEvent struct {
	table    string
	identity []Column
}

func (e insertEvent) TableName() string { return e.table }
func (e updateEvent) TableName() string { return e.table }
func (e deleteEvent) TableName() string { return e.table }

func (e insertEvent) Apply(dst *changeset.DiffSet, schema changeset.NamedTableSchema) error {
	row, err := buildRow(schema, e.columns)
	if err != nil {
		return err
	}
	return dst.Insert(schema.TableSchema, row)
}

func (e updateEvent) Apply(dst *changeset.DiffSet, schema changeset.NamedTableSchema) error {
	row := make([]wire.Value, schema.ColumnCount())
	for i := range row {
		row[i] = wire.Undefined
	}
	for _, c := range e.columns {
		idx := schema.ColumnIndex(c.Name)
		if idx < 0 {
			return fmt.Errorf("wal2jsonlite: column %q not found in table %q", c.Name, schema.Name())
		}
		v, err := decodeValue(c.Value)
		if err != nil {
			return err
		}
		row[idx] = v
	}
	for _, c := range e.identity {
		idx := schema.ColumnIndex(c.Name)
		if idx < 0 {
			return fmt.Errorf("wal2jsonlite: identity column %q not found in table %q", c.Name, schema.Name())
		}
		if schema.PKFlag(idx) == 0 {
			continue
		}
		if row[idx].IsUndefined() {
			v, err := decodeValue(c.Value)
			if err != nil {
				return err
			}
			row[idx] = v
		}
	}
	return dst.UpdateNew(schema.TableSchema, row)
}

func (e deleteEvent) Apply(dst *changeset.DiffSet, schema changeset.NamedTableSchema) error {
	pk := make([]wire.Value, len(schema.PKIndices()))
	for i := range pk {
		pk[i] = wire.Undefined
	}
	indices := schema.PKIndices()
	for _, c := range e.identity {
		idx := schema.ColumnIndex(c.Name)
		if idx < 0 {
			continue
		}
		for pos, pkIdx := range indices {
			if pkIdx == idx {
				v, err := decodeValue(c.Value)
				if err != nil {
					return err
				}
				pk[pos] = v
			}
		}
	}
	for _, v := range pk {
		if v.IsUndefined() {
			return fmt.Errorf("wal2jsonlite: DELETE on %q missing identity for a primary key column", schema.Name())
		}
	}
	return dst.DeletePK(schema.TableSchema, pk)
}

// ToRowEvent converts a decoded wal2json message into the RowEvent its
// action implies.
func ToRowEvent(m Message) (RowEvent, error) {
	switch m.Action {
	case ActionInsert:
		return insertEvent{table: m.Table, columns: m.Columns}, nil
	case ActionUpdate:
		return updateEvent{table: m.Table, columns: m.Columns, identity: m.Identity}, nil
	case ActionDelete:
		return deleteEvent{table: m.Table, identity: m.Identity}, nil
	default:
		return nil, fmt.Errorf("wal2jsonlite: unsupported action %q (only I/U/D carry row data)", m.Action)
	}
}

func buildRow(schema changeset.NamedTableSchema, columns []Column) ([]wire.Value, error) {
	row := make([]wire.Value, schema.ColumnCount())
	for i := range row {
		row[i] = wire.Null()
	}
	for _, c := range columns {
		idx := schema.ColumnIndex(c.Name)
		if idx < 0 {
			return nil, fmt.Errorf("wal2jsonlite: column %q not found in table %q", c.Name, schema.Name())
		}
		v, err := decodeValue(c.Value)
		if err != nil {
			return nil, err
		}
		row[idx] = v
	}
	return row, nil
}

// decodeValue maps a wal2json column's raw JSON value onto a wire.Value.
// wal2json reports Postgres values as JSON scalars; this adapter keeps
// the mapping JSON-native (number, string, bool-as-integer, null) rather
// than attempting full Postgres-type-aware decoding, consistent with it
// being a demonstration seam rather than a complete Postgres client.
func decodeValue(raw json.RawMessage) (wire.Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return wire.Value{}, fmt.Errorf("wal2jsonlite: malformed column value: %w", err)
	}
	switch t := v.(type) {
	case nil:
		return wire.Null(), nil
	case bool:
		if t {
			return wire.Integer(1), nil
		}
		return wire.Integer(0), nil
	case float64:
		if t == float64(int64(t)) {
			return wire.Integer(int64(t)), nil
		}
		return wire.Real(t), nil
	case string:
		return wire.Text(t), nil
	default:
		return wire.Value{}, fmt.Errorf("wal2jsonlite: unsupported column value shape %T", v)
	}
}

// Apply is a convenience for the common single-event case: parse one
// line and forward it straight into dst.
func Apply(dst *changeset.DiffSet, schema changeset.NamedTableSchema, line []byte) error {
	msg, err := ParseLine(line)
	if err != nil {
		return err
	}
	event, err := ToRowEvent(msg)
	if err != nil {
		return err
	}
	if event.TableName() != schema.Name() {
		return fmt.Errorf("wal2jsonlite: message table %q does not match schema %q", event.TableName(), schema.Name())
	}
	return event.Apply(dst, schema)
}
