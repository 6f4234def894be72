package changeset

import "github.com/jordanwade90/sqlite-changeset/wire"

// Kind identifies which of the three row-change shapes an Operation
// carries.
type Kind int

const (
	KindInsert Kind = iota
	KindDelete
	KindUpdate
)

// Operation is one pending row change for a single primary key, prior to
// serialization. Its shape differs by Kind and, for Delete, by whether
// the owning DiffSet is a changeset or a patchset:
//
//   - Insert: Row holds the full new row (N values, none Undefined).
//   - Delete (changeset): Row holds the full old row.
//   - Delete (patchset): Row holds N values with the PK columns set and
//     every other column Undefined; only the PK columns are written at
//     build time.
//   - Update: Old and New each hold N values; a column that neither
//     update touched is Undefined in both; PK columns are always
//     defined in Old.
type Operation struct {
	Kind Kind
	Row  []wire.Value
	Old  []wire.Value
	New  []wire.Value
}

func insertOp(row []wire.Value) Operation { return Operation{Kind: KindInsert, Row: row} }
func deleteOp(row []wire.Value) Operation { return Operation{Kind: KindDelete, Row: row} }
func updateOp(old, new []wire.Value) Operation {
	return Operation{Kind: KindUpdate, Old: old, New: new}
}

// Reverse returns the changeset-format reverse of op: Insert and Delete
// swap kinds, and Update's old/new column pairs swap. It is only
// meaningful for changeset operations; patchset operations carry
// insufficient information to be reversed and Reverse must not be called
// on them.
func (op Operation) Reverse() Operation {
	switch op.Kind {
	case KindInsert:
		return deleteOp(op.Row)
	case KindDelete:
		return insertOp(op.Row)
	case KindUpdate:
		return updateOp(op.New, op.Old)
	default:
		panic("changeset: unreachable operation kind")
	}
}

// valuesEqual reports whether a and b are the same length and equal
// column by column under wire.Value.Equal.
func valuesEqual(a, b []wire.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// isNoopUpdate reports whether every column of an update is either
// untouched in both directions (Undefined, Undefined) or touched but
// ending at the same value it started from.
func isNoopUpdate(old, new []wire.Value) bool {
	for i := range old {
		switch {
		case old[i].IsUndefined() && new[i].IsUndefined():
			continue
		case old[i].IsUndefined() != new[i].IsUndefined():
			return false
		case !old[i].Equal(new[i]):
			return false
		}
	}
	return true
}

// overlayInsert returns a copy of row with every column overlaid by the
// corresponding non-Undefined entry of newSide, used for the
// INSERT+UPDATE consolidation case.
func overlayInsert(row, newSide []wire.Value) []wire.Value {
	out := make([]wire.Value, len(row))
	copy(out, row)
	for i, v := range newSide {
		if !v.IsUndefined() {
			out[i] = v
		}
	}
	return out
}

// mergeUpdateOld merges the old sides of two chained updates: a column's
// merged old value is whichever of the two sides carries information,
// preferring the earlier (existing) update since it is chronologically
// first.
func mergeUpdateOld(existingOld, incomingOld []wire.Value) []wire.Value {
	out := make([]wire.Value, len(existingOld))
	for i := range existingOld {
		if !existingOld[i].IsUndefined() {
			out[i] = existingOld[i]
		} else {
			out[i] = incomingOld[i]
		}
	}
	return out
}

// mergeUpdateNew merges the new sides of two chained updates: a column's
// merged new value is whichever of the two sides carries information,
// preferring the later (incoming) update since it is chronologically
// last.
func mergeUpdateNew(existingNew, incomingNew []wire.Value) []wire.Value {
	out := make([]wire.Value, len(existingNew))
	for i := range existingNew {
		if !incomingNew[i].IsUndefined() {
			out[i] = incomingNew[i]
		} else {
			out[i] = existingNew[i]
		}
	}
	return out
}

// pkOnlyRow returns a row of the same length as full, with every column
// set to Undefined except the ones named by pkIndices, which are copied
// from full. It builds the patchset representation of a deleted or
// not-otherwise-known row.
func pkOnlyRow(full []wire.Value, pkIndices []int) []wire.Value {
	out := make([]wire.Value, len(full))
	for i := range out {
		out[i] = wire.Undefined
	}
	for _, idx := range pkIndices {
		out[idx] = full[idx]
	}
	return out
}

// operationsEqual reports whether a and b carry the same kind and the
// same column values, used by the parser to distinguish a harmlessly
// repeated record from a genuinely conflicting one.
func operationsEqual(a, b Operation) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInsert, KindDelete:
		return valuesEqual(a.Row, b.Row)
	case KindUpdate:
		return valuesEqual(a.Old, b.Old) && valuesEqual(a.New, b.New)
	default:
		return false
	}
}

// combine merges an incoming operation into an existing one recorded for
// the same (table, row-key) pair, implementing the consolidation table.
// It returns ok == false when the pair annihilates and the row-key entry
// should be removed entirely.
//
// pkIndices is only consulted for the changeset-to-patchset row-shape
// adjustments (UPDATE+DELETE); the caller is responsible for having
// already shaped Delete.Row as the patchset PK-only form when the
// DiffSet is a patchset.
func combine(patchset bool, pkIndices []int, existing, incoming Operation) (result Operation, ok bool) {
	switch existing.Kind {
	case KindInsert:
		switch incoming.Kind {
		case KindInsert:
			return existing, true
		case KindUpdate:
			return insertOp(overlayInsert(existing.Row, incoming.New)), true
		case KindDelete:
			return Operation{}, false
		}
	case KindUpdate:
		switch incoming.Kind {
		case KindInsert:
			return existing, true
		case KindUpdate:
			merged := updateOp(
				mergeUpdateOld(existing.Old, incoming.Old),
				mergeUpdateNew(existing.New, incoming.New),
			)
			if isNoopUpdate(merged.Old, merged.New) {
				return Operation{}, false
			}
			return merged, true
		case KindDelete:
			if patchset {
				return deleteOp(pkOnlyRow(existing.Old, pkIndices)), true
			}
			return deleteOp(existing.Old), true
		}
	case KindDelete:
		switch incoming.Kind {
		case KindInsert:
			if !patchset && valuesEqual(existing.Row, incoming.Row) {
				return Operation{}, false
			}
			return updateOp(existing.Row, incoming.Row), true
		case KindUpdate:
			return existing, true
		case KindDelete:
			return existing, true
		}
	}
	panic("changeset: unreachable operation combination")
}
