package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanwade90/sqlite-changeset/wire"
)

func usersSchema(t *testing.T) TableSchema {
	t.Helper()
	s, err := NewTableSchema("users", 2, []byte{1, 0})
	require.NoError(t, err)
	return s
}

func TestBuildEmptyDiffSetProducesNoBytes(t *testing.T) {
	d := NewChangeSet()
	assert.Empty(t, d.Build())
}

func TestBuildSingleInsert(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	require.NoError(t, d.Insert(schema, row(wire.Integer(1), wire.Text("a"))))

	out := d.Build()
	require.NotEmpty(t, out)
	assert.Equal(t, byte('T'), out[0])
	assert.Equal(t, byte(2), out[1])
	assert.Equal(t, byte(1), out[2])
	assert.Equal(t, byte(0), out[3])
	assert.Equal(t, "users", string(out[4:9]))
	assert.Equal(t, byte(0), out[9])
	assert.Equal(t, byte(opcodeInsert), out[10])
	assert.Equal(t, byte(0), out[11])
}

func TestInsertThenDeleteCancelsOut(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	r := row(wire.Integer(1), wire.Text("a"))
	require.NoError(t, d.Insert(schema, r))
	require.NoError(t, d.Delete(schema, r))

	assert.True(t, d.IsEmpty())
	assert.Empty(t, d.Build())
}

func TestInsertThenUpdateBecomesInsertWithNewValues(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	require.NoError(t, d.Insert(schema, row(wire.Integer(1), wire.Text("alice"))))
	require.NoError(t, d.Update(schema,
		row(wire.Integer(1), wire.Text("alice")),
		row(wire.Integer(1), wire.Text("bob")),
	))

	assert.Equal(t, 1, d.Len())
	te, _ := d.tables.Get(schema.key())
	entry, _ := te.rows.Get(pkKey(row(wire.Integer(1))))
	require.Equal(t, KindInsert, entry.op.Kind)
	assert.Equal(t, row(wire.Integer(1), wire.Text("bob")), entry.op.Row)
}

func TestInsertThenUpdateChangingPKRekeys(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	require.NoError(t, d.Insert(schema, row(wire.Integer(1), wire.Text("alice"))))
	require.NoError(t, d.Update(schema,
		row(wire.Integer(1), wire.Text("alice")),
		row(wire.Integer(2), wire.Text("alice")),
	))

	assert.Equal(t, 1, d.Len())
	te, _ := d.tables.Get(schema.key())
	_, ok := te.rows.Get(pkKey(row(wire.Integer(1))))
	assert.False(t, ok)
	entry, ok := te.rows.Get(pkKey(row(wire.Integer(2))))
	require.True(t, ok)
	assert.Equal(t, row(wire.Integer(2), wire.Text("alice")), entry.op.Row)
}

func TestDeleteThenInsertSameValuesCancelsOut(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	r := row(wire.Integer(1), wire.Text("a"))
	require.NoError(t, d.Delete(schema, r))
	require.NoError(t, d.Insert(schema, r))
	assert.True(t, d.IsEmpty())
}

func TestDeleteThenInsertDifferentValuesBecomesUpdate(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	require.NoError(t, d.Delete(schema, row(wire.Integer(1), wire.Text("a"))))
	require.NoError(t, d.Insert(schema, row(wire.Integer(1), wire.Text("b"))))
	assert.Equal(t, 1, d.Len())
}

func TestMultipleRowsOrderedByHashSimulation(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, d.Insert(schema, row(wire.Integer(i), wire.Text("x"))))
	}
	out := d.Build()
	assert.NotEmpty(t, out)

	// Every row should appear exactly once in the output, in hash-table
	// order. hashPK(Integer(i)) is (1<<24)^1^i, so with 256 buckets rows
	// 1..5 land in buckets 0, 3, 2, 5, 4 and are emitted as 1, 3, 2, 5, 4.
	count := 0
	var ids []int64
	for pos := 0; pos < len(out); {
		if pos == 0 {
			pos += 1 + 1 + schema.ColumnCount() + len("users") + 1
		}
		if pos >= len(out) {
			break
		}
		assert.Equal(t, byte(opcodeInsert), out[pos])
		pos += 2
		id, n1, err := wire.Decode(out[pos:])
		require.NoError(t, err)
		ids = append(ids, id.Int())
		pos += n1
		_, n2, err := wire.Decode(out[pos:])
		require.NoError(t, err)
		pos += n2
		count++
	}
	assert.Equal(t, 5, count)
	assert.Equal(t, []int64{1, 3, 2, 5, 4}, ids)
}

func TestPatchsetDeleteWritesOnlyPKColumns(t *testing.T) {
	d := NewPatchSet()
	schema := usersSchema(t)
	require.NoError(t, d.DeletePK(schema, row(wire.Integer(1))))

	out := d.Build()
	require.NotEmpty(t, out)
	assert.Equal(t, byte('P'), out[0])

	headerLen := 1 + 1 + schema.ColumnCount() + len("users") + 1
	assert.Equal(t, byte(opcodeDelete), out[headerLen])
	assert.Equal(t, byte(0), out[headerLen+1])
	v, n, err := wire.Decode(out[headerLen+2:])
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int())
	assert.Equal(t, headerLen+2+n, len(out))
}

func TestReverseChangesetInsertBecomesDelete(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	require.NoError(t, d.Insert(schema, row(wire.Integer(1), wire.Text("a"))))

	reversed, err := d.Reverse()
	require.NoError(t, err)
	te, _ := reversed.tables.Get(schema.key())
	entry, _ := te.rows.Get(pkKey(row(wire.Integer(1))))
	assert.Equal(t, KindDelete, entry.op.Kind)
}

func TestReverseTwiceProducesIdenticalBytes(t *testing.T) {
	d := NewChangeSet()
	schema := usersSchema(t)
	require.NoError(t, d.Insert(schema, row(wire.Integer(1), wire.Text("a"))))
	require.NoError(t, d.Insert(schema, row(wire.Integer(2), wire.Text("b"))))

	once, err := d.Reverse()
	require.NoError(t, err)
	twice, err := once.Reverse()
	require.NoError(t, err)

	assert.Equal(t, d.Build(), twice.Build())
}

func TestReverseRejectsPatchset(t *testing.T) {
	d := NewPatchSet()
	_, err := d.Reverse()
	assert.ErrorIs(t, err, ErrBadRow)
}

func TestSessionRowOrderGrowsBucketsPastThreshold(t *testing.T) {
	var pks [][]wire.Value
	for i := int64(0); i < 300; i++ {
		pks = append(pks, row(wire.Integer(i)))
	}
	order := sessionRowOrder(pks)
	assert.Len(t, order, 300)

	seen := make(map[int]bool)
	for _, idx := range order {
		assert.False(t, seen[idx], "index %d emitted twice", idx)
		seen[idx] = true
	}
}
