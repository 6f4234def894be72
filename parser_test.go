package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanwade90/sqlite-changeset/wire"
)

func TestParseEmptyInputYieldsEmptyChangeset(t *testing.T) {
	d, err := Parse(nil)
	require.NoError(t, err)
	assert.False(t, d.IsPatchset())
	assert.True(t, d.IsEmpty())
}

func TestParseRoundtripsBuiltChangeset(t *testing.T) {
	schema := usersSchema(t)
	built := NewChangeSet()
	require.NoError(t, built.Insert(schema, row(wire.Integer(1), wire.Text("alice"))))
	require.NoError(t, built.Insert(schema, row(wire.Integer(2), wire.Text("bob"))))
	bytes := built.Build()

	parsed, err := Parse(bytes)
	require.NoError(t, err)
	assert.Equal(t, bytes, parsed.Build())
}

func TestParseRoundtripsBuiltPatchset(t *testing.T) {
	schema := usersSchema(t)
	built := NewPatchSet()
	require.NoError(t, built.Insert(schema, row(wire.Integer(1), wire.Text("alice"))))
	require.NoError(t, built.DeletePK(schema, row(wire.Integer(2))))
	bytes := built.Build()

	parsed, err := Parse(bytes)
	require.NoError(t, err)
	assert.True(t, parsed.IsPatchset())
	assert.Equal(t, bytes, parsed.Build())
}

func TestParseRoundtripsUpdate(t *testing.T) {
	schema := usersSchema(t)
	built := NewChangeSet()
	require.NoError(t, built.Update(schema,
		row(wire.Integer(1), wire.Text("a")),
		row(wire.Integer(1), wire.Text("b")),
	))
	bytes := built.Build()

	parsed, err := Parse(bytes)
	require.NoError(t, err)
	assert.Equal(t, bytes, parsed.Build())
}

func TestParseInvalidMarker(t *testing.T) {
	_, err := Parse([]byte{0xff})
	assert.ErrorIs(t, err, ErrInvalidMarker)
}

func TestParseTruncatedHeader(t *testing.T) {
	_, err := Parse([]byte{'T'})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseBadColumnCount(t *testing.T) {
	_, err := Parse([]byte{'T', 0})
	assert.ErrorIs(t, err, ErrBadColumnCount)
}

func TestParseMixedFormatRejected(t *testing.T) {
	schema := usersSchema(t)
	built := NewChangeSet()
	require.NoError(t, built.Insert(schema, row(wire.Integer(1), wire.Text("a"))))
	bytes := built.Build()

	patchsetHeader := []byte{'P', 2, 1, 0, 'u', 's', 'e', 'r', 's', 0}
	mixed := append(bytes, patchsetHeader...)

	_, err := Parse(mixed)
	assert.ErrorIs(t, err, ErrMixedFormat)
}

func TestParseDuplicateKeyRejectsConflictingRecords(t *testing.T) {
	header := []byte{'T', 2, 1, 0, 'u', 's', 'e', 'r', 's', 0}
	rec1 := append([]byte{opcodeInsert, 0}, wire.Encode(nil, wire.Integer(1))...)
	rec1 = append(rec1, wire.Encode(nil, wire.Text("a"))...)
	rec2 := append([]byte{opcodeInsert, 0}, wire.Encode(nil, wire.Integer(1))...)
	rec2 = append(rec2, wire.Encode(nil, wire.Text("b"))...)

	data := append(append([]byte{}, header...), rec1...)
	data = append(data, rec2...)

	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestParseDuplicateKeyToleratesIdenticalRecords(t *testing.T) {
	header := []byte{'T', 2, 1, 0, 'u', 's', 'e', 'r', 's', 0}
	rec := append([]byte{opcodeInsert, 0}, wire.Encode(nil, wire.Integer(1))...)
	rec = append(rec, wire.Encode(nil, wire.Text("a"))...)

	data := append(append([]byte{}, header...), rec...)
	data = append(data, rec...)

	d, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}

func TestParseUnknownOpcode(t *testing.T) {
	header := []byte{'T', 1, 1, 'u', 's', 'e', 'r', 0}
	data := append(append([]byte{}, header...), 0xAB, 0)
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrUnknownOpcode)
}
