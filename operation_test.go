package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanwade90/sqlite-changeset/wire"
)

func row(vs ...wire.Value) []wire.Value { return vs }

func TestCombineInsertInsertKeepsFirst(t *testing.T) {
	r1 := row(wire.Integer(1), wire.Text("a"))
	r2 := row(wire.Integer(1), wire.Text("b"))
	result, ok := combine(false, nil, insertOp(r1), insertOp(r2))
	require.True(t, ok)
	assert.Equal(t, r1, result.Row)
}

func TestCombineInsertUpdateOverlays(t *testing.T) {
	r := row(wire.Integer(1), wire.Text("a"), wire.Integer(9))
	upd := updateOp(
		row(wire.Integer(1), wire.Text("a"), wire.Integer(9)),
		row(wire.Undefined, wire.Text("b"), wire.Undefined),
	)
	result, ok := combine(false, nil, insertOp(r), upd)
	require.True(t, ok)
	assert.Equal(t, KindInsert, result.Kind)
	assert.Equal(t, row(wire.Integer(1), wire.Text("b"), wire.Integer(9)), result.Row)
}

func TestCombineInsertDeleteAnnihilates(t *testing.T) {
	r := row(wire.Integer(1), wire.Text("a"))
	_, ok := combine(false, nil, insertOp(r), deleteOp(r))
	assert.False(t, ok)
}

func TestCombineUpdateInsertKeepsUpdate(t *testing.T) {
	upd := updateOp(row(wire.Integer(1), wire.Text("a")), row(wire.Integer(1), wire.Text("b")))
	result, ok := combine(false, nil, upd, insertOp(row(wire.Integer(1), wire.Text("b"))))
	require.True(t, ok)
	assert.Equal(t, KindUpdate, result.Kind)
	assert.Equal(t, upd.New, result.New)
}

func TestCombineUpdateUpdateMerges(t *testing.T) {
	u1 := updateOp(
		row(wire.Integer(1), wire.Text("a"), wire.Undefined),
		row(wire.Integer(1), wire.Text("b"), wire.Undefined),
	)
	u2 := updateOp(
		row(wire.Integer(1), wire.Undefined, wire.Undefined),
		row(wire.Integer(1), wire.Undefined, wire.Integer(5)),
	)
	result, ok := combine(false, nil, u1, u2)
	require.True(t, ok)
	assert.Equal(t, row(wire.Integer(1), wire.Text("a"), wire.Undefined), result.Old)
	assert.Equal(t, row(wire.Integer(1), wire.Text("b"), wire.Integer(5)), result.New)
}

func TestCombineUpdateUpdateNoopDrops(t *testing.T) {
	u1 := updateOp(
		row(wire.Integer(1), wire.Text("a")),
		row(wire.Integer(1), wire.Text("b")),
	)
	u2 := updateOp(
		row(wire.Integer(1), wire.Text("b")),
		row(wire.Integer(1), wire.Text("a")),
	)
	_, ok := combine(false, nil, u1, u2)
	assert.False(t, ok)
}

func TestCombineUpdateDeleteChangeset(t *testing.T) {
	u := updateOp(row(wire.Integer(1), wire.Text("a")), row(wire.Integer(1), wire.Text("b")))
	result, ok := combine(false, []int{0}, u, deleteOp(nil))
	require.True(t, ok)
	assert.Equal(t, KindDelete, result.Kind)
	assert.Equal(t, u.Old, result.Row)
}

func TestCombineUpdateDeletePatchset(t *testing.T) {
	u := updateOp(row(wire.Integer(1), wire.Text("a")), row(wire.Integer(1), wire.Text("b")))
	result, ok := combine(true, []int{0}, u, deleteOp(nil))
	require.True(t, ok)
	assert.Equal(t, KindDelete, result.Kind)
	assert.Equal(t, row(wire.Integer(1), wire.Undefined), result.Row)
}

func TestCombineDeleteInsertSameCancelsChangeset(t *testing.T) {
	r := row(wire.Integer(1), wire.Text("a"))
	_, ok := combine(false, nil, deleteOp(r), insertOp(r))
	assert.False(t, ok)
}

func TestCombineDeleteInsertDifferentBecomesUpdateChangeset(t *testing.T) {
	r1 := row(wire.Integer(1), wire.Text("a"))
	r2 := row(wire.Integer(1), wire.Text("b"))
	result, ok := combine(false, nil, deleteOp(r1), insertOp(r2))
	require.True(t, ok)
	assert.Equal(t, KindUpdate, result.Kind)
	assert.Equal(t, r1, result.Old)
	assert.Equal(t, r2, result.New)
}

func TestCombineDeleteInsertAlwaysUpdatePatchset(t *testing.T) {
	pkOnly := row(wire.Integer(1), wire.Undefined)
	r2 := row(wire.Integer(1), wire.Text("b"))
	result, ok := combine(true, nil, deleteOp(pkOnly), insertOp(r2))
	require.True(t, ok)
	assert.Equal(t, KindUpdate, result.Kind)
}

func TestCombineDeleteUpdateKeepsDelete(t *testing.T) {
	r := row(wire.Integer(1), wire.Text("a"))
	result, ok := combine(false, nil, deleteOp(r), updateOp(r, r))
	require.True(t, ok)
	assert.Equal(t, KindDelete, result.Kind)
}

func TestCombineDeleteDeleteKeepsFirst(t *testing.T) {
	r1 := row(wire.Integer(1), wire.Text("a"))
	r2 := row(wire.Integer(1), wire.Text("b"))
	result, ok := combine(false, nil, deleteOp(r1), deleteOp(r2))
	require.True(t, ok)
	assert.Equal(t, r1, result.Row)
}

func TestReverseInsertBecomesDelete(t *testing.T) {
	r := row(wire.Integer(1), wire.Text("a"))
	rev := insertOp(r).Reverse()
	assert.Equal(t, KindDelete, rev.Kind)
	assert.Equal(t, r, rev.Row)
}

func TestReverseUpdateSwapsOldNew(t *testing.T) {
	u := updateOp(row(wire.Text("a")), row(wire.Text("b")))
	rev := u.Reverse()
	assert.Equal(t, u.New, rev.Old)
	assert.Equal(t, u.Old, rev.New)
}

func TestReverseIsInvolutory(t *testing.T) {
	u := updateOp(row(wire.Text("a"), wire.Undefined), row(wire.Undefined, wire.Integer(5)))
	twice := u.Reverse().Reverse()
	assert.Equal(t, u, twice)
}
