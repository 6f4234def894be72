package omap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertionOrderPreserved(t *testing.T) {
	m := New[string, int]()
	m.Set("c", 3)
	m.Set("a", 1)
	m.Set("b", 2)
	assert.Equal(t, []string{"c", "a", "b"}, m.Keys())
}

func TestSetExistingKeepsPosition(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 100)
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 100, v)
}

func TestDeleteShiftsFollowingEntries(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)
	assert.True(t, m.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.Equal(t, []int{1, 3}, m.Values())

	v, ok := m.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestDeleteThenReinsertGoesToEnd(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Delete("a")
	m.Set("a", 10)
	assert.Equal(t, []string{"b", "a"}, m.Keys())
}

func TestDeleteMissingKey(t *testing.T) {
	m := New[string, int]()
	assert.False(t, m.Delete("nope"))
}

func TestEachVisitsInOrder(t *testing.T) {
	m := New[int, string]()
	m.Set(3, "c")
	m.Set(1, "a")
	var keys []int
	m.Each(func(k int, v string) { keys = append(keys, k) })
	assert.Equal(t, []int{3, 1}, keys)
}
