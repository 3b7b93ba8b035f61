package dlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndAt(t *testing.T) {
	d := New[int](nil)
	for i := 0; i < 50; i++ {
		d.Append(i)
	}
	require.Equal(t, 50, d.Len())
	for i := 0; i < 50; i++ {
		assert.Equal(t, i, d.At(i))
	}
}

func TestSpillsPastInlineSize(t *testing.T) {
	d := New[int](nil)
	for i := 0; i < inlineSize+5; i++ {
		d.Append(i)
	}
	assert.Equal(t, inlineSize+5, d.Len())
	assert.Equal(t, inlineSize+4, d.At(inlineSize+4))
}

func TestDeletePreservesOrder(t *testing.T) {
	d := New[string](nil)
	d.Append("a")
	d.Append("b")
	d.Append("c")
	d.Delete(1)
	assert.Equal(t, []string{"a", "c"}, d.Slice())
}

func TestDeleteInvokesFreeFunc(t *testing.T) {
	var freed []int
	d := New[int](func(v int) { freed = append(freed, v) })
	d.Append(1)
	d.Append(2)
	d.Delete(0)
	assert.Equal(t, []int{1}, freed)
}

func TestResetInvokesFreeFuncForAll(t *testing.T) {
	var freed []int
	d := New[int](func(v int) { freed = append(freed, v) })
	d.Append(1)
	d.Append(2)
	d.Reset()
	assert.Equal(t, []int{1, 2}, freed)
	assert.Equal(t, 0, d.Len())
}
