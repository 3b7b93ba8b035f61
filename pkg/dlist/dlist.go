// Package dlist implements a small generic dynamic list, with a
// small-buffer optimization so short lists need no backing slice. No
// other package in this module imports it.
package dlist

// inlineSize is the small-buffer capacity below which DList never
// allocates a backing slice, matching the original's "at least 30 inline
// elements" budget.
const inlineSize = 30

// FreeFunc is invoked once per removed element, e.g. to release resources
// an element owns. It may be nil.
type FreeFunc[T any] func(T)

// DList is a dynamic array of T with inline storage for up to inlineSize
// elements before it spills to a heap-backed slice.
type DList[T any] struct {
	inline    [inlineSize]T
	n         int
	overflow  []T
	freeFn    FreeFunc[T]
}

// New creates an empty DList with an optional per-element free function
// invoked by Delete and Reset.
func New[T any](free FreeFunc[T]) *DList[T] {
	return &DList[T]{freeFn: free}
}

// Len returns the number of elements currently stored.
func (d *DList[T]) Len() int { return d.n }

// Append adds v to the end of the list.
func (d *DList[T]) Append(v T) {
	if d.n < inlineSize {
		d.inline[d.n] = v
		d.n++
		return
	}
	d.overflow = append(d.overflow, v)
	d.n++
}

// At returns the element at index i.
func (d *DList[T]) At(i int) T {
	if i < inlineSize {
		return d.inline[i]
	}
	return d.overflow[i-inlineSize]
}

// Set overwrites the element at index i.
func (d *DList[T]) Set(i int, v T) {
	if i < inlineSize {
		d.inline[i] = v
		return
	}
	d.overflow[i-inlineSize] = v
}

// SetCapacity ensures the overflow backing slice can hold at least n
// elements beyond the inline buffer without further reallocation.
func (d *DList[T]) SetCapacity(n int) {
	if n <= inlineSize {
		return
	}
	need := n - inlineSize
	if cap(d.overflow) >= need {
		return
	}
	grown := make([]T, len(d.overflow), need)
	copy(grown, d.overflow)
	d.overflow = grown
}

// Delete removes the element at index i, preserving order, and invokes the
// free function (if any) on the removed element.
func (d *DList[T]) Delete(i int) {
	v := d.At(i)
	for j := i; j < d.n-1; j++ {
		d.Set(j, d.At(j+1))
	}
	d.n--
	if d.n < inlineSize {
		var zero T
		if d.n < len(d.overflow)+inlineSize {
			// nothing further to shrink; overflow slice shrinks lazily
		}
		_ = zero
	} else {
		d.overflow = d.overflow[:d.n-inlineSize]
	}
	if d.freeFn != nil {
		d.freeFn(v)
	}
}

// Reset empties the list, invoking the free function (if any) on every
// element first.
func (d *DList[T]) Reset() {
	if d.freeFn != nil {
		for i := 0; i < d.n; i++ {
			d.freeFn(d.At(i))
		}
	}
	d.n = 0
	d.overflow = d.overflow[:0]
}

// Slice materializes the list's contents into a plain slice.
func (d *DList[T]) Slice() []T {
	out := make([]T, d.n)
	for i := 0; i < d.n; i++ {
		out[i] = d.At(i)
	}
	return out
}
