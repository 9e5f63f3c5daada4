package bitarray

// NullableLargeArray layers a BitArray ("is-present") over a jagged
// LargeArray, per spec.md §4.2: add finds the first free slot (expanding
// as needed), set_null clears the slot, enumerate yields only present
// elements in index order.
type NullableLargeArray[T any] struct {
	present *BitArray
	values  *LargeArray[T]
}

// NewNullableLargeArray creates an empty NullableLargeArray.
func NewNullableLargeArray[T any]() *NullableLargeArray[T] {
	return &NullableLargeArray[T]{
		present: New(0),
		values:  NewLargeArray[T](),
	}
}

// Add stores v at the first free slot and returns that slot's index.
func (a *NullableLargeArray[T]) Add(v T) uint {
	idx := a.present.FindFirstCleared()
	a.present.Set(idx)
	a.values.Set(idx, v)
	return idx
}

// Get returns the value at i and whether that slot is present.
func (a *NullableLargeArray[T]) Get(i uint) (T, bool) {
	if !a.present.Test(i) {
		var zero T
		return zero, false
	}
	return a.values.Get(i), true
}

// SetNull clears slot i, making it eligible for reuse by a later Add.
func (a *NullableLargeArray[T]) SetNull(i uint) {
	a.present.Clear(i)
	var zero T
	a.values.Set(i, zero)
}

// Enumerate calls fn for every present element in ascending index order.
// fn may return false to stop the enumeration early.
func (a *NullableLargeArray[T]) Enumerate(fn func(index uint, value T) bool) {
	n := a.values.Len()
	for i := uint(0); i < n; i++ {
		if v, ok := a.Get(i); ok {
			if !fn(i, v) {
				return
			}
		}
	}
}

// Count returns the number of present elements.
func (a *NullableLargeArray[T]) Count() uint {
	return a.present.Count()
}
