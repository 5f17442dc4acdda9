// Package collections holds small generic slice helpers.
package collections

// Apply applies the applicator function to each item in the input slice.
func Apply[T, V any](items []T, applicator func(T) V) []V {
	result := make([]V, len(items))
	for i, item := range items {
		result[i] = applicator(item)
	}
	return result
}

func ApplyVariadic[T, V any](applicator func(T) V, items ...T) []V {
	return Apply(items, applicator)
}

// Find returns the first item accepted by match.
func Find[T any](items []T, match func(T) bool) (T, bool) {
	for _, item := range items {
		if match(item) {
			return item, true
		}
	}

	var zero T
	return zero, false
}

// Any reports whether match accepts at least one item.
func Any[T any](items []T, match func(T) bool) bool {
	_, ok := Find(items, match)
	return ok
}
