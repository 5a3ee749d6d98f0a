// Package enums holds the closed string vocabularies shared by models,
// validators and handlers. Each type lists its allowed values once; the
// validator tags and the Parse helpers both derive from that list.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](kind string, allowed []T, raw string) (T, error) {
	if v := T(raw); slices.Contains(allowed, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
