// Package enums holds the string enums shared by storage, events and reports.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

type stringEnum interface{ ~string }

// parse matches raw against values, ignoring surrounding whitespace.
func parse[T stringEnum](kind string, values []T, raw string) (T, error) {
	candidate := T(strings.TrimSpace(raw))
	if slices.Contains(values, candidate) {
		return candidate, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
