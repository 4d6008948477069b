package quota

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is a class of trackable engagement activity.
type Kind string

const (
	KindRead Kind = "read"
	KindLike Kind = "like"
)

// Deficit is required minus current, floored at zero.
func Deficit(current, required int) int {
	return max(required-current, 0)
}

// Map holds the outstanding deficit of every kind. Values never go below zero,
// a kind that is missing or zero has nothing outstanding.
type Map map[Kind]int

func (m Map) Get(kind Kind) int {
	return max(m[kind], 0)
}

// Raise records a deficit for kind, keeping the larger value when the kind
// was already present. Non-positive deficits are ignored.
func (m Map) Raise(kind Kind, deficit int) {
	if deficit <= 0 {
		return
	}
	if deficit > m[kind] {
		m[kind] = deficit
	}
}

// Consume decrements the deficit of kind by one, it reports false and leaves
// the map untouched when nothing is outstanding for that kind.
func (m Map) Consume(kind Kind) bool {
	if m.Get(kind) == 0 {
		return false
	}
	m[kind]--
	return true
}

// Satisfied reports whether every deficit reached zero.
func (m Map) Satisfied() bool {
	for _, v := range m {
		if v > 0 {
			return false
		}
	}
	return true
}

func (m Map) Total() int {
	total := 0
	for _, v := range m {
		total += max(v, 0)
	}
	return total
}

func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Kinds returns the kinds present in the map in a stable order.
func (m Map) Kinds() []Kind {
	kinds := make([]Kind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func (m Map) String() string {
	parts := make([]string, 0, len(m))
	for _, k := range m.Kinds() {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
