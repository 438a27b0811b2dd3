package graph

import (
	"strconv"
	"strings"
)

// NodeID identifies a graph node.
type NodeID string

// EdgeID identifies a graph edge.
type EdgeID string

// PieceID identifies a placed piece. Edges record their owning piece.
type PieceID string

func (id NodeID) IsZero() bool  { return id == "" }
func (id EdgeID) IsZero() bool  { return id == "" }
func (id PieceID) IsZero() bool { return id == "" }

// IDSource hands out sequential ids with a fixed prefix ("n1", "n2", ...).
// The zero value is not usable; use NewIDSource.
type IDSource struct {
	prefix string
	last   int
}

func NewIDSource(prefix string) IDSource {
	return IDSource{prefix: prefix}
}

// Next returns a fresh id.
func (s *IDSource) Next() string {
	s.last++
	return s.prefix + strconv.Itoa(s.last)
}

// Observe records an externally chosen id so Next never repeats it.
func (s *IDSource) Observe(id string) {
	rest, ok := strings.CutPrefix(id, s.prefix)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(rest); err == nil && n > s.last {
		s.last = n
	}
}

// CompareIDs orders ids naturally: shorter first, then lexically, so
// "n2" sorts before "n10".
func CompareIDs[T ~string](a, b T) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(string(a), string(b))
}
