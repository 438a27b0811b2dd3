// Package graph is the rail network: nodes are rail ends or joints between
// pieces, edges are traversable track segments owned by placed pieces.
//
// Node lookup by position goes through an R-tree so that MergeOrCreateNode
// stays cheap on large layouts. A Graph is not safe for concurrent
// mutation; callers that need snapshots use Clone.
package graph
