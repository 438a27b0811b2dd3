// Package tessellate turns a track layout into triangle meshes using a
// geometry kernel. One mesh is produced per placed piece.
package tessellate

import (
	"slices"
	"sync"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/kernel"
	"github.com/chazu/railyard/pkg/layout"
)

// Tessellator meshes placed pieces. Each catalog entry is tessellated
// once in its local frame; placed copies are rigid transforms of that
// mesh. A Tessellator is safe for concurrent use.
type Tessellator struct {
	k     kernel.Kernel
	cells int

	mu    sync.Mutex
	local map[string]*kernel.Mesh
}

// New returns a tessellator backed by k. cells is the minimum
// resolution handed to kernel.Kernel.ToMesh.
func New(k kernel.Kernel, cells int) *Tessellator {
	return &Tessellator{k: k, cells: cells, local: make(map[string]*kernel.Mesh)}
}

// Tessellate produces one mesh per placed piece, in piece id order. The
// layout is never mutated.
func (t *Tessellator) Tessellate(l *layout.Layout) ([]*kernel.Mesh, error) {
	if l == nil {
		return nil, nil
	}
	cat := l.Catalog()
	pieces := l.Pieces()
	meshes := make([]*kernel.Mesh, 0, len(pieces))
	for _, p := range pieces {
		entry, ok := cat.Get(p.CatalogID)
		if !ok {
			return nil, errors.Wrapf(layout.ErrUnknownCatalogID, "piece %s: %s", p.ID, p.CatalogID)
		}
		m, err := t.Piece(entry, p)
		if err != nil {
			return nil, errors.Wrapf(err, "tessellate: piece %s", p.ID)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// Piece meshes a single placed piece.
func (t *Tessellator) Piece(entry catalog.Entry, p layout.PlacedPiece) (*kernel.Mesh, error) {
	base, err := t.localMesh(entry)
	if err != nil {
		return nil, err
	}
	m := transformMesh(base, p.Transform)
	m.PieceID = string(p.ID)
	m.CatalogID = p.CatalogID
	return m, nil
}

// CachedEntries reports how many catalog entries have a local mesh.
func (t *Tessellator) CachedEntries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.local)
}

func (t *Tessellator) localMesh(entry catalog.Entry) (*kernel.Mesh, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.local[entry.ID]; ok {
		return m, nil
	}
	s, err := kernel.PieceSolid(t.k, entry, geom.Identity)
	if err != nil {
		return nil, err
	}
	m, err := t.k.ToMesh(s, kernel.MeshCells(s, t.cells))
	if err != nil {
		return nil, errors.Wrapf(err, "tessellate %s", entry.ID)
	}
	t.local[entry.ID] = m
	return m, nil
}

// transformMesh returns a copy of m moved by tr.
func transformMesh(m *kernel.Mesh, tr geom.Transform) *kernel.Mesh {
	out := &kernel.Mesh{
		Vertices: make([]float32, len(m.Vertices)),
		Normals:  make([]float32, len(m.Normals)),
		Indices:  slices.Clone(m.Indices),
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		v := tr.Apply(geom.V(float64(m.Vertices[i]), float64(m.Vertices[i+1]), float64(m.Vertices[i+2])))
		out.Vertices[i], out.Vertices[i+1], out.Vertices[i+2] = float32(v.X), float32(v.Y), float32(v.Z)
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		n := tr.ApplyDir(geom.V(float64(m.Normals[i]), float64(m.Normals[i+1]), float64(m.Normals[i+2])))
		out.Normals[i], out.Normals[i+1], out.Normals[i+2] = float32(n.X), float32(n.Y), float32(n.Z)
	}
	return out
}

// Tessellate meshes every piece of l with a fresh tessellator.
func Tessellate(l *layout.Layout, k kernel.Kernel, cells int) ([]*kernel.Mesh, error) {
	return New(k, cells).Tessellate(l)
}
