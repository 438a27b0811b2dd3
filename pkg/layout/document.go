package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
	"github.com/chazu/railyard/pkg/logger"
)

// DocumentVersion is written into every exported document.
const DocumentVersion = 1

// Document is the persisted form of a layout.
type Document struct {
	Version    int        `json:"version"`
	Pieces     []PieceDoc `json:"pieces"`
	GraphNodes []NodeDoc  `json:"graphNodes"`
	GraphEdges []EdgeDoc  `json:"graphEdges"`
}

type PieceDoc struct {
	ID               string         `json:"id"`
	CatalogID        string         `json:"catalogId"`
	Transform        geom.Transform `json:"transform"`
	Connectors       []ConnectorDoc `json:"connectors"`
	SwitchState      string         `json:"switchState,omitempty"`
	GeneratedEdgeIDs []string       `json:"generatedEdgeIds"`
}

type ConnectorDoc struct {
	ID     string `json:"id"`
	NodeID string `json:"nodeId,omitempty"`
}

type NodeDoc struct {
	ID       string    `json:"id"`
	Position geom.Vec3 `json:"position"`
}

type EdgeDoc struct {
	ID          string   `json:"id"`
	StartNodeID string   `json:"startNodeId"`
	EndNodeID   string   `json:"endNodeId"`
	LengthM     float64  `json:"lengthM"`
	Curve       CurveDoc `json:"curve"`
	PieceID     string   `json:"pieceId"`
}

type CurveDoc struct {
	Type      string     `json:"type"`
	RadiusM   *float64   `json:"radiusM,omitempty"`
	AngleDeg  *float64   `json:"angleDeg,omitempty"`
	ArcCenter *geom.Vec3 `json:"arcCenter,omitempty"`
}

func curveDoc(c graph.Curve) CurveDoc {
	if c.Kind != graph.CurveArc {
		return CurveDoc{Type: string(graph.CurveStraight)}
	}
	r, a, center := c.RadiusM, c.AngleDeg, c.Center
	return CurveDoc{Type: string(graph.CurveArc), RadiusM: &r, AngleDeg: &a, ArcCenter: &center}
}

func (c CurveDoc) curve() graph.Curve {
	if c.Type != string(graph.CurveArc) {
		return graph.StraightCurve
	}
	out := graph.Curve{Kind: graph.CurveArc}
	if c.RadiusM != nil {
		out.RadiusM = *c.RadiusM
	}
	if c.AngleDeg != nil {
		out.AngleDeg = *c.AngleDeg
	}
	if c.ArcCenter != nil {
		out.Center = *c.ArcCenter
	}
	return out
}

// Export captures the layout as a document. Pieces, nodes and edges are
// sorted by id so equal layouts export identically.
func (l *Layout) Export() Document {
	doc := Document{
		Version:    DocumentVersion,
		Pieces:     []PieceDoc{},
		GraphNodes: []NodeDoc{},
		GraphEdges: []EdgeDoc{},
	}
	for _, p := range l.st.sortedPieces() {
		pd := PieceDoc{
			ID:               string(p.ID),
			CatalogID:        p.CatalogID,
			Transform:        p.Transform,
			SwitchState:      string(p.SwitchState),
			GeneratedEdgeIDs: []string{},
		}
		order := p.connectorOrder(l.catalog)
		for _, c := range order {
			pd.Connectors = append(pd.Connectors, ConnectorDoc{ID: string(c), NodeID: string(p.Connectors[c])})
		}
		for _, re := range p.Edges {
			pd.GeneratedEdgeIDs = append(pd.GeneratedEdgeIDs, string(re.Edge))
		}
		doc.Pieces = append(doc.Pieces, pd)
	}
	for _, n := range l.st.graph.Nodes() {
		doc.GraphNodes = append(doc.GraphNodes, NodeDoc{ID: string(n.ID), Position: n.Position})
	}
	for _, e := range l.st.graph.Edges() {
		doc.GraphEdges = append(doc.GraphEdges, EdgeDoc{
			ID:          string(e.ID),
			StartNodeID: string(e.From),
			EndNodeID:   string(e.To),
			LengthM:     e.LengthM,
			Curve:       curveDoc(e.Curve),
			PieceID:     string(e.Owner),
		})
	}
	return doc
}

// connectorOrder lists bound connectors in template order, falling back to
// sorted ids when the entry is unknown.
func (p *PlacedPiece) connectorOrder(cat *catalog.Catalog) []catalog.ConnectorID {
	if e, ok := cat.Get(p.CatalogID); ok {
		return slices.DeleteFunc(e.ConnectorIDs(), func(c catalog.ConnectorID) bool {
			_, bound := p.Connectors[c]
			return !bound
		})
	}
	ids := make([]catalog.ConnectorID, 0, len(p.Connectors))
	for c := range p.Connectors {
		ids = append(ids, c)
	}
	slices.Sort(ids)
	return ids
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(doc), "encode layout document")
}

// Decode reads a JSON document.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, errors.Mark(errors.Wrap(err, "decode layout document"), ErrCorruptDocument)
	}
	return doc, nil
}

// LoadReport describes what Import did besides the happy path.
type LoadReport struct {
	Pieces   int
	Nodes    int
	Edges    int
	Remapped int
	// Open rail ends joined to a facing open end already in the layout.
	Fused    int
	Rebuilt  []graph.PieceID
	Warnings []string
}

func (r *LoadReport) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Import merges a document into the layout. Ids that collide with the
// current session are replaced by fresh ones; the graph shape is kept.
//
// Duplicate ids inside the document block the load with
// ErrCorruptDocument. Pieces with unknown catalog ids and edges that
// reference missing nodes or pieces are skipped with a warning. Pieces
// whose stored bindings or edges are incomplete are placed again from
// their transform.
func (l *Layout) Import(doc Document) (LoadReport, error) {
	var rep LoadReport
	if err := checkDocumentIDs(doc); err != nil {
		return rep, err
	}
	if doc.Version > DocumentVersion {
		rep.warnf("document version %d is newer than %d", doc.Version, DocumentVersion)
	}

	s := l.st.clone()
	imp := importer{l: l, s: s, rep: &rep,
		nodes:  make(map[string]graph.NodeID),
		edges:  make(map[string]graph.EdgeID),
		pieces: make(map[string]graph.PieceID),
	}
	imp.importNodes(doc.GraphNodes)
	entries := imp.importPieces(doc.Pieces)
	imp.importEdges(doc.GraphEdges)
	rebuild := imp.bindPieces(doc.Pieces, entries)
	imp.dropUnclaimedEdges()
	if dropped := s.graph.PruneEmptyNodes(); len(dropped) > 0 {
		rep.warnf("dropped %d nodes without edges", len(dropped))
	}
	imp.fuseOpenEnds(doc.GraphNodes)
	imp.rebuild(rebuild, entries)

	if v := l.validate(s); !v.OK() {
		err := errors.Wrapf(ErrCorruptDocument, "%d inconsistencies after load", len(v.Errors))
		for _, e := range v.Errors {
			err = errors.WithDetail(err, e.Error())
		}
		return rep, err
	}

	rep.Pieces = len(imp.pieces) - len(imp.dropped)
	rep.Nodes = s.graph.NodeCount() - l.st.graph.NodeCount()
	rep.Edges = s.graph.EdgeCount() - l.st.graph.EdgeCount()
	l.commit(s)
	l.log.Infow("imported layout",
		logger.FieldCount, rep.Pieces,
		"remapped", rep.Remapped,
		"fused", rep.Fused,
		"rebuilt", len(rep.Rebuilt),
		"warnings", len(rep.Warnings))
	return rep, nil
}

func checkDocumentIDs(doc Document) error {
	check := func(kind string, ids []string) error {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if id == "" {
				return errors.Wrapf(ErrCorruptDocument, "%s with empty id", kind)
			}
			if seen[id] {
				return errors.Wrapf(ErrCorruptDocument, "duplicate %s id %q", kind, id)
			}
			seen[id] = true
		}
		return nil
	}
	pieces := make([]string, len(doc.Pieces))
	for i, p := range doc.Pieces {
		pieces[i] = p.ID
	}
	nodes := make([]string, len(doc.GraphNodes))
	for i, n := range doc.GraphNodes {
		nodes[i] = n.ID
	}
	edges := make([]string, len(doc.GraphEdges))
	for i, e := range doc.GraphEdges {
		edges[i] = e.ID
	}
	if err := check("piece", pieces); err != nil {
		return err
	}
	if err := check("node", nodes); err != nil {
		return err
	}
	return check("edge", edges)
}

type importer struct {
	l   *Layout
	s   *state
	rep *LoadReport

	nodes    map[string]graph.NodeID
	edges    map[string]graph.EdgeID
	pieces   map[string]graph.PieceID
	imported []graph.EdgeID
	dropped  map[graph.PieceID]bool
}

func (im *importer) importNodes(docs []NodeDoc) {
	var collided []NodeDoc
	for _, nd := range docs {
		if _, err := im.s.graph.InsertNode(graph.NodeID(nd.ID), nd.Position); err != nil {
			collided = append(collided, nd)
			continue
		}
		im.nodes[nd.ID] = graph.NodeID(nd.ID)
	}
	for _, nd := range collided {
		im.nodes[nd.ID] = im.s.graph.CreateNode(nd.Position).ID
		im.rep.Remapped++
	}
}

func (im *importer) importPieces(docs []PieceDoc) map[graph.PieceID]catalog.Entry {
	entries := make(map[graph.PieceID]catalog.Entry)
	var collided []PieceDoc
	add := func(pd PieceDoc, id graph.PieceID) {
		entry, err := im.l.entry(pd.CatalogID)
		if err != nil {
			im.rep.warnf("piece %s skipped: %v", pd.ID, err)
			return
		}
		im.pieces[pd.ID] = id
		entries[id] = entry
		im.s.pieces[id] = &PlacedPiece{
			ID:         id,
			CatalogID:  pd.CatalogID,
			Transform:  pd.Transform.Normalize(),
			Connectors: make(map[catalog.ConnectorID]graph.NodeID),
		}
	}
	for _, pd := range docs {
		id := graph.PieceID(pd.ID)
		if _, taken := im.s.pieces[id]; taken {
			collided = append(collided, pd)
			continue
		}
		im.s.pieceIDs.Observe(pd.ID)
		add(pd, id)
	}
	for _, pd := range collided {
		before := len(im.pieces)
		add(pd, im.s.nextPieceID())
		if len(im.pieces) > before {
			im.rep.Remapped++
		}
	}
	return entries
}

func (im *importer) importEdges(docs []EdgeDoc) {
	var collided []graph.Edge
	for _, ed := range docs {
		owner, ok := im.pieces[ed.PieceID]
		if !ok {
			im.rep.warnf("edge %s skipped: piece %q not loaded", ed.ID, ed.PieceID)
			continue
		}
		from, okFrom := im.nodes[ed.StartNodeID]
		to, okTo := im.nodes[ed.EndNodeID]
		if !okFrom || !okTo {
			im.rep.warnf("edge %s skipped: references missing node", ed.ID)
			continue
		}
		e := graph.Edge{ID: graph.EdgeID(ed.ID), From: from, To: to, LengthM: ed.LengthM, Curve: ed.Curve.curve(), Owner: owner}
		if _, taken := im.s.graph.Edge(e.ID); taken {
			collided = append(collided, e)
			im.edges[ed.ID] = ""
			continue
		}
		if _, err := im.s.graph.InsertEdge(e); err != nil {
			im.rep.warnf("edge %s skipped: %v", ed.ID, err)
			continue
		}
		im.edges[ed.ID] = e.ID
		im.imported = append(im.imported, e.ID)
	}
	for _, e := range collided {
		added, err := im.s.graph.AddEdge(e.From, e.To, e.LengthM, e.Curve, e.Owner)
		if err != nil {
			im.rep.warnf("edge %s skipped: %v", e.ID, err)
			delete(im.edges, string(e.ID))
			continue
		}
		im.edges[string(e.ID)] = added.ID
		im.imported = append(im.imported, added.ID)
		im.rep.Remapped++
	}
}

// bindPieces restores connector bindings and route edges. It returns the
// pieces whose stored state is incomplete.
func (im *importer) bindPieces(docs []PieceDoc, entries map[graph.PieceID]catalog.Entry) []graph.PieceID {
	var rebuild []graph.PieceID
	for _, pd := range docs {
		id, ok := im.pieces[pd.ID]
		if !ok {
			continue
		}
		p, entry := im.s.pieces[id], entries[id]
		complete := true

		for _, cd := range pd.Connectors {
			ct, ok := entry.Connector(catalog.ConnectorID(cd.ID))
			if !ok {
				im.rep.warnf("piece %s: unknown connector %q", pd.ID, cd.ID)
				continue
			}
			node, ok := im.nodes[cd.NodeID]
			if !ok {
				complete = false
				continue
			}
			n, _ := im.s.graph.Node(node)
			if worldConnector(ct, p.Transform).Position.Dist(n.Position) > im.l.opts.SnapToleranceM {
				im.rep.warnf("piece %s: connector %s is away from node %s", pd.ID, cd.ID, cd.NodeID)
				complete = false
				continue
			}
			p.Connectors[ct.ID] = node
		}
		if len(p.Connectors) != len(entry.Connectors) {
			complete = false
		}

		used := make(map[catalog.RouteID]bool)
		for _, docEdge := range pd.GeneratedEdgeIDs {
			eid := im.edges[docEdge]
			e, ok := im.s.graph.Edge(eid)
			if eid.IsZero() || !ok || e.Owner != id {
				continue
			}
			route, ok := matchRoute(entry, p, e, used)
			if !ok {
				continue
			}
			used[route] = true
			p.Edges = append(p.Edges, RouteEdge{Edge: eid, Route: route})
		}
		if len(used) != len(entry.Routes) {
			complete = false
		}

		if entry.IsSwitch() {
			p.SwitchState = entry.DefaultRoute
			if _, ok := entry.Route(catalog.RouteID(pd.SwitchState)); ok {
				p.SwitchState = catalog.RouteID(pd.SwitchState)
			} else {
				im.rep.warnf("piece %s: switch state %q reset to %s", pd.ID, pd.SwitchState, entry.DefaultRoute)
			}
		}

		for c, node := range p.Connectors {
			im.s.bind(node, ConnectorRef{Piece: id, Connector: c})
		}
		if !complete {
			rebuild = append(rebuild, id)
		}
	}
	return rebuild
}

// matchRoute finds the unused route whose connector nodes are the edge's
// endpoints.
func matchRoute(entry catalog.Entry, p *PlacedPiece, e *graph.Edge, used map[catalog.RouteID]bool) (catalog.RouteID, bool) {
	for _, r := range entry.Routes {
		if used[r.ID] {
			continue
		}
		a, b := p.Connectors[r.From], p.Connectors[r.To]
		if a.IsZero() || b.IsZero() {
			continue
		}
		if (e.From == a && e.To == b) || (e.From == b && e.To == a) {
			return r.ID, true
		}
	}
	return "", false
}

func (im *importer) dropUnclaimedEdges() {
	claimed := make(map[graph.EdgeID]bool)
	for _, p := range im.s.pieces {
		for _, re := range p.Edges {
			claimed[re.Edge] = true
		}
	}
	for _, eid := range im.imported {
		if claimed[eid] {
			continue
		}
		im.rep.warnf("edge %s dropped: no route of its piece matches", eid)
		_ = im.s.graph.RemoveEdge(eid)
	}
}

// fuseOpenEnds joins each imported open rail end to an open end it sits
// on and faces, so the pair shares one node as a placement would have.
func (im *importer) fuseOpenEnds(docs []NodeDoc) {
	tol := im.l.opts.SnapToleranceM
	for _, nd := range docs {
		nid, ok := im.nodes[nd.ID]
		if !ok {
			continue
		}
		refs := im.s.bindings[nid]
		if _, exists := im.s.graph.Node(nid); !exists || len(refs) != 1 {
			continue
		}
		ref := refs[0]
		wc, err := im.l.worldConnector(im.s, ref)
		if err != nil {
			continue
		}
		for _, other := range im.s.graph.NodesWithin(wc.Position, tol) {
			if other.ID == nid || !im.l.facesOpenEnd(im.s, other.ID, ref, wc) {
				continue
			}
			if err := im.s.graph.MergeNodes(nid, other.ID); err != nil {
				im.rep.warnf("node %s not fused with %s: %v", nd.ID, other.ID, err)
				continue
			}
			im.s.unbind(nid, ref)
			im.s.bind(other.ID, ref)
			im.s.pieces[ref.Piece].Connectors[ref.Connector] = other.ID
			im.nodes[nd.ID] = other.ID
			im.rep.Fused++
			break
		}
	}
}

func (im *importer) rebuild(ids []graph.PieceID, entries map[graph.PieceID]catalog.Entry) {
	im.dropped = make(map[graph.PieceID]bool)
	for _, id := range ids {
		p := im.s.pieces[id]
		sw := p.SwitchState
		if err := im.s.detach(p); err != nil {
			im.rep.warnf("piece %s dropped: %v", id, err)
			delete(im.s.pieces, id)
			im.dropped[id] = true
			continue
		}
		delete(im.s.pieces, id)
		if _, err := im.l.attach(im.s, entries[id], p.Transform, id, sw); err != nil {
			im.rep.warnf("piece %s dropped: %v", id, err)
			im.dropped[id] = true
			continue
		}
		im.rep.Rebuilt = append(im.rep.Rebuilt, id)
	}
}
