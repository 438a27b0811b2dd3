package graph

import "fmt"

// ValidationSeverity indicates whether a finding breaks a graph invariant
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // invariant violated
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID // zero if not node-specific
	EdgeID   EdgeID // zero if not edge-specific
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	switch {
	case !e.NodeID.IsZero():
		return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
	case !e.EdgeID.IsZero():
		return fmt.Sprintf("[%s] edge %s: %s", e.Severity, e.EdgeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
}

// ValidationResult splits findings into blocking errors and warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether no errors were found.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Add files a finding under its severity.
func (r *ValidationResult) Add(findings ...ValidationError) {
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			r.Warnings = append(r.Warnings, f)
		} else {
			r.Errors = append(r.Errors, f)
		}
	}
}

// Validate checks referential integrity: every edge endpoint exists, every
// incident set matches the edges that touch the node, and no node is
// empty. It never mutates the graph.
func Validate(g *Graph) ValidationResult {
	var r ValidationResult
	r.Add(validateEdges(g)...)
	r.Add(validateIncidence(g)...)
	r.Add(validateIndex(g)...)
	return r
}

func validateEdges(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, e := range g.Edges() {
		for _, end := range []NodeID{e.From, e.To} {
			n, ok := g.nodes[end]
			if !ok {
				errs = append(errs, ValidationError{
					EdgeID:   e.ID,
					Message:  fmt.Sprintf("references missing node %s", end),
					Severity: SeverityError,
				})
				continue
			}
			if !n.HasEdge(e.ID) {
				errs = append(errs, ValidationError{
					NodeID:   end,
					Message:  fmt.Sprintf("incident set is missing edge %s", e.ID),
					Severity: SeverityError,
				})
			}
		}
		if e.Owner.IsZero() {
			errs = append(errs, ValidationError{
				EdgeID:   e.ID,
				Message:  "has no owning piece",
				Severity: SeverityError,
			})
		}
		if e.LengthM <= 0 {
			errs = append(errs, ValidationError{
				EdgeID:   e.ID,
				Message:  fmt.Sprintf("non-positive length %g", e.LengthM),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

func validateIncidence(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, n := range g.Nodes() {
		if n.Degree() == 0 {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  "has no incident edges",
				Severity: SeverityError,
			})
		}
		for _, eid := range n.IncidentEdges() {
			e, ok := g.edges[eid]
			switch {
			case !ok:
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("incident set references missing edge %s", eid),
					Severity: SeverityError,
				})
			case !e.Touches(n.ID):
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("incident edge %s does not end here", eid),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

func validateIndex(g *Graph) []ValidationError {
	if g.index.Size() == len(g.nodes) {
		return nil
	}
	return []ValidationError{{
		Message:  fmt.Sprintf("spatial index holds %d nodes, graph holds %d", g.index.Size(), len(g.nodes)),
		Severity: SeverityError,
	}}
}
