// Package catalog is the registry of physical track piece templates.
//
// A Catalog is built once and never mutated afterwards, so a single value
// can be shared freely between goroutines. Connector templates of every
// curved piece are derived from the curve formulas in package geom.
package catalog

import (
	"math"

	"github.com/samber/lo"

	"github.com/chazu/railyard/pkg/errors"
)

// Catalog is an immutable, ordered set of entries.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// New builds the standard OO gauge catalog.
func New() *Catalog {
	c, err := NewFromEntries(defaultEntries()...)
	if err != nil {
		panic(errors.Wrap(err, "standard catalog is inconsistent"))
	}
	return c
}

// NewFromEntries validates entries and freezes them into a catalog.
func NewFromEntries(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, err
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, errors.Newf("duplicate catalog id %q", e.ID)
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e.clone())
	}
	return c, nil
}

// Get returns a copy of the entry with the given id.
func (c *Catalog) Get(id string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i].clone(), true
}

// Has reports whether id is registered.
func (c *Catalog) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.byID[id]
	return ok
}

// All returns copies of every entry in catalog order.
func (c *Catalog) All() []Entry {
	if c == nil {
		return nil
	}
	return lo.Map(c.entries, func(e Entry, _ int) Entry { return e.clone() })
}

// ByType returns copies of the entries of one piece type, in catalog order.
func (c *Catalog) ByType(t PieceType) []Entry {
	return lo.Filter(c.All(), func(e Entry, _ int) bool { return e.Type == t })
}

// IDs lists every entry id in catalog order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return lo.Map(c.entries, func(e Entry, _ int) string { return e.ID })
}

// Len is the number of entries. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

func validateEntry(e Entry) error {
	if e.ID == "" {
		return errors.New("catalog entry has empty id")
	}
	if want := e.Type.ConnectorCount(); want == 0 || len(e.Connectors) != want {
		return errors.Newf("entry %q: %s needs %d connectors, has %d",
			e.ID, e.Type, e.Type.ConnectorCount(), len(e.Connectors))
	}
	if e.LengthM <= 0 {
		return errors.Newf("entry %q: length must be positive", e.ID)
	}
	seen := make(map[ConnectorID]bool, len(e.Connectors))
	for _, ct := range e.Connectors {
		if seen[ct.ID] {
			return errors.Newf("entry %q: duplicate connector %q", e.ID, ct.ID)
		}
		seen[ct.ID] = true
		if math.Abs(ct.LocalForward.Len()-1) > 1e-9 {
			return errors.Newf("entry %q: connector %q forward is not a unit vector", e.ID, ct.ID)
		}
	}
	if len(e.Routes) == 0 {
		return errors.Newf("entry %q: no routes", e.ID)
	}
	routes := make(map[RouteID]bool, len(e.Routes))
	for _, r := range e.Routes {
		if routes[r.ID] {
			return errors.Newf("entry %q: duplicate route %q", e.ID, r.ID)
		}
		routes[r.ID] = true
		if !seen[r.From] || !seen[r.To] || r.From == r.To {
			return errors.Newf("entry %q: route %q joins %q and %q", e.ID, r.ID, r.From, r.To)
		}
		if r.LengthM <= 0 {
			return errors.Newf("entry %q: route %q length must be positive", e.ID, r.ID)
		}
	}
	if e.Type.IsSwitch() {
		if len(e.Routes) < 2 {
			return errors.Newf("entry %q: switch needs at least two routes", e.ID)
		}
		if !routes[e.DefaultRoute] {
			return errors.Newf("entry %q: default route %q is not defined", e.ID, e.DefaultRoute)
		}
	}
	return nil
}
