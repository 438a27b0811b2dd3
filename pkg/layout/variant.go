package layout

import (
	"github.com/chazu/railyard/pkg/catalog"
)

// Item is a placed piece viewed through its type. Exactly one of the
// concrete item types below is returned for each piece.
type Item interface {
	Piece() PlacedPiece
	item()
}

type StraightItem struct {
	PlacedPiece
	LengthM float64
}

type CurveItem struct {
	PlacedPiece
	Curve catalog.CurveParams
}

// SwitchItem covers both plain and curved switches.
type SwitchItem struct {
	PlacedPiece
	Curved bool
	Routes []catalog.RouteID
}

type CrossingItem struct {
	PlacedPiece
	Routes []catalog.RouteID
}

func (i StraightItem) Piece() PlacedPiece { return i.PlacedPiece }
func (i CurveItem) Piece() PlacedPiece    { return i.PlacedPiece }
func (i SwitchItem) Piece() PlacedPiece   { return i.PlacedPiece }
func (i CrossingItem) Piece() PlacedPiece { return i.PlacedPiece }

func (StraightItem) item() {}
func (CurveItem) item()    {}
func (SwitchItem) item()   {}
func (CrossingItem) item() {}

func newItem(p PlacedPiece, e catalog.Entry) Item {
	switch e.Type {
	case catalog.Curve:
		var c catalog.CurveParams
		if e.Curve != nil {
			c = *e.Curve
		}
		return CurveItem{PlacedPiece: p, Curve: c}
	case catalog.Switch, catalog.CurvedSwitch:
		return SwitchItem{PlacedPiece: p, Curved: e.Type == catalog.CurvedSwitch, Routes: e.RouteIDs()}
	case catalog.Crossing:
		return CrossingItem{PlacedPiece: p, Routes: e.RouteIDs()}
	}
	return StraightItem{PlacedPiece: p, LengthM: e.LengthM}
}
