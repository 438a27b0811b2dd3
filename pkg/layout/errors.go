package layout

import "github.com/chazu/railyard/pkg/errors"

// Placement failures. Every operation that returns one of these leaves the
// layout unchanged.
var (
	ErrEmptyCatalog       = errors.New("catalog is empty")
	ErrUnknownCatalogID   = errors.New("unknown catalog id")
	ErrUnknownPiece       = errors.New("unknown piece")
	ErrUnknownConnector   = errors.New("unknown connector")
	ErrInvalidSwitchRoute = errors.New("invalid switch route")
	ErrNotASwitch         = errors.New("piece is not a switch")
	ErrContradictorySnap  = errors.New("contradictory snap")
	ErrConnectorOccupied  = errors.New("connector already joined")
	ErrOutOfBounds        = errors.New("piece leaves the work surface")
	ErrCorruptDocument    = errors.New("corrupt layout document")
)
