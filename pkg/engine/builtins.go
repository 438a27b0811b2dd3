package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/geom"
	"github.com/chazu/railyard/pkg/graph"
	"github.com/chazu/railyard/pkg/layout"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites layout scripts into something zygomys accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with user variables.
//  2. Kebab-case identifiers become snake case (set-switch -> set_switch);
//     zygomys reads a hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied through untouched. Line breaks are preserved,
// so error line numbers still match the user's file.
func preprocessSource(source string) string {
	b := []byte(source)
	out := make([]byte, 0, len(b)+len(b)/4)
	for i := 0; i < len(b); {
		switch c := b[i]; {
		case c == '"':
			j := i + 1
			for j < len(b) && b[j] != '"' {
				if b[j] == '\\' && j+1 < len(b) {
					j++
				}
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case c == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			j = min(j+1, len(b))
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				out = append(out, b[i])
				i++
			}

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Script values
// ---------------------------------------------------------------------------

// sexpPiece is a handle to a placed piece.
type sexpPiece struct {
	id        graph.PieceID
	catalogID string
}

func (p *sexpPiece) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(piece %q %q)", p.id, p.catalogID)
}
func (p *sexpPiece) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a geom.Vec3, in meters.
type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

func pieceRef(p layout.PlacedPiece) *sexpPiece {
	return &sexpPiece{id: p.ID, catalogID: p.CatalogID}
}

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix marks keyword names produced by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones. A trailing
// keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func describe(s zygo.Sexp) string {
	if s == nil {
		return "nil"
	}
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

// toFloat64 extracts a float64 from a SexpInt or SexpFloat.
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, errors.Newf("expected number, got %s", describe(s))
}

// toString extracts a plain string.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", errors.Newf("expected string, got %s", describe(s))
}

// toKeywordString accepts either :name or "name".
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", errors.Newf("expected keyword or string, got %s", describe(s))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toConnector reads a connector name. Case is ignored, so :b and "B" match.
func toConnector(s zygo.Sexp) (catalog.ConnectorID, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	return catalog.ConnectorID(strings.ToUpper(name)), nil
}

// toRoute reads a switch route name, ignoring case.
func toRoute(s zygo.Sexp) (catalog.RouteID, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", err
	}
	return catalog.RouteID(strings.ToUpper(name)), nil
}

func toPiece(s zygo.Sexp) (graph.PieceID, error) {
	switch v := s.(type) {
	case *sexpPiece:
		return v.id, nil
	case *zygo.SexpStr:
		return graph.PieceID(v.S), nil
	}
	return "", errors.Newf("expected piece, got %s", describe(s))
}

func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, errors.Newf("expected vec3, got %s", describe(s))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the layout DSL into env. Every builtin acts on l
// directly, so a script builds its layout as it runs.
//
// Source must go through preprocessSource first so keywords are
// recognizable.
func registerBuiltins(env *zygo.Zlisp, l *layout.Layout) {

	// -----------------------------------------------------------------------
	// (vec3 x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, errors.Newf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "vec3: %c", "xyz"[i])
			}
			xyz[i] = f
		}
		return &sexpVec3{vec: geom.V(xyz[0], xyz[1], xyz[2])}, nil
	})

	// -----------------------------------------------------------------------
	// (place "track.straight_168mm" :at (vec3 0 0 0) :yaw 90)
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, errors.New("place requires a catalog id as first argument")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "place: catalog id")
		}

		var at geom.Vec3
		if v, ok := pa.kw["at"]; ok {
			if at, err = toVec3(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "place: at")
			}
		}
		var yaw float64
		if v, ok := pa.kw["yaw"]; ok {
			if yaw, err = toFloat64(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "place: yaw")
			}
		}

		p, err := l.PlacePiece(id, geom.At(at, yaw))
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "place")
		}
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (extend p :b "track.curve_r1_45deg_left" :via :a)
	// -----------------------------------------------------------------------
	env.AddFunction("extend", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		// The connector may be a keyword, so the three leading arguments are
		// read by position before keyword parsing.
		if len(args) < 3 {
			return zygo.SexpNull, errors.New("extend requires a piece, a connector and a catalog id")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "extend")
		}
		conn, err := toConnector(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "extend: connector")
		}
		catalogID, err := toString(args[2])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "extend: catalog id")
		}
		pa := parseArgs(args[3:])
		var via catalog.ConnectorID
		if v, ok := pa.kw["via"]; ok {
			if via, err = toConnector(v); err != nil {
				return zygo.SexpNull, errors.Wrap(err, "extend: via")
			}
		}

		p, err := l.Extend(id, conn, catalogID, via)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "extend")
		}
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (piece "p3")
	// -----------------------------------------------------------------------
	env.AddFunction("piece", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("piece requires an id argument")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "piece")
		}
		p, err := l.Piece(id)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "piece")
		}
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (move p (vec3 1 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("move requires a piece and a position")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "move")
		}
		pos, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "move: position")
		}
		p, err := l.MovePiece(id, pos)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "move")
		}
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (rotate p 90) sets the absolute yaw in degrees.
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("rotate requires a piece and a yaw")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "rotate")
		}
		yaw, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "rotate: yaw")
		}
		p, err := l.RotatePiece(id, geom.YawQuat(yaw))
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "rotate")
		}
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (turn p 15) adds to the current yaw.
	// -----------------------------------------------------------------------
	env.AddFunction("turn", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("turn requires a piece and an angle")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "turn")
		}
		delta, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "turn: angle")
		}
		p, err := l.YawPiece(id, delta)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "turn")
		}
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (remove p)
	// -----------------------------------------------------------------------
	env.AddFunction("remove", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("remove requires a piece")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "remove")
		}
		if err := l.RemovePiece(id); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "remove")
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (set-switch p :diverging)
	// -----------------------------------------------------------------------
	env.AddFunction("set_switch", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("set-switch requires a piece and a route")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "set-switch")
		}
		route, err := toRoute(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "set-switch: route")
		}
		if err := l.SetSwitchState(id, route); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "set-switch")
		}
		p, _ := l.Piece(id)
		return pieceRef(p), nil
	})

	// -----------------------------------------------------------------------
	// (connector p :b) is the world position of a rail end.
	// -----------------------------------------------------------------------
	env.AddFunction("connector", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, errors.New("connector requires a piece and a connector name")
		}
		id, err := toPiece(args[0])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "connector")
		}
		conn, err := toConnector(args[1])
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "connector")
		}
		wc, err := l.ConnectorWorld(id, conn)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "connector")
		}
		return &sexpVec3{vec: wc.Position}, nil
	})

	// -----------------------------------------------------------------------
	// (free-ends) counts unjoined rail ends.
	// -----------------------------------------------------------------------
	env.AddFunction("free_ends", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(len(l.FreeConnectors()))}, nil
	})
}
