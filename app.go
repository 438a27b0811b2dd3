package main

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/config"
	"github.com/chazu/railyard/pkg/engine"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/kernel"
	"github.com/chazu/railyard/pkg/kernel/sdfx"
	"github.com/chazu/railyard/pkg/layout"
	"github.com/chazu/railyard/pkg/logger"
	"github.com/chazu/railyard/pkg/tessellate"
)

// typeColors gives each piece type a distinct color in mesh output.
var typeColors = map[catalog.PieceType]string{
	catalog.Straight:     "#4A90D9",
	catalog.Curve:        "#2ECC71",
	catalog.Switch:       "#E67E22",
	catalog.CurvedSwitch: "#9B59B6",
	catalog.Crossing:     "#E74C3C",
}

const defaultColor = "#7F8C8D"

// App ties the catalog, script engine and geometry kernel together for
// the CLI commands.
type App struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	engine  *engine.Engine
	kernel  kernel.Kernel
	tess    *tessellate.Tessellator
	log     *zap.SugaredLogger
}

// MeshData is the JSON mesh format written by export --meshes.
type MeshData struct {
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	Indices   []uint32  `json:"indices"`
	PieceID   string    `json:"pieceId"`
	CatalogID string    `json:"catalogId"`
	Color     string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full outcome of evaluating a script.
type EvalResult struct {
	Layout *layout.Layout  `json:"-"`
	Stats  *layout.Stats   `json:"stats,omitempty"`
	Meshes []MeshData      `json:"meshes"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp creates an App from cfg, using the sdfx kernel for footprints
// and meshes.
func NewApp(cfg *config.Config) *App {
	a := &App{
		cfg:     cfg,
		catalog: catalog.New(),
		kernel:  sdfx.New(),
		log:     logger.Named(nil, "app"),
	}
	a.engine = engine.NewEngine(a.catalog, a.layoutOptions())
	a.engine.SetTimeout(time.Duration(cfg.Script.TimeoutSeconds) * time.Second)
	a.tess = tessellate.New(a.kernel, cfg.Mesh.Cells)
	return a
}

func (a *App) layoutOptions() layout.Options {
	opts := layout.OptionsFromConfig(a.cfg)
	opts.Footprint = kernel.Footprinter{Kernel: a.kernel}
	return opts
}

// NewLayout returns an empty layout configured like the ones scripts build.
func (a *App) NewLayout() *layout.Layout {
	return layout.New(a.catalog, a.layoutOptions())
}

// Evaluate runs a layout script. Meshes are produced only when withMeshes
// is set.
func (a *App) Evaluate(source string, withMeshes bool) EvalResult {
	result := EvalResult{
		Meshes: []MeshData{},
		Errors: []EvalErrorData{},
	}

	// Step 1: Evaluate the script into a layout.
	l, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.log.Errorw("evaluate fatal error", logger.FieldError, err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Report script errors.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	result.Layout = l
	st := l.Stats()
	result.Stats = &st

	if !withMeshes {
		return result
	}

	// Step 3: Tessellate every placed piece.
	meshes, err := a.tess.Tessellate(l)
	if err != nil {
		a.log.Errorw("tessellate error", logger.FieldError, err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	// Step 4: Color meshes by piece type.
	for _, m := range meshes {
		color := defaultColor
		if e, ok := a.catalog.Get(m.CatalogID); ok {
			if c, ok := typeColors[e.Type]; ok {
				color = c
			}
		}
		result.Meshes = append(result.Meshes, MeshData{
			Vertices:  m.Vertices,
			Normals:   m.Normals,
			Indices:   m.Indices,
			PieceID:   m.PieceID,
			CatalogID: m.CatalogID,
			Color:     color,
		})
	}
	return result
}

// RunScript evaluates the script at path and returns its layout. Script
// errors are folded into one error, each as a detail.
func (a *App) RunScript(path string, withMeshes bool) (EvalResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return EvalResult{}, errors.Wrapf(err, "read script %s", path)
	}
	res := a.Evaluate(string(src), withMeshes)
	if len(res.Errors) > 0 {
		return res, scriptError(path, res.Errors)
	}
	return res, nil
}

func scriptError(path string, errs []EvalErrorData) error {
	first := errs[0]
	err := errors.Newf("%s: %s", path, first.Message)
	if first.Line > 0 {
		err = errors.Newf("%s:%d: %s", path, first.Line, first.Message)
	}
	for _, e := range errs[1:] {
		err = errors.WithDetailf(err, "line %d: %s", e.Line, e.Message)
	}
	return errors.WithHint(err, "fix the script and run again")
}
