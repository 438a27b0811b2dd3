// Package engine evaluates layout scripts. A script is zygomys Lisp with
// a small set of track builtins (place, extend, move, rotate, turn,
// remove, set-switch, connector); each evaluation runs in a fresh sandbox
// against a fresh layout, so the same source always yields the same
// layout.
package engine

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/layout"
	"github.com/chazu/railyard/pkg/logger"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a placement rejected by the layout.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return "line " + strconv.Itoa(e.Line) + ": " + e.Message
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// a newer Evaluate call supersedes any evaluation still in flight.
type Engine struct {
	catalog *catalog.Catalog
	opts    layout.Options
	log     *zap.SugaredLogger

	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// NewEngine creates an engine whose layouts use cat and opts.
func NewEngine(cat *catalog.Catalog, opts layout.Options) *Engine {
	return &Engine{
		catalog: cat,
		opts:    opts,
		log:     logger.Named(opts.Logger, "engine"),
		timeout: DefaultEvalTimeout,
	}
}

// SetTimeout changes the per-evaluation limit. Non-positive values
// restore the default.
func (e *Engine) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultEvalTimeout
	}
	e.mu.Lock()
	e.timeout = d
	e.mu.Unlock()
}

// Evaluate runs source and returns the layout it built.
//
// Return semantics:
//   - On success: returns layout + nil errors + nil error
//   - On parse/eval failure: returns nil layout + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*layout.Layout, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	timeout := e.timeout
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: errors.Newf("panic during evaluation: %v", r)}
			}
		}()

		l, evalErrs, err := e.evaluate(source)
		ch <- evalResult{layout: l, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*layout.Layout, []EvalError, error) {
	l := layout.New(e.catalog, e.opts)

	// Empty source is a valid program that produces an empty layout.
	if strings.TrimSpace(source) == "" {
		return l, nil, nil
	}

	// The sandbox keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, l)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		evalErrs := parseZygomysError(err)
		e.log.Debugw("script failed", logger.FieldError, evalErrs[0].Message)
		return nil, evalErrs, nil
	}

	st := l.Stats()
	e.log.Debugw("script evaluated",
		logger.FieldCount, st.PieceCount,
		"openEnds", st.OpenEnds,
	)
	return l, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting a line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
