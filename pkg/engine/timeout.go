package engine

import (
	"sync"
	"time"

	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/layout"
)

// DefaultEvalTimeout is the limit for a single evaluation unless
// SetTimeout says otherwise.
const DefaultEvalTimeout = 5 * time.Second

// Fatal evaluation outcomes.
var (
	ErrEvalTimeout = errors.New("evaluation timed out")
	ErrSuperseded  = errors.New("evaluation superseded by newer request")
)

// evalResult passes evaluation results through channels.
type evalResult struct {
	layout *layout.Layout
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, giving up after timeout. A
// result whose generation is no longer current is discarded.
//
// On timeout the goroutine may still be running; the generation check
// drops its result when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*layout.Layout, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.layout, res.errors, res.err

	case <-timer.C:
		return nil, nil, errors.Wrapf(ErrEvalTimeout, "after %s", timeout)
	}
}
