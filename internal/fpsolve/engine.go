// Public domain.

// Package fpsolve supplies the linear-amplitude solver behind the forced
// photometry fit.  With every shape and position frozen, the forward model
// is linear in the per-contributor amplitudes; an Engine estimates those
// amplitudes and their inverse variances against a weighted image.
//
// Engine selection is an explicit configuration value.  A requested engine
// that is unavailable, or a thread count an engine cannot honor, is a
// configuration error; there is no silent fallback.
package fpsolve

import (
	"github.com/zeebo/errs"
)

// Error is the class of solver failures.
var Error = errs.Class("fpsolve")

// ErrConfig is the class of solver configuration errors: unknown engine
// names and unsatisfiable thread counts.
var ErrConfig = errs.Class("fpsolve config")

// Column is one unit-amplitude model profile, sparse over image pixels.
// Index holds flattened pixel indices, Value the profile values.
type Column struct {
	Index []int
	Value []float64
}

// Problem is a weighted linear least-squares problem: find amplitudes a
// minimizing sum over pixels of ivar*(data - sum_i a_i*col_i)^2.
type Problem struct {
	Data []float64
	IVar []float64
	Cols []Column
}

// Result holds per-parameter amplitude estimates and inverse variances.
// A parameter with no statistical weight anywhere (all its pixels carry
// zero inverse variance) gets amplitude 0 and inverse variance 0.
type Result struct {
	Amp  []float64
	IVar []float64
}

// Engine solves amplitude problems.  Implementations block until done.
type Engine interface {
	Solve(p *Problem) (*Result, error)
	Name() string
}

// Config selects and parameterizes an engine.
type Config struct {
	// Engine is "cholesky" (default) or "qr".
	Engine string
	// Threads is the worker count for engines that accumulate the normal
	// matrix in parallel.  Zero means 1.
	Threads int
}

// New constructs the configured engine.
func New(cfg Config) (Engine, error) {
	threads := cfg.Threads
	if threads == 0 {
		threads = 1
	}
	if threads < 1 {
		return nil, ErrConfig.New("thread count %d out of range", cfg.Threads)
	}
	switch cfg.Engine {
	case "", "cholesky":
		return &choleskyEngine{threads: threads}, nil
	case "qr":
		if threads > 1 {
			return nil, ErrConfig.New(
				"engine qr is single-threaded, %d threads requested", threads)
		}
		return &qrEngine{}, nil
	}
	return nil, ErrConfig.New("unknown engine %q", cfg.Engine)
}
