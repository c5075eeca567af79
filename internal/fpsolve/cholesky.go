// Public domain.

package fpsolve

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// choleskyEngine solves through the normal equations with a Cholesky
// factorization.  The normal matrix is accumulated from the sparse columns,
// optionally across several workers.
type choleskyEngine struct {
	threads int
}

func (e *choleskyEngine) Name() string { return "cholesky" }

func (e *choleskyEngine) Solve(p *Problem) (*Result, error) {
	k := len(p.Cols)
	res := &Result{Amp: make([]float64, k), IVar: make([]float64, k)}
	if k == 0 {
		return res, nil
	}

	n, b := normalEquations(p, e.threads)

	// parameters with zero information are excluded from the solve and
	// reported with zero amplitude and zero inverse variance
	var live []int
	for i := 0; i < k; i++ {
		if n.At(i, i) > 0 {
			live = append(live, i)
		}
	}
	if len(live) == 0 {
		return res, nil
	}

	nl := mat.NewSymDense(len(live), nil)
	bl := mat.NewVecDense(len(live), nil)
	for a, i := range live {
		bl.SetVec(a, b.AtVec(i))
		for c, j := range live {
			if c >= a {
				nl.SetSym(a, c, n.At(i, j))
			}
		}
	}

	var ch mat.Cholesky
	if !ch.Factorize(nl) {
		return nil, Error.New("normal matrix not positive definite (%d params)", len(live))
	}
	var amp mat.VecDense
	if err := ch.SolveVecTo(&amp, bl); err != nil {
		return nil, Error.Wrap(err)
	}
	var cov mat.SymDense
	if err := ch.InverseTo(&cov); err != nil {
		return nil, Error.Wrap(err)
	}
	for a, i := range live {
		res.Amp[i] = amp.AtVec(a)
		if v := cov.At(a, a); v > 0 {
			res.IVar[i] = 1 / v
		}
	}
	return res, nil
}

// normalEquations accumulates N = A'WA and b = A'Wd from sparse columns.
// Work is split by row of N across the given number of workers.
func normalEquations(p *Problem, threads int) (*mat.SymDense, *mat.VecDense) {
	k := len(p.Cols)
	n := mat.NewSymDense(k, nil)
	b := mat.NewVecDense(k, nil)

	// dense scatter of each column is avoided; instead scatter column i
	// once per row of the normal matrix
	row := func(i int) {
		ci := &p.Cols[i]
		w := make(map[int]float64, len(ci.Index))
		var bi float64
		for t, px := range ci.Index {
			wv := ci.Value[t] * p.IVar[px]
			if wv == 0 {
				continue
			}
			w[px] = wv
			bi += wv * p.Data[px]
		}
		b.SetVec(i, bi)
		for j := i; j < k; j++ {
			cj := &p.Cols[j]
			var nij float64
			for t, px := range cj.Index {
				if wv, ok := w[px]; ok {
					nij += wv * cj.Value[t]
				}
			}
			n.SetSym(i, j, nij)
		}
	}

	if threads <= 1 {
		for i := 0; i < k; i++ {
			row(i)
		}
		return n, b
	}
	var wg sync.WaitGroup
	next := make(chan int)
	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				row(i)
			}
		}()
	}
	for i := 0; i < k; i++ {
		next <- i
	}
	close(next)
	wg.Wait()
	return n, b
}
