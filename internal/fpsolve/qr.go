// Public domain.

package fpsolve

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// qrEngine solves through a dense QR factorization of the weighted design
// matrix.  Slower and single threaded, but does not square the condition
// number the way the normal equations do.
type qrEngine struct{}

func (e *qrEngine) Name() string { return "qr" }

func (e *qrEngine) Solve(p *Problem) (*Result, error) {
	k := len(p.Cols)
	res := &Result{Amp: make([]float64, k), IVar: make([]float64, k)}
	if k == 0 {
		return res, nil
	}

	// map the union of column supports with nonzero weight to dense rows
	rowOf := make(map[int]int)
	for _, c := range p.Cols {
		for _, px := range c.Index {
			if p.IVar[px] > 0 {
				if _, ok := rowOf[px]; !ok {
					rowOf[px] = len(rowOf)
				}
			}
		}
	}

	// zero-information parameters are excluded, as in the cholesky engine
	info := make([]float64, k)
	for i, c := range p.Cols {
		for t, px := range c.Index {
			info[i] += c.Value[t] * c.Value[t] * p.IVar[px]
		}
	}
	var live []int
	for i := 0; i < k; i++ {
		if info[i] > 0 {
			live = append(live, i)
		}
	}
	if len(live) == 0 || len(rowOf) < len(live) {
		return res, nil
	}

	m := len(rowOf)
	a := mat.NewDense(m, len(live), nil)
	bv := mat.NewVecDense(m, nil)
	for px, r := range rowOf {
		bv.SetVec(r, p.Data[px]*math.Sqrt(p.IVar[px]))
	}
	for c, i := range live {
		col := &p.Cols[i]
		for t, px := range col.Index {
			if r, ok := rowOf[px]; ok {
				a.Set(r, c, col.Value[t]*math.Sqrt(p.IVar[px]))
			}
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var amp mat.VecDense
	if err := qr.SolveVecTo(&amp, false, bv); err != nil {
		return nil, Error.Wrap(err)
	}

	// parameter covariance from the normal matrix of the live columns
	n, _ := normalEquations(&Problem{Data: p.Data, IVar: p.IVar, Cols: p.Cols}, 1)
	nl := mat.NewSymDense(len(live), nil)
	for r, i := range live {
		for c, j := range live {
			if c >= r {
				nl.SetSym(r, c, n.At(i, j))
			}
		}
	}
	var ch mat.Cholesky
	if !ch.Factorize(nl) {
		return nil, Error.New("normal matrix not positive definite (%d params)", len(live))
	}
	var cov mat.SymDense
	if err := ch.InverseTo(&cov); err != nil {
		return nil, Error.Wrap(err)
	}
	for r, i := range live {
		res.Amp[i] = amp.AtVec(r)
		if v := cov.At(r, r); v > 0 {
			res.IVar[i] = 1 / v
		}
	}
	return res, nil
}
