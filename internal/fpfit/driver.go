// Public domain.

package fpfit

import (
	"go.uber.org/zap"

	"github.com/legacysurvey/forcedphot/internal/fpcat"
	"github.com/legacysurvey/forcedphot/internal/fpimage"
	"github.com/legacysurvey/forcedphot/internal/fpsolve"
)

// Config selects the fit parameterization.
type Config struct {
	// Derivs adds RA/Dec sensitivity parameters to point-like sources.
	Derivs bool
	// AlsoFixedFlux runs a fixed-position pass before the derivative
	// pass and reports its flux alongside.  Only meaningful with Derivs.
	AlsoFixedFlux bool
	// AGN adds an auxiliary point source to every EXP/DEV/SER galaxy.
	// Mutually exclusive with Derivs.
	AGN bool

	Solver fpsolve.Config
}

// FitResult holds the per-source outcome of the model fit.  Slices indexed
// parallel to the fitted source list.
type FitResult struct {
	Flux     float64
	FluxIVar float64

	// fit quality, from the full fit pass
	FracFlux   float64
	FracIn     float64
	RChisq     float64
	FracMasked float64

	// fixed-position baseline, when AlsoFixedFlux
	FluxFixed     float64
	FluxFixedIVar float64

	// derivative parameters, when Derivs and the source is point-like
	HasDerivs    bool
	FluxDRA      float64
	FluxDDec     float64
	FluxDRAIVar  float64
	FluxDDecIVar float64

	// auxiliary point source, when AGN and the source is a galaxy
	HasAGN      bool
	FluxAGN     float64
	FluxAGNIVar float64
}

// Run fits the assembled, epoch-corrected source list against one exposure.
// srcs is mutated: working unit fluxes are assigned in the exposure band,
// and large galaxies centered off-image are subtracted from the pixels and
// removed from the list.  The trimmed list and its parallel results are
// returned.
func Run(log *zap.Logger, exp *fpimage.Exposure, srcs []fpcat.Source, cfg Config) ([]fpcat.Source, []FitResult, error) {
	if cfg.Derivs && cfg.AGN {
		return nil, nil, Error.New("%s: derivative and AGN modes are mutually exclusive", exp.Name())
	}
	engine, err := fpsolve.New(cfg.Solver)
	if err != nil {
		return nil, nil, err
	}

	srcs = subtractOffImageGalaxies(log, exp, srcs)
	for i := range srcs {
		srcs[i].SetFlux(exp.Band, 1)
	}

	reals := make([]*realSource, len(srcs))
	for i := range srcs {
		s := &srcs[i]
		x, y, ok := exp.WCS.PixelXY(s.RA, s.Dec)
		r := &realSource{src: s, x: x, y: y}
		if ok {
			r.patch = renderUnit(exp, s, x, y)
		}
		reals[i] = r
	}

	var derivs []*derivSource
	var derivIdx []int
	if cfg.Derivs {
		cdi := exp.WCS.CDInverse()
		for i, r := range reals {
			if !r.src.PointLike() {
				continue
			}
			if d := newDerivSource(r, cdi); d != nil {
				derivs = append(derivs, d)
				derivIdx = append(derivIdx, i)
			}
		}
	}

	var agns []*auxPointSource
	var agnIdx []int
	if cfg.AGN {
		for i, r := range reals {
			switch r.src.Type {
			case fpcat.TypeExp, fpcat.TypeDev, fpcat.TypeSer:
			default:
				continue
			}
			a := &auxPointSource{real: r}
			if r.patch != nil {
				a.patch = exp.PSF.Render(r.x, r.y)
			}
			agns = append(agns, a)
			agnIdx = append(agnIdx, i)
		}
		log.Debug("added auxiliary point sources", zap.Int("count", len(agns)))
	}

	results := make([]FitResult, len(srcs))

	if cfg.Derivs && cfg.AlsoFixedFlux {
		fixed, err := solvePass(engine, exp, contributors(reals, nil, nil))
		if err != nil {
			return nil, nil, Error.New("%s: fixed-position pass: %v", exp.Name(), err)
		}
		for i := range results {
			results[i].FluxFixed = fixed.Amp[i]
			results[i].FluxFixedIVar = fixed.IVar[i]
		}
	}

	full, err := solvePass(engine, exp, contributors(reals, derivs, agns))
	if err != nil {
		return nil, nil, Error.New("%s: photometry pass: %v", exp.Name(), err)
	}

	n := len(reals)
	for i := range results {
		results[i].Flux = full.Amp[i]
		results[i].FluxIVar = full.IVar[i]
	}
	for d, i := range derivIdx {
		results[i].HasDerivs = true
		results[i].FluxDRA = full.Amp[n+2*d]
		results[i].FluxDRAIVar = full.IVar[n+2*d]
		results[i].FluxDDec = full.Amp[n+2*d+1]
		results[i].FluxDDecIVar = full.IVar[n+2*d+1]
	}
	for a, i := range agnIdx {
		results[i].HasAGN = true
		results[i].FluxAGN = full.Amp[n+a]
		results[i].FluxAGNIVar = full.IVar[n+a]
	}

	fitStatistics(exp, reals, derivs, agns, full, results)
	return srcs, results, nil
}

// contributors flattens the real and synthetic sources, reals first so the
// leading parameters map one to one onto the source list.
func contributors(reals []*realSource, derivs []*derivSource, agns []*auxPointSource) []contributor {
	cs := make([]contributor, 0, len(reals)+len(derivs)+len(agns))
	for _, r := range reals {
		cs = append(cs, r)
	}
	for _, d := range derivs {
		cs = append(cs, d)
	}
	for _, a := range agns {
		cs = append(cs, a)
	}
	return cs
}

// solvePass assembles the sparse amplitude problem for one contributor set
// and runs the engine.
func solvePass(engine fpsolve.Engine, exp *fpimage.Exposure, cs []contributor) (*fpsolve.Result, error) {
	var cols []fpsolve.Column
	w, h := exp.Width(), exp.Height()
	for _, c := range cs {
		for _, p := range c.unitPatches() {
			cols = append(cols, patchColumn(p, w, h))
		}
	}
	return engine.Solve(&fpsolve.Problem{Data: exp.Pix, IVar: exp.InvVar, Cols: cols})
}

// patchColumn flattens the in-image part of a patch to a sparse column.
// A nil patch becomes an empty column: zero information, zero amplitude.
func patchColumn(p *fpimage.Patch, w, h int) fpsolve.Column {
	var col fpsolve.Column
	if p == nil {
		return col
	}
	for iy := 0; iy < p.H; iy++ {
		y := p.Y0 + iy
		if y < 0 || y >= h {
			continue
		}
		for ix := 0; ix < p.W; ix++ {
			x := p.X0 + ix
			if x < 0 || x >= w {
				continue
			}
			if v := p.Pix[iy*p.W+ix]; v != 0 {
				col.Index = append(col.Index, y*w+x)
				col.Value = append(col.Value, v)
			}
		}
	}
	return col
}

// subtractOffImageGalaxies removes the rendered contribution of large
// galaxies whose centers fall outside the image, then drops them from the
// fit list; their profiles reach in but they are not photometered here.
func subtractOffImageGalaxies(log *zap.Logger, exp *fpimage.Exposure, srcs []fpcat.Source) []fpcat.Source {
	out := srcs[:0]
	for i := range srcs {
		s := &srcs[i]
		x, y, ok := exp.WCS.PixelXY(s.RA, s.Dec)
		if !s.LargeGalaxy() || (ok && exp.Contains(x, y)) {
			out = append(out, *s)
			continue
		}
		flux := s.Flux(exp.Band)
		if flux == 0 {
			log.Warn("off-image large galaxy has no catalog flux, not subtracted",
				zap.String("exposure", exp.Name()),
				zap.Int64("ref_id", s.RefID), zap.String("band", exp.Band))
			continue
		}
		if p := renderUnit(exp, s, x, y); p != nil {
			exp.SubtractModel(p, flux)
			log.Debug("subtracted off-image large galaxy",
				zap.Int64("ref_id", s.RefID), zap.Float64("flux", flux))
		}
	}
	return out
}
