// Public domain.

package fpfit

import (
	"github.com/legacysurvey/forcedphot/internal/fpimage"
	"github.com/legacysurvey/forcedphot/internal/fpsolve"
)

// fitStatistics fills the per-source quality columns from the full fit
// pass.  Each statistic is weighted by the source's own unit profile, so a
// source reports contamination, residuals and masking where its light
// actually lands.
func fitStatistics(exp *fpimage.Exposure, reals []*realSource, derivs []*derivSource, agns []*auxPointSource, full *fpsolve.Result, results []FitResult) {
	w, h := exp.Width(), exp.Height()
	model := make([]float64, w*h)
	n := len(reals)
	for i, r := range reals {
		if r.patch != nil {
			r.patch.AddTo(model, w, h, full.Amp[i])
		}
	}
	for d, ds := range derivs {
		ds.dra.AddTo(model, w, h, full.Amp[n+2*d])
		ds.ddec.AddTo(model, w, h, full.Amp[n+2*d+1])
	}
	for a, as := range agns {
		if as.patch != nil {
			as.patch.AddTo(model, w, h, full.Amp[n+a])
		}
	}

	for i, r := range reals {
		p := r.patch
		if p == nil {
			continue
		}
		var usum, chi2, masked, other, inim float64
		flux := results[i].Flux
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
				um := p.Pix[iy*p.W+ix]
				inim += um
				if um < 0 {
					um = 0
				}
				if um == 0 {
					continue
				}
				usum += um
				pix := y*w + x
				iv := exp.InvVar[pix]
				if iv == 0 {
					masked += um
				}
				resid := exp.Pix[pix] - model[pix]
				chi2 += um * resid * resid * iv
				if flux > 0 {
					other += um * (model[pix]/flux - um)
				}
			}
		}
		results[i].FracIn = inim
		if usum == 0 {
			continue
		}
		results[i].RChisq = chi2 / usum
		results[i].FracMasked = masked / usum
		if flux > 0 {
			results[i].FracFlux = other / usum
		}
	}
}
