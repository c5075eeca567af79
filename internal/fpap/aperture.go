// Public domain.

// Package fpap measures aperture fluxes.  Apertures are circles of fixed
// angular radius around the catalog positions, summed over whole pixels of
// the calibrated image.  Aperture photometry is independent of the model
// fit and runs even for sources the fit assigned no flux.
package fpap

import (
	"math"

	"github.com/legacysurvey/forcedphot/internal/fpcat"
	"github.com/legacysurvey/forcedphot/internal/fpimage"
)

// DefaultRadiiArcsec is the survey's standard aperture ladder.
var DefaultRadiiArcsec = []float64{0.5, 0.75, 1.0, 1.5, 2.0, 3.5, 5.0, 7.0}

// Result holds one source's aperture sums, indexed parallel to the radius
// list.  IVar is propagated from the per-pixel noise; masked pixels carry
// zero error, matching the fit's treatment of zero-weight pixels.
type Result struct {
	Flux []float64
	IVar []float64
}

// Sum measures aperture fluxes for every source on one exposure.  A nil
// radius list means DefaultRadiiArcsec.  Sources whose centers fall outside
// the image get zero-filled rows, as does any aperture whose sums come out
// non-finite; rows are never dropped.
func Sum(exp *fpimage.Exposure, srcs []fpcat.Source, radiiArcsec []float64) []Result {
	if radiiArcsec == nil {
		radiiArcsec = DefaultRadiiArcsec
	}
	pixscale := exp.WCS.PixelScale()
	radii := make([]float64, len(radiiArcsec))
	for i, r := range radiiArcsec {
		radii[i] = r / pixscale
	}

	w, h := exp.Width(), exp.Height()
	out := make([]Result, len(srcs))
	for i := range srcs {
		out[i] = Result{
			Flux: make([]float64, len(radii)),
			IVar: make([]float64, len(radii)),
		}
		x, y, ok := exp.WCS.PixelXY(srcs[i].RA, srcs[i].Dec)
		if !ok || !exp.Contains(x, y) {
			continue
		}
		for j, rad := range radii {
			flux, varsum := sumCircle(exp, x, y, rad, w, h)
			if !math.IsInf(flux, 0) && !math.IsNaN(flux) {
				out[i].Flux[j] = flux
			}
			if varsum > 0 {
				iv := 1 / varsum
				if !math.IsInf(iv, 0) && !math.IsNaN(iv) {
					out[i].IVar[j] = iv
				}
			}
		}
	}
	return out
}

// sumCircle sums image and variance over whole pixels whose centers lie
// within rad of (x, y), clipped to the image.
func sumCircle(exp *fpimage.Exposure, x, y, rad float64, w, h int) (flux, varsum float64) {
	x0 := max(0, int(math.Ceil(x-rad)))
	x1 := min(w-1, int(math.Floor(x+rad)))
	y0 := max(0, int(math.Ceil(y-rad)))
	y1 := min(h-1, int(math.Floor(y+rad)))
	r2 := rad * rad
	for iy := y0; iy <= y1; iy++ {
		dy := float64(iy) - y
		for ix := x0; ix <= x1; ix++ {
			dx := float64(ix) - x
			if dx*dx+dy*dy > r2 {
				continue
			}
			pix := iy*w + ix
			flux += exp.Pix[pix]
			if iv := exp.InvVar[pix]; iv > 0 {
				varsum += 1 / iv
			}
		}
	}
	return flux, varsum
}
