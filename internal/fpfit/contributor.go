// Public domain.

// Package fpfit is the forced-photometry estimation core.  Source shapes
// and positions stay frozen; the fit estimates one amplitude per model
// contributor against a calibrated exposure.  Contributors are a closed set
// of variants: the real catalog sources, synthetic derivative sources
// carrying sub-pixel position sensitivity for point sources, and auxiliary
// point sources capturing unresolved nuclear emission in galaxies.
package fpfit

import (
	"math"

	"github.com/zeebo/errs"

	"github.com/legacysurvey/forcedphot/internal/fpcat"
	"github.com/legacysurvey/forcedphot/internal/fpimage"
)

// Error is the class of fit-driver failures.
var Error = errs.Class("fpfit")

// contributor is one additive term of the forward model.  Each free
// parameter owns one unit-amplitude patch; a nil patch contributes nothing
// and its parameter solves to zero with zero inverse variance.
type contributor interface {
	unitPatches() []*fpimage.Patch
}

// realSource is a catalog source with a single flux parameter.
type realSource struct {
	src   *fpcat.Source
	x, y  float64 // pixel position, set even when off-image
	patch *fpimage.Patch
}

func (r *realSource) unitPatches() []*fpimage.Patch {
	return []*fpimage.Patch{r.patch}
}

// derivSource wraps a point-like real source with two extra parameters,
// the model's sensitivity to RA and Dec shifts.  The sensitivity patches
// are central differences of the real source's unit patch, rotated from
// pixel axes into sky-tangent RA/Dec via the inverse CD matrix.
type derivSource struct {
	real      *realSource
	dra, ddec *fpimage.Patch
}

func (d *derivSource) unitPatches() []*fpimage.Patch {
	return []*fpimage.Patch{d.dra, d.ddec}
}

// auxPointSource shares a galaxy's centroid but none of its shape.
type auxPointSource struct {
	real  *realSource
	patch *fpimage.Patch
}

func (a *auxPointSource) unitPatches() []*fpimage.Patch {
	return []*fpimage.Patch{a.patch}
}

// newDerivSource builds the sensitivity patches for a point-like source.
// Returns nil when the real source has a degenerate unit patch.
func newDerivSource(r *realSource, cdi [2][2]float64) *derivSource {
	if r.patch == nil {
		return nil
	}
	p := r.patch
	dx := fpimage.NewPatch(p.X0, p.Y0, p.W, p.H)
	dy := fpimage.NewPatch(p.X0, p.Y0, p.W, p.H)
	// symmetric differences, zero on a one-pixel border
	for iy := 1; iy < p.H-1; iy++ {
		for ix := 1; ix < p.W-1; ix++ {
			i := iy*p.W + ix
			dx.Pix[i] = (p.Pix[i-1] - p.Pix[i+1]) / 2
			dy.Pix[i] = (p.Pix[i-p.W] - p.Pix[i+p.W]) / 2
		}
	}
	dra := fpimage.NewPatch(p.X0, p.Y0, p.W, p.H)
	ddec := fpimage.NewPatch(p.X0, p.Y0, p.W, p.H)
	for i := range dra.Pix {
		dra.Pix[i] = dx.Pix[i]*cdi[0][0] + dy.Pix[i]*cdi[1][0]
		ddec.Pix[i] = dx.Pix[i]*cdi[0][1] + dy.Pix[i]*cdi[1][1]
	}
	return &derivSource{real: r, dra: dra, ddec: ddec}
}

// galaxyCovariance converts frozen catalog shape parameters to a pixel-space
// Gaussian covariance.  Galaxy profiles are approximated by the elliptical
// Gaussian matching the catalog half-light radius; PSF convolution is then
// covariance addition.
func galaxyCovariance(s *fpcat.Source, pixscale float64) (cxx, cxy, cyy float64) {
	// half-light radius of a circular Gaussian is 1.1774 sigma
	sigma := s.ShapeR / 1.1774 / pixscale
	if sigma <= 0 {
		return 0, 0, 0
	}
	e := math.Hypot(s.ShapeE1, s.ShapeE2)
	if e >= 1 {
		e = 0.999
	}
	theta := 0.5 * math.Atan2(s.ShapeE2, s.ShapeE1)
	q := (1 - e) / (1 + e)
	sa2 := sigma * sigma / q // semi-major variance, area preserved
	sb2 := sigma * sigma * q
	st, ct := math.Sincos(theta)
	cxx = sa2*ct*ct + sb2*st*st
	cyy = sa2*st*st + sb2*ct*ct
	cxy = (sa2 - sb2) * st * ct
	return
}

// renderUnit renders a source's unit-flux model patch on an exposure, nil
// when the source projects off the sphere or its model is degenerate.
func renderUnit(exp *fpimage.Exposure, s *fpcat.Source, x, y float64) *fpimage.Patch {
	if s.PointLike() {
		return exp.PSF.Render(x, y)
	}
	ps := exp.PSF.Sigma()
	cxx, cxy, cyy := galaxyCovariance(s, exp.WCS.PixelScale())
	return fpimage.RenderGauss(x, y, cxx+ps*ps, cxy, cyy+ps*ps)
}
