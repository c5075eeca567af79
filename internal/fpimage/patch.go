// Public domain.

// Package fpimage defines the calibrated exposure handed to the photometry
// engine and the pixel patches used to build its forward model.  Calibration
// itself (bias, flats, zeropoints, sky templates) happens upstream; an
// Exposure arrives here fully reduced and aligned to one pixel grid.
package fpimage

import "math"

// Patch is a small rectangular pixel stamp positioned on the image grid.
// X0, Y0 locate the stamp's lower-left pixel; Pix is row major, W wide.
type Patch struct {
	X0, Y0 int
	W, H   int
	Pix    []float64
}

// NewPatch allocates a zero patch.
func NewPatch(x0, y0, w, h int) *Patch {
	return &Patch{X0: x0, Y0: y0, W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the patch value at image coordinates (x, y), zero outside.
func (p *Patch) At(x, y int) float64 {
	ix := x - p.X0
	iy := y - p.Y0
	if ix < 0 || ix >= p.W || iy < 0 || iy >= p.H {
		return 0
	}
	return p.Pix[iy*p.W+ix]
}

// Sum returns the sum over all patch pixels.
func (p *Patch) Sum() float64 {
	var s float64
	for _, v := range p.Pix {
		s += v
	}
	return s
}

// SumInside returns the sum over patch pixels that land inside a w x h image.
func (p *Patch) SumInside(w, h int) float64 {
	var s float64
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
			s += p.Pix[iy*p.W+ix]
		}
	}
	return s
}

// AddTo accumulates scale*patch into a w x h image, clipping to bounds.
func (p *Patch) AddTo(img []float64, w, h int, scale float64) {
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
			img[y*w+x] += scale * p.Pix[iy*p.W+ix]
		}
	}
}

// Normalize scales the patch to unit sum.  A patch with non-positive sum is
// left untouched and reported degenerate.
func (p *Patch) Normalize() bool {
	s := p.Sum()
	if !(s > 0) {
		return false
	}
	inv := 1 / s
	for i := range p.Pix {
		p.Pix[i] *= inv
	}
	return true
}

// RenderGauss renders a pixel-sampled elliptical Gaussian with the given
// center (image coordinates) and covariance (pixel units squared), normalized
// to unit sum.  Returns nil when the covariance is degenerate or the stamp
// would be empty.
func RenderGauss(cx, cy, cxx, cxy, cyy float64) *Patch {
	det := cxx*cyy - cxy*cxy
	if !(det > 0) || cxx <= 0 || cyy <= 0 {
		return nil
	}
	// inverse covariance
	ixx := cyy / det
	ixy := -cxy / det
	iyy := cxx / det

	r := int(math.Ceil(5*math.Sqrt(math.Max(cxx, cyy)))) + 1
	x0 := int(math.Floor(cx)) - r
	y0 := int(math.Floor(cy)) - r
	n := 2*r + 1
	p := NewPatch(x0, y0, n, n)
	for iy := 0; iy < n; iy++ {
		dy := float64(y0+iy) - cy
		for ix := 0; ix < n; ix++ {
			dx := float64(x0+ix) - cx
			e := 0.5 * (ixx*dx*dx + 2*ixy*dx*dy + iyy*dy*dy)
			if e < 20 {
				p.Pix[iy*n+ix] = math.Exp(-e)
			}
		}
	}
	if !p.Normalize() {
		return nil
	}
	return p
}
