// Public domain.

// Package fpsky holds the small amount of spherical astronomy needed for
// forced photometry: a TAN world coordinate system, space-motion propagation
// of catalog positions, and galactic latitude for resolve-line decisions.
package fpsky

import (
	"math"
)

// WCS is a TAN (gnomonic) projection with a constant CD matrix.
// Pixel coordinates are zero-indexed; CRPix is in the same convention.
// CD maps pixel offsets to (ra, dec) offsets in degrees.
type WCS struct {
	CRVal1, CRVal2 float64 // tangent point ra, dec in degrees
	CRPix1, CRPix2 float64 // reference pixel, zero-indexed
	CD             [2][2]float64
	W, H           int
}

// PixelXY converts sky coordinates in degrees to pixel coordinates.
// ok is false when the position is on the far hemisphere from the
// tangent point.
func (w *WCS) PixelXY(ra, dec float64) (x, y float64, ok bool) {
	a0 := w.CRVal1 * math.Pi / 180
	d0 := w.CRVal2 * math.Pi / 180
	a := ra * math.Pi / 180
	d := dec * math.Pi / 180
	sd0, cd0 := math.Sincos(d0)
	sd, cd := math.Sincos(d)
	sda, cda := math.Sincos(a - a0)

	den := sd*sd0 + cd*cd0*cda
	if den <= 0 {
		return 0, 0, false
	}
	// intermediate world coordinates, degrees
	xi := cd * sda / den * 180 / math.Pi
	eta := (sd*cd0 - cd*sd0*cda) / den * 180 / math.Pi

	cdi := w.CDInverse()
	x = w.CRPix1 + xi*cdi[0][0] + eta*cdi[0][1]
	y = w.CRPix2 + xi*cdi[1][0] + eta*cdi[1][1]
	return x, y, true
}

// RaDec converts zero-indexed pixel coordinates to sky coordinates in degrees.
func (w *WCS) RaDec(x, y float64) (ra, dec float64) {
	dx := x - w.CRPix1
	dy := y - w.CRPix2
	xi := (w.CD[0][0]*dx + w.CD[0][1]*dy) * math.Pi / 180
	eta := (w.CD[1][0]*dx + w.CD[1][1]*dy) * math.Pi / 180

	a0 := w.CRVal1 * math.Pi / 180
	d0 := w.CRVal2 * math.Pi / 180
	sd0, cd0 := math.Sincos(d0)

	den := cd0 - eta*sd0
	da := math.Atan2(xi, den)
	ra = math.Mod((a0+da)*180/math.Pi+360, 360)
	dec = math.Atan((sd0+eta*cd0)*math.Cos(da)/den) * 180 / math.Pi
	return ra, dec
}

// CDInverse returns the inverse CD matrix, mapping (ra, dec) offsets in
// degrees to pixel offsets.
func (w *WCS) CDInverse() [2][2]float64 {
	det := w.CD[0][0]*w.CD[1][1] - w.CD[0][1]*w.CD[1][0]
	return [2][2]float64{
		{w.CD[1][1] / det, -w.CD[0][1] / det},
		{-w.CD[1][0] / det, w.CD[0][0] / det},
	}
}

// PixelScale returns the local pixel scale in arcseconds per pixel.
func (w *WCS) PixelScale() float64 {
	det := w.CD[0][0]*w.CD[1][1] - w.CD[0][1]*w.CD[1][0]
	return math.Sqrt(math.Abs(det)) * 3600
}

// Bounds returns the sky rectangle covered by the image plus a margin given
// in pixels.  RA bounds may wrap through 0; callers test overlap with
// RAOverlap.
func (w *WCS) Bounds(marginPix float64) (ralo, rahi, declo, dechi float64) {
	first := true
	xs := []float64{-marginPix, float64(w.W) + marginPix}
	ys := []float64{-marginPix, float64(w.H) + marginPix}
	var ras []float64
	for _, x := range xs {
		for _, y := range ys {
			ra, dec := w.RaDec(x, y)
			if first {
				declo, dechi = dec, dec
				first = false
			} else {
				declo = math.Min(declo, dec)
				dechi = math.Max(dechi, dec)
			}
			ras = append(ras, ra)
		}
	}
	ralo, rahi = raRange(ras, w.CRVal1)
	return
}

// raRange finds the RA extent of corner values, unwrapping about a center RA
// so that an image crossing RA 0 gets a contiguous (possibly negative or
// >360) range.
func raRange(ras []float64, center float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, ra := range ras {
		d := ra - center
		for d > 180 {
			d -= 360
		}
		for d < -180 {
			d += 360
		}
		lo = math.Min(lo, center+d)
		hi = math.Max(hi, center+d)
	}
	return
}

// RAOverlap reports whether two RA intervals overlap on the circle.
func RAOverlap(alo, ahi, blo, bhi float64) bool {
	// compare the b interval shifted by whole turns
	for _, s := range []float64{-360, 0, 360} {
		if blo+s <= ahi && bhi+s >= alo {
			return true
		}
	}
	return false
}
