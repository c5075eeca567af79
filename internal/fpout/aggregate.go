// Public domain.

// Package fpout assembles the per-source output table.  One row per
// photometered source, merging catalog identity, denormalized exposure
// metadata, model-fit photometry and aperture sums in a fixed column
// schema.
package fpout

import (
	"math"

	"github.com/legacysurvey/forcedphot/internal/fpap"
	"github.com/legacysurvey/forcedphot/internal/fpcat"
	"github.com/legacysurvey/forcedphot/internal/fpfit"
	"github.com/legacysurvey/forcedphot/internal/fpimage"
)

// Row is one output record.  Field order follows the survey's canonical
// column schema: identifiers, exposure metadata, photometry, apertures,
// position, data quality, derivative and AGN columns.
type Row struct {
	Release   int32
	BrickID   int32
	BrickName string
	ObjID     int32

	Camera    string
	ExpNum    int64
	CCDName   string
	Filter    string
	MJD       float64
	ExpTime   float64
	PsfSize   float64 // FWHM in arcsec
	FWHM      float64 // FWHM in pixels
	CCDCuts   int64
	Airmass   float64
	Sky       float64 // image units per square arcsec
	SkyRMS    float64
	PsfDepth  float64 // point-source flux inverse variance
	GalDepth  float64
	CCDZpt    float64
	CCDRARms  float64
	CCDDecRms float64
	CCDPhRms  float64

	RA, Dec float64

	Flux       float64
	FluxIVar   float64
	FracFlux   float64
	RChisq     float64
	FracMasked float64
	FracIn     float64

	ApFlux     []float64
	ApFluxIVar []float64

	X, Y   float64 // zero-indexed pixel position
	DQMask int16

	// derivative mode
	DRA, DDec         float64 // arcsec
	DRAIVar, DDecIVar float64

	// AGN mode
	FluxAGN     float64
	FluxAGNIVar float64
}

// Options mirrors the fit configuration the rows were produced under.
type Options struct {
	Derivs        bool
	AlsoFixedFlux bool
	AGN           bool
}

// Aggregate merges fit and aperture results with catalog identity and
// exposure metadata.  srcs, fit and ap are parallel, in assembled catalog
// order.  ap may be nil when aperture photometry was not run.
//
// In derivative mode the position nudges are converted from flux-weighted
// pixel sensitivities to arcsec offsets; with AlsoFixedFlux the reported
// flux and its inverse variance come from the fixed-position pass while
// the fit-quality statistics stay with the derivative pass.
func Aggregate(exp *fpimage.Exposure, srcs []fpcat.Source, fit []fpfit.FitResult, ap []fpap.Result, opt Options) []Row {
	pixscale := exp.WCS.PixelScale()
	w, h := exp.Width(), exp.Height()
	meta := Row{
		Camera:    exp.Camera,
		ExpNum:    exp.ExpNum,
		CCDName:   exp.CCDName,
		Filter:    exp.Band,
		MJD:       exp.MJD,
		ExpTime:   exp.ExpTime,
		PsfSize:   exp.FWHM * pixscale,
		FWHM:      exp.FWHM,
		CCDCuts:   exp.CCDCuts,
		Airmass:   exp.Airmass,
		Sky:       exp.MidSky / exp.ZpScale / (pixscale * pixscale),
		SkyRMS:    exp.SkyRMS,
		PsfDepth:  depth(exp.PsfNorm, exp.Sig1),
		GalDepth:  depth(exp.GalNorm, exp.Sig1),
		CCDZpt:    exp.CCDZpt,
		CCDRARms:  exp.CCDRARms,
		CCDDecRms: exp.CCDDecRms,
		CCDPhRms:  exp.CCDPhRms,
	}

	rows := make([]Row, len(srcs))
	for i := range srcs {
		s := &srcs[i]
		r := meta
		r.Release = s.Release
		r.BrickID = s.BrickID
		r.BrickName = s.BrickName
		r.ObjID = s.ObjID
		r.RA, r.Dec = s.RA, s.Dec

		f := &fit[i]
		r.Flux = f.Flux
		r.FluxIVar = f.FluxIVar
		r.FracFlux = f.FracFlux
		r.RChisq = f.RChisq
		r.FracMasked = f.FracMasked
		r.FracIn = f.FracIn

		if ap != nil {
			r.ApFlux = ap[i].Flux
			r.ApFluxIVar = ap[i].IVar
		}

		x, y, ok := exp.WCS.PixelXY(s.RA, s.Dec)
		r.X, r.Y = x, y
		r.DQMask = dqLookup(exp, x, y, ok, w, h)

		if opt.Derivs {
			cosdec := math.Cos(s.Dec * math.Pi / 180)
			if f.Flux != 0 {
				r.DRA = f.FluxDRA / f.Flux * 3600 / cosdec
				r.DDec = f.FluxDDec / f.Flux * 3600
			}
			r.DRAIVar = f.FluxDRAIVar * sq(f.Flux/3600*cosdec)
			r.DDecIVar = f.FluxDDecIVar * sq(f.Flux/3600)
			if opt.AlsoFixedFlux {
				r.Flux = f.FluxFixed
				r.FluxIVar = f.FluxFixedIVar
			}
		}
		if opt.AGN && f.HasAGN {
			r.FluxAGN = f.FluxAGN
			r.FluxAGNIVar = f.FluxAGNIVar
		}
		rows[i] = r
	}
	return rows
}

func depth(norm, sig1 float64) float64 {
	if sig1 == 0 {
		return 0
	}
	return sq(norm / sig1)
}

func sq(v float64) float64 { return v * v }

// dqLookup reads the data-quality mask at the nearest pixel, clipped to the
// image, and raises the out-of-bounds bit when the rounded position falls
// outside.
func dqLookup(exp *fpimage.Exposure, x, y float64, ok bool, w, h int) int16 {
	ix := int(math.Round(x))
	iy := int(math.Round(y))
	oob := !ok || ix < 0 || ix >= w || iy < 0 || iy >= h
	ix = min(max(ix, 0), w-1)
	iy = min(max(iy, 0), h-1)
	var dq int16
	if exp.DQ != nil {
		dq = exp.DQ[iy*w+ix]
	}
	if oob {
		dq |= fpimage.DQEdge2
	}
	return dq
}
