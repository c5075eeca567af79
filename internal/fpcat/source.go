// Public domain.

// Package fpcat assembles the catalog slice to photometer on one exposure.
// Catalogs are partitioned into brick files, optionally split between a
// northern and a southern reduction with a declination resolve line, and
// large-galaxy entries may have to be backfilled from bricks outside the
// exposure footprint.
package fpcat

import (
	"github.com/zeebo/errs"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

// Error is the class of catalog assembly errors.
var Error = errs.Class("fpcat")

// ErrNoSources is returned by Assemble when no brick overlaps the exposure
// or every overlapping brick is empty after cuts.  Callers treat it as
// "nothing to photometer", not a failure.
var ErrNoSources = errs.New("no catalog sources in footprint")

// Source type classifications used by the catalogs.
const (
	TypePSF = "PSF"
	TypeRex = "REX" // round exponential galaxy
	TypeExp = "EXP"
	TypeDev = "DEV"
	TypeSer = "SER"
	TypeDup = "DUP" // placeholder rows, dropped on load
)

// RefCatLarge tags large-galaxy entries in the reference-catalog column.
const RefCatLarge = "L3"

// Source is one catalog entry.  Shape parameters are immutable during a
// fit; only per-band brightness (and, for synthetic derivative sources,
// position sensitivity) is ever free.
type Source struct {
	RA, Dec float64 // degrees
	Type    string

	Release   int32
	BrickID   int32
	BrickName string
	ObjID     int32

	BrickPrimary bool

	// shape, frozen throughout
	Sersic  float64
	ShapeR  float64 // half-light radius, arcsec
	ShapeE1 float64
	ShapeE2 float64

	// brightness per band
	Fluxes map[string]float64

	// space motion
	RefEpoch float64 // Julian year; <= 0 means none
	PMRA     float64 // mas/yr, includes cos(dec)
	PMDec    float64 // mas/yr
	Parallax float64 // mas

	// reference catalog cross-match
	RefCat     string
	RefID      int64
	KeepRadius float64 // degrees, large galaxies only
}

// Flux returns the catalog flux in a band, zero when absent.
func (s *Source) Flux(band string) float64 {
	return s.Fluxes[band]
}

// SetFlux sets the flux in a band, allocating the map on first use.
func (s *Source) SetFlux(band string, v float64) {
	if s.Fluxes == nil {
		s.Fluxes = make(map[string]float64, 1)
	}
	s.Fluxes[band] = v
}

// PointLike reports whether the source is a point source.
func (s *Source) PointLike() bool { return s.Type == TypePSF }

// LargeGalaxy reports whether the source is a large-galaxy reference entry.
func (s *Source) LargeGalaxy() bool { return s.RefCat == RefCatLarge }

// PropagateEpochs advances every source carrying motion parameters to the
// exposure epoch.  Must run after assembly and before any pixel-position
// lookup or off-footprint subtraction.
func PropagateEpochs(srcs []Source, mjd float64) {
	for i := range srcs {
		s := &srcs[i]
		if s.RefEpoch <= 0 {
			continue
		}
		s.RA, s.Dec = fpsky.PositionAtMJD(
			s.RA, s.Dec, s.RefEpoch, s.PMRA, s.PMDec, s.Parallax, mjd)
	}
}
