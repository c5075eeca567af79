// Public domain.

package fpsky

import (
	"math"

	"github.com/soniakeys/astro"
	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// J2000 as a modified Julian date, and the length of a Julian year in days.
const (
	J2000MJD   = 51544.5
	JulianYear = 365.25
)

// EpochToMJD converts a Julian-year reference epoch (eg 2015.5) to MJD.
func EpochToMJD(year float64) float64 {
	return J2000MJD + (year-2000)*JulianYear
}

// PositionAtMJD applies space motion to a catalog position, advancing it
// from its reference epoch to the given MJD.
//
// Args:
//   ra, dec:      position at the reference epoch, degrees
//   refEpoch:     reference epoch as a Julian year.  <= 0 means the source
//                 carries no motion parameters and ra, dec are returned
//                 unchanged.
//   pmra, pmdec:  proper motion in mas/yr.  pmra includes the cos(dec)
//                 factor.
//   parallax:     mas
//   mjd:          target epoch
//
// The parallax term uses the approximate solar ephemeris from the astro
// package; sub-mas precision is not claimed, matching the catalogs fed to
// this engine.
func PositionAtMJD(ra, dec, refEpoch, pmra, pmdec, parallax, mjd float64) (float64, float64) {
	if refEpoch <= 0 {
		return ra, dec
	}
	if pmra == 0 && pmdec == 0 && parallax == 0 {
		return ra, dec
	}
	dt := (mjd - EpochToMJD(refEpoch)) / JulianYear

	sa, ca := math.Sincos(ra * math.Pi / 180)
	sd, cd := math.Sincos(dec * math.Pi / 180)
	u := coord.Cart{X: ca * cd, Y: sa * cd, Z: sd}

	// local tangent basis: p east, q north
	p := coord.Cart{X: -sa, Y: ca, Z: 0}
	q := coord.Cart{X: -sd * ca, Y: -sd * sa, Z: cd}

	pmraRad := unit.AngleFromSec(pmra / 1000).Rad()
	pmdecRad := unit.AngleFromSec(pmdec / 1000).Rad()
	parRad := unit.AngleFromSec(parallax / 1000).Rad()

	var du coord.Cart
	p.MulScalar(&p, pmraRad*dt)
	q.MulScalar(&q, pmdecRad*dt)
	du.Add(&p, &q)

	if parRad != 0 {
		// Se2000 returns the geocentric solar vector in equatorial
		// coordinates, AU.  The earth's heliocentric position is its
		// negation, and the apparent parallactic shift is parallax times
		// the solar vector's component transverse to the line of sight.
		s, _, _ := astro.Se2000(mjd)
		var sPerp, along coord.Cart
		along = u
		along.MulScalar(&along, s.Dot(&u))
		sPerp.Sub(&s, &along)
		sPerp.MulScalar(&sPerp, parRad)
		du.Add(&du, &sPerp)
	}

	var un coord.Cart
	un.Add(&u, &du)
	norm := math.Sqrt(un.Square())
	un.MulScalar(&un, 1/norm)

	ra2 := math.Atan2(un.Y, un.X) * 180 / math.Pi
	if ra2 < 0 {
		ra2 += 360
	}
	dec2 := math.Asin(un.Z) * 180 / math.Pi
	return ra2, dec2
}
