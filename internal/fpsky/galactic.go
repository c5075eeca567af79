// Public domain.

package fpsky

import (
	"math"

	"github.com/soniakeys/coord"
)

// J2000 equatorial coordinates of the north galactic pole, degrees.
const (
	galPoleRA  = 192.85948
	galPoleDec = 27.12825
)

// GalacticB returns the galactic latitude in degrees of an equatorial
// position given in degrees.  Only the sign matters to the resolve-line
// logic, so the rotation to full galactic (l, b) is not carried.
func GalacticB(ra, dec float64) float64 {
	sa, ca := math.Sincos(ra * math.Pi / 180)
	sd, cd := math.Sincos(dec * math.Pi / 180)
	u := coord.Cart{X: ca * cd, Y: sa * cd, Z: sd}

	sp, cp := math.Sincos(galPoleRA * math.Pi / 180)
	spd, cpd := math.Sincos(galPoleDec * math.Pi / 180)
	pole := coord.Cart{X: cp * cpd, Y: sp * cpd, Z: spd}

	return math.Asin(u.Dot(&pole)) * 180 / math.Pi
}
