// Public domain.

package fpcat

import (
	"math"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

// Brick is a fixed rectangular sky tile.  Catalogs are stored one file per
// brick.  GalB is the galactic latitude of the brick center; stores that do
// not record it leave it zero and the assembler computes it on demand.
type Brick struct {
	Name     string
	ID       int32
	RA, Dec  float64 // center, degrees
	RA1, RA2 float64
	Dec1     float64
	Dec2     float64
	GalB     float64
}

// Contains reports whether a sky position falls in the brick's half-open
// rectangle [ra1, ra2) x [dec1, dec2), RA-wrap aware.
func (b *Brick) Contains(ra, dec float64) bool {
	if dec < b.Dec1 || dec >= b.Dec2 {
		return false
	}
	ra1, ra2 := b.RA1, b.RA2
	if ra1 <= ra2 {
		return ra >= ra1 && ra < ra2
	}
	// brick straddles RA 0
	return ra >= ra1 || ra < ra2
}

// galB returns the recorded galactic latitude, computing it from the brick
// center when the store left it unset.
func (b *Brick) galB() float64 {
	if b.GalB != 0 {
		return b.GalB
	}
	return fpsky.GalacticB(b.RA, b.Dec)
}

// Overlaps reports whether the brick rectangle intersects an RA/Dec bounding
// box as produced by fpsky.WCS.Bounds.
func (b *Brick) Overlaps(ralo, rahi, declo, dechi float64) bool {
	if b.Dec2 < declo || b.Dec1 > dechi {
		return false
	}
	ra1, ra2 := b.RA1, b.RA2
	if ra1 > ra2 {
		ra2 += 360
	}
	return fpsky.RAOverlap(ralo, rahi, ra1, ra2)
}

// bricksTouching filters brick metadata down to those overlapping the
// footprint box.
func bricksTouching(bricks []Brick, ralo, rahi, declo, dechi float64) []Brick {
	var out []Brick
	for _, b := range bricks {
		if b.Overlaps(ralo, rahi, declo, dechi) {
			out = append(out, b)
		}
	}
	return out
}

// bricksNear returns bricks whose centers lie within radius degrees of a sky
// position.  Used by the backfill when a catalog-recorded brick name turns
// out not to contain its source.
func bricksNear(bricks []Brick, ra, dec, radius float64) []Brick {
	var out []Brick
	for _, b := range bricks {
		if angularSep(ra, dec, b.RA, b.Dec) <= radius {
			out = append(out, b)
		}
	}
	return out
}

// angularSep returns the angular separation of two sky positions in degrees.
func angularSep(ra1, dec1, ra2, dec2 float64) float64 {
	sd1, cd1 := math.Sincos(dec1 * math.Pi / 180)
	sd2, cd2 := math.Sincos(dec2 * math.Pi / 180)
	cos := sd1*sd2 + cd1*cd2*math.Cos((ra2-ra1)*math.Pi/180)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// brickByName finds a brick by name.
func brickByName(bricks []Brick, name string) (Brick, bool) {
	for _, b := range bricks {
		if b.Name == name {
			return b, true
		}
	}
	return Brick{}, false
}
