// Public domain.

package fpcat

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

// neighborRadiusDeg bounds the brick search when a reference entry's
// recorded brick name does not actually contain its position.  Roughly one
// brick radius.
const neighborRadiusDeg = 0.2

// backfillLargeGalaxies finds large-galaxy reference entries whose keep
// radius touches the exposure but which the footprint-intersecting bricks
// did not supply, reads their true bricks, and returns the missing rows.
//
// A count or identity mismatch between the required and obtained sets is a
// catalog-consistency failure and aborts the exposure.
func backfillLargeGalaxies(log *zap.Logger, have []Source, wcs *fpsky.WCS, cfg Config) ([]Source, error) {
	sga, err := cfg.Ref.LargeGalaxies()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	needed := cutTouchingKeepRadius(sga, wcs)
	if len(needed) == 0 {
		return nil, nil
	}

	// which of those are already in the assembled catalog?  Every
	// keep-radius entry is either present exactly once or goes in the
	// missing set; a duplicate is a catalog-consistency failure.
	present := make(map[int64]int)
	for i := range have {
		if have[i].LargeGalaxy() {
			present[have[i].RefID]++
		}
	}
	var missing []RefGalaxy
	for _, g := range needed {
		switch present[g.RefID] {
		case 0:
			missing = append(missing, g)
		case 1:
		default:
			return nil, Error.New(
				"large galaxy %s-%d appears %d times in the assembled catalog",
				g.RefCat, g.RefID, present[g.RefID])
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	log.Info("backfilling large galaxies", zap.Int("missing", len(missing)))

	// resolve each missing entry to its true containing brick
	bricks, err := cfg.North.Bricks()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	brickNames := make(map[string]bool)
	for _, g := range missing {
		b, ok := resolveBrick(bricks, g)
		if !ok {
			return nil, Error.New("no brick contains large galaxy %s-%d at (%.4f, %.4f)",
				g.RefCat, g.RefID, g.RA, g.Dec)
		}
		brickNames[b.Name] = true
	}

	wanted := make(map[int64]bool, len(missing))
	for _, g := range missing {
		wanted[g.RefID] = true
	}

	// read only the large-galaxy rows from each resolved brick.  The
	// resolve line does not matter here: these entries are frozen
	// identically in both reductions, so the first store holding the
	// brick file wins.
	stores := []Store{cfg.North}
	if cfg.South != nil {
		stores = append(stores, cfg.South)
	}
	names := make([]string, 0, len(brickNames))
	for n := range brickNames {
		names = append(names, n)
	}
	sort.Strings(names)

	var got []Source
	for _, name := range names {
		rows, err := readLargeGalaxyRows(stores, name)
		if err != nil {
			return nil, err
		}
		for _, s := range rows {
			if wanted[s.RefID] {
				got = append(got, s)
			}
		}
	}

	if err := verifyBackfill(missing, got); err != nil {
		return nil, err
	}
	return got, nil
}

// cutTouchingKeepRadius keeps frozen large-galaxy entries whose keep radius
// overlaps the image.
func cutTouchingKeepRadius(sga []RefGalaxy, wcs *fpsky.WCS) []RefGalaxy {
	pixscale := wcs.PixelScale()
	w := float64(wcs.W)
	h := float64(wcs.H)
	var out []RefGalaxy
	for _, g := range sga {
		if !g.Frozen || g.RefCat != RefCatLarge {
			continue
		}
		keepPix := math.Ceil(g.KeepRadius * 3600 / pixscale)
		x, y, ok := wcs.PixelXY(g.RA, g.Dec)
		if !ok {
			continue
		}
		if x > -keepPix && x < w+keepPix && y > -keepPix && y < h+keepPix {
			out = append(out, g)
		}
	}
	return out
}

// resolveBrick maps a reference entry to the brick actually containing its
// position: the recorded name when correct, otherwise a small-radius
// neighbor search.
func resolveBrick(bricks []Brick, g RefGalaxy) (Brick, bool) {
	if b, ok := brickByName(bricks, g.BrickName); ok && b.Contains(g.RA, g.Dec) {
		return b, true
	}
	for _, b := range bricksNear(bricks, g.RA, g.Dec, neighborRadiusDeg) {
		if b.Contains(g.RA, g.Dec) {
			return b, true
		}
	}
	return Brick{}, false
}

// readLargeGalaxyRows loads one brick from the first store that has it and
// returns its brick-primary large-galaxy rows.
func readLargeGalaxyRows(stores []Store, brick string) ([]Source, error) {
	var lastErr error
	for _, st := range stores {
		srcs, err := st.Catalog(brick)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				lastErr = err
				continue
			}
			return nil, Error.Wrap(err)
		}
		var out []Source
		for _, s := range srcs {
			if s.LargeGalaxy() && s.BrickPrimary {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, Error.New("backfill brick %s unavailable in any store: %v", brick, lastErr)
}

// verifyBackfill enforces the backfill invariant: the obtained rows must
// match the required reference entries exactly, by count and identity.
func verifyBackfill(missing []RefGalaxy, got []Source) error {
	gotIDs := make(map[int64]bool, len(got))
	for i := range got {
		gotIDs[got[i].RefID] = true
	}
	var lost []string
	for _, g := range missing {
		if !gotIDs[g.RefID] {
			lost = append(lost, fmt.Sprintf("%s-%d (brick %s)", g.RefCat, g.RefID, g.BrickName))
		}
	}
	if len(got) != len(missing) || len(lost) > 0 {
		return Error.New(
			"large-galaxy backfill mismatch: required %d, obtained %d, unresolved: %s",
			len(missing), len(got), strings.Join(lost, ", "))
	}
	return nil
}
