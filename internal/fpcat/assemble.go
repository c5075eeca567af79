// Public domain.

package fpcat

import (
	"errors"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

// DefaultMarginPix is the catalog inclusion margin around the image, pixels.
const DefaultMarginPix = 20

// Config configures catalog assembly for one exposure.
type Config struct {
	North Store    // required
	South Store    // optional second reduction
	Ref   RefStore // optional, enables large-galaxy backfill

	// ResolveDec is the declination splitting authority between the two
	// reductions, required whenever South is set.  It applies only within
	// the northern galactic cap.
	ResolveDec *float64

	MarginPix float64 // 0 means DefaultMarginPix
}

// Assemble returns the deduplicated source set relevant to an exposure
// footprint: every brick-primary, non-placeholder source inside the image
// plus margin, resolved across the configured reductions and backfilled
// with large-galaxy entries whose own bricks miss the footprint.
//
// Returns ErrNoSources when the footprint is empty of catalog sources.
// A missing brick catalog file is logged and skipped.
func Assemble(log *zap.Logger, wcs *fpsky.WCS, cfg Config) ([]Source, error) {
	if cfg.South != nil && cfg.ResolveDec == nil {
		// without a line, overlapping bricks get loaded from both
		// reductions and every row shows up twice
		return nil, Error.New("two catalog reductions configured without a resolve declination")
	}
	margin := cfg.MarginPix
	if margin == 0 {
		margin = DefaultMarginPix
	}
	ralo, rahi, declo, dechi := wcs.Bounds(margin)

	type side struct {
		store Store
		north bool
	}
	sides := []side{{cfg.North, true}}
	if cfg.South != nil {
		sides = append(sides, side{cfg.South, false})
	}

	var merged []Source
	for _, sd := range sides {
		bricks, err := sd.store.Bricks()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		for _, b := range bricksTouching(bricks, ralo, rahi, declo, dechi) {
			if skipBrickForResolve(&b, sd.north, cfg.ResolveDec) {
				continue
			}
			srcs, err := sd.store.Catalog(b.Name)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					log.Warn("brick catalog missing, skipping",
						zap.String("brick", b.Name))
					continue
				}
				return nil, Error.Wrap(err)
			}
			// private copy; the cuts below filter in place
			srcs = append([]Source(nil), srcs...)
			srcs = cutResolveSide(srcs, &b, sd.north, cfg.ResolveDec)
			srcs = cutFootprint(srcs, wcs, margin)
			if len(srcs) > 0 {
				log.Debug("brick loaded",
					zap.String("brick", b.Name), zap.Int("sources", len(srcs)))
				merged = append(merged, srcs...)
			}
		}
	}
	if len(merged) == 0 {
		return nil, ErrNoSources
	}

	if cfg.Ref != nil {
		extra, err := backfillLargeGalaxies(log, merged, wcs, cfg)
		if err != nil {
			return nil, err
		}
		merged = append(merged, extra...)
	}
	log.Info("catalog assembled", zap.Int("sources", len(merged)))
	return merged, nil
}

// skipBrickForResolve applies the brick-level resolve cut: northern bricks
// entirely below the line and, inside the northern galactic cap, southern
// bricks entirely above it are skipped without loading.
func skipBrickForResolve(b *Brick, north bool, resolveDec *float64) bool {
	if resolveDec == nil {
		return false
	}
	if north {
		return b.Dec2 <= *resolveDec
	}
	return b.Dec1 >= *resolveDec && b.galB() > 0
}

// cutResolveSide applies the row-level resolve cut after loading a brick.
func cutResolveSide(srcs []Source, b *Brick, north bool, resolveDec *float64) []Source {
	if resolveDec == nil {
		return srcs
	}
	out := srcs[:0]
	switch {
	case north:
		for _, s := range srcs {
			if s.Dec >= *resolveDec {
				out = append(out, s)
			}
		}
	case b.galB() > 0:
		for _, s := range srcs {
			if s.Dec < *resolveDec {
				out = append(out, s)
			}
		}
	default:
		return srcs
	}
	return out
}

// cutFootprint keeps brick-primary, non-placeholder sources whose pixel
// position lies inside the image plus margin.
func cutFootprint(srcs []Source, wcs *fpsky.WCS, margin float64) []Source {
	w := float64(wcs.W)
	h := float64(wcs.H)
	out := srcs[:0]
	for _, s := range srcs {
		if !s.BrickPrimary {
			continue
		}
		if strings.TrimSpace(s.Type) == TypeDup {
			continue
		}
		x, y, ok := wcs.PixelXY(s.RA, s.Dec)
		if !ok {
			continue
		}
		if x < -margin || x > w+margin || y < -margin || y > h+margin {
			continue
		}
		out = append(out, s)
	}
	return out
}
