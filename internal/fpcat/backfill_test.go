// Public domain.

package fpcat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/legacysurvey/forcedphot/internal/fpcat"
)

// largeGalaxyScenario places one frozen large galaxy at RA 150.3, outside
// the footprint and margin, in brick 1502p025 which does not touch the
// footprint, but with a keep radius reaching well into the image.
func largeGalaxyScenario() *fpcat.MemStore {
	st := twoBrickStore()
	gal := fpcat.Source{
		RA: 150.3, Dec: 2.5, Type: fpcat.TypeSer, BrickPrimary: true,
		RefCat: fpcat.RefCatLarge, RefID: 42,
		KeepRadius: 0.2, ShapeR: 30,
	}
	gal.SetFlux("r", 500)
	st.Catalogs["1502p025"] = []fpcat.Source{
		gal,
		primary(150.35, 2.55, fpcat.TypePSF), // unrelated row, must not leak in
	}
	st.Galaxies = []fpcat.RefGalaxy{{
		RefCat: fpcat.RefCatLarge, RefID: 42, RA: 150.3, Dec: 2.5,
		KeepRadius: 0.2, BrickName: "1502p025", Frozen: true,
	}}
	return st
}

func TestBackfillAddsMissingGalaxy(t *testing.T) {
	st := largeGalaxyScenario()
	srcs, err := fpcat.Assemble(zap.NewNop(), testWCS(), fpcat.Config{
		North: st, Ref: st,
	})
	require.NoError(t, err)
	// 3 footprint sources + exactly 1 backfilled galaxy
	require.Len(t, srcs, 4)
	var gals int
	for _, s := range srcs {
		if s.LargeGalaxy() {
			gals++
			assert.Equal(t, int64(42), s.RefID)
		}
	}
	assert.Equal(t, 1, gals)
}

func TestBackfillInexactBrickName(t *testing.T) {
	st := largeGalaxyScenario()
	// the reference catalog's brick name is wrong; the neighbor search
	// must still resolve the true containing brick
	st.Galaxies[0].BrickName = "1500p025"
	srcs, err := fpcat.Assemble(zap.NewNop(), testWCS(), fpcat.Config{
		North: st, Ref: st,
	})
	require.NoError(t, err)
	assert.Len(t, srcs, 4)
}

func TestBackfillMissingBrickIsFatal(t *testing.T) {
	st := largeGalaxyScenario()
	delete(st.Catalogs, "1502p025")
	_, err := fpcat.Assemble(zap.NewNop(), testWCS(), fpcat.Config{
		North: st, Ref: st,
	})
	require.Error(t, err, "a silently dropped large galaxy is data corruption")
	assert.NotErrorIs(t, err, fpcat.ErrNoSources)
}

func TestBackfillAlreadyPresent(t *testing.T) {
	st := largeGalaxyScenario()
	// move the galaxy inside the footprint-intersecting brick so normal
	// assembly already picks it up; the backfill must add nothing
	gal := st.Catalogs["1502p025"][0]
	gal.RA = 150.05
	st.Catalogs["1500p025"] = append(st.Catalogs["1500p025"], gal)
	st.Galaxies[0].RA = 150.05
	st.Galaxies[0].BrickName = "1500p025"
	srcs, err := fpcat.Assemble(zap.NewNop(), testWCS(), fpcat.Config{
		North: st, Ref: st,
	})
	require.NoError(t, err)
	var gals int
	for _, s := range srcs {
		if s.LargeGalaxy() {
			gals++
		}
	}
	assert.Equal(t, 1, gals)
}

func TestBackfillDuplicatePresentIsFatal(t *testing.T) {
	st := largeGalaxyScenario()
	// the footprint-intersecting brick carries the galaxy twice
	gal := st.Catalogs["1502p025"][0]
	gal.RA = 150.05
	st.Catalogs["1500p025"] = append(st.Catalogs["1500p025"], gal, gal)
	st.Galaxies[0].RA = 150.05
	st.Galaxies[0].BrickName = "1500p025"
	_, err := fpcat.Assemble(zap.NewNop(), testWCS(), fpcat.Config{
		North: st, Ref: st,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, fpcat.ErrNoSources)
}

func TestBackfillFrozenOnly(t *testing.T) {
	st := largeGalaxyScenario()
	st.Galaxies[0].Frozen = false
	srcs, err := fpcat.Assemble(zap.NewNop(), testWCS(), fpcat.Config{
		North: st, Ref: st,
	})
	require.NoError(t, err)
	assert.Len(t, srcs, 3, "non-frozen entries are not backfilled")
}
