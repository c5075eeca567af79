// Public domain.

package fpfit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/legacysurvey/forcedphot/internal/fpcat"
	"github.com/legacysurvey/forcedphot/internal/fpimage"
	"github.com/legacysurvey/forcedphot/internal/fpsky"
	"github.com/legacysurvey/forcedphot/internal/fpsolve"
)

// testExposure builds a 200x200 blank exposure at 0.262"/pix with a 1.2"
// FWHM Gaussian PSF and uniform noise sig1.
func testExposure(sig1 float64) *fpimage.Exposure {
	const n = 200
	scale := 0.262 / 3600 // degrees per pixel
	w := &fpsky.WCS{
		CRVal1: 150, CRVal2: 2.5,
		CRPix1: float64(n-1) / 2, CRPix2: float64(n-1) / 2,
		CD: [2][2]float64{{-scale, 0}, {0, scale}},
		W:  n, H: n,
	}
	e := &fpimage.Exposure{
		Pix:    make([]float64, n*n),
		InvVar: make([]float64, n*n),
		DQ:     make([]int16, n*n),
		PSF:    fpimage.GaussPSF{FWHM: 1.2 / 0.262},
		WCS:    w,
		Band:   "r",
		MJD:    57000,
		Camera: "decam", ExpNum: 523, CCDName: "N4",
		Sig1: sig1,
	}
	iv := 1 / (sig1 * sig1)
	for i := range e.InvVar {
		e.InvVar[i] = iv
	}
	return e
}

// addSource paints flux*unit model of src into the exposure pixels.
func addSource(e *fpimage.Exposure, src *fpcat.Source, flux float64) {
	x, y, ok := e.WCS.PixelXY(src.RA, src.Dec)
	if !ok {
		return
	}
	if p := renderUnit(e, src, x, y); p != nil {
		p.AddTo(e.Pix, e.WCS.W, e.WCS.H, flux)
	}
}

func addNoise(e *fpimage.Exposure, sig1 float64, seed uint64) {
	rnd := rand.New(rand.NewSource(seed))
	for i := range e.Pix {
		e.Pix[i] += rnd.NormFloat64() * sig1
	}
}

func psfSource(ra, dec float64) fpcat.Source {
	return fpcat.Source{RA: ra, Dec: dec, Type: fpcat.TypePSF, BrickPrimary: true}
}

func TestRunFluxRecovery(t *testing.T) {
	const sig1 = 1.0
	exp := testExposure(sig1)
	srcs := []fpcat.Source{
		psfSource(150.002, 2.502),
		psfSource(149.998, 2.498),
		{RA: 150.001, Dec: 2.497, Type: fpcat.TypeExp,
			ShapeR: 1.5, ShapeE1: 0.2, ShapeE2: -0.1, BrickPrimary: true},
	}
	truth := []float64{900, 450, 3000} // S/N well above 50
	for i := range srcs {
		addSource(exp, &srcs[i], truth[i])
	}
	addNoise(exp, sig1, 1)

	fit, res, err := Run(zap.NewNop(), exp, srcs, Config{})
	require.NoError(t, err)
	require.Len(t, res, 3)
	require.Len(t, fit, 3)
	for i, r := range res {
		assert.InEpsilon(t, truth[i], r.Flux, .01, "source %d flux", i)
		assert.Greater(t, r.FluxIVar, 0.)
		assert.InDelta(t, 1, r.FracIn, .01)
		assert.InDelta(t, 0, r.FracMasked, 1e-12)
		assert.Less(t, math.Abs(r.FracFlux), .05)
		assert.InDelta(t, 1, r.RChisq, .5)
		assert.False(t, r.HasDerivs)
		assert.False(t, r.HasAGN)
	}
}

func TestRunModesExclusive(t *testing.T) {
	exp := testExposure(1)
	srcs := []fpcat.Source{psfSource(150, 2.5)}
	_, _, err := Run(zap.NewNop(), exp, srcs, Config{Derivs: true, AGN: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestRunBadSolverConfig(t *testing.T) {
	exp := testExposure(1)
	srcs := []fpcat.Source{psfSource(150, 2.5)}
	_, _, err := Run(zap.NewNop(), exp, srcs,
		Config{Solver: fpsolve.Config{Engine: "lanczos"}})
	require.Error(t, err)
	assert.True(t, fpsolve.ErrConfig.Has(err))
}

func TestRunDerivatives(t *testing.T) {
	const sig1 = 0.5
	exp := testExposure(sig1)
	srcs := []fpcat.Source{
		psfSource(150.0, 2.5),
		{RA: 150.003, Dec: 2.503, Type: fpcat.TypeRex,
			ShapeR: 0.8, BrickPrimary: true},
	}
	addSource(exp, &srcs[0], 800)
	addSource(exp, &srcs[1], 300)
	addNoise(exp, sig1, 2)

	_, res, err := Run(zap.NewNop(), exp, srcs, Config{Derivs: true})
	require.NoError(t, err)
	// only the point source picks up derivative parameters
	assert.True(t, res[0].HasDerivs)
	assert.False(t, res[1].HasDerivs)
	assert.Greater(t, res[0].FluxDRAIVar, 0.)
	assert.Greater(t, res[0].FluxDDecIVar, 0.)
	// model matches truth, so the position nudges are consistent with zero
	sig := 1 / math.Sqrt(res[0].FluxDRAIVar)
	assert.Less(t, math.Abs(res[0].FluxDRA), 5*sig)
	assert.InEpsilon(t, 800, res[0].Flux, .02)
}

func TestRunAlsoFixedFlux(t *testing.T) {
	const sig1 = 0.5
	exp := testExposure(sig1)
	srcs := []fpcat.Source{psfSource(150, 2.5)}
	addSource(exp, &srcs[0], 600)
	addNoise(exp, sig1, 3)

	_, res, err := Run(zap.NewNop(), exp, srcs,
		Config{Derivs: true, AlsoFixedFlux: true})
	require.NoError(t, err)
	r := res[0]
	assert.InEpsilon(t, 600, r.FluxFixed, .02)
	assert.InEpsilon(t, 600, r.Flux, .02)
	// freeing position parameters can only lose flux information
	assert.Greater(t, r.FluxFixedIVar, 0.)
	assert.LessOrEqual(t, r.FluxIVar, r.FluxFixedIVar*(1+1e-9))
}

func TestRunFixedMatchesPlain(t *testing.T) {
	const sig1 = 0.7
	build := func() (*fpimage.Exposure, []fpcat.Source) {
		exp := testExposure(sig1)
		srcs := []fpcat.Source{psfSource(150.001, 2.499)}
		addSource(exp, &srcs[0], 420)
		addNoise(exp, sig1, 4)
		return exp, srcs
	}
	exp1, srcs1 := build()
	_, plain, err := Run(zap.NewNop(), exp1, srcs1, Config{})
	require.NoError(t, err)
	exp2, srcs2 := build()
	_, dual, err := Run(zap.NewNop(), exp2, srcs2,
		Config{Derivs: true, AlsoFixedFlux: true})
	require.NoError(t, err)
	assert.InDelta(t, plain[0].Flux, dual[0].FluxFixed, 1e-9)
	assert.InDelta(t, plain[0].FluxIVar, dual[0].FluxFixedIVar, 1e-6)
}

func TestRunAGN(t *testing.T) {
	const sig1 = 0.5
	exp := testExposure(sig1)
	srcs := []fpcat.Source{
		{RA: 150, Dec: 2.5, Type: fpcat.TypeDev,
			ShapeR: 2.0, BrickPrimary: true},
		{RA: 150.004, Dec: 2.504, Type: fpcat.TypeRex,
			ShapeR: 0.7, BrickPrimary: true},
		psfSource(149.996, 2.496),
	}
	// galaxy plus an unresolved nucleus carrying a quarter of its flux
	addSource(exp, &srcs[0], 1000)
	nuc := psfSource(srcs[0].RA, srcs[0].Dec)
	addSource(exp, &nuc, 250)
	addSource(exp, &srcs[1], 400)
	addSource(exp, &srcs[2], 300)
	addNoise(exp, sig1, 5)

	_, res, err := Run(zap.NewNop(), exp, srcs, Config{AGN: true})
	require.NoError(t, err)
	assert.True(t, res[0].HasAGN, "DEV galaxy gets an aux point source")
	assert.False(t, res[1].HasAGN, "REX never does")
	assert.False(t, res[2].HasAGN, "PSF never does")
	assert.InEpsilon(t, 250, res[0].FluxAGN, .15)
	assert.Greater(t, res[0].FluxAGNIVar, 0.)
}

func TestRunOffImageSourceZero(t *testing.T) {
	exp := testExposure(1)
	srcs := []fpcat.Source{
		psfSource(150, 2.5),
		psfSource(151, 3.5), // far off the CCD
	}
	addSource(exp, &srcs[0], 500)
	addNoise(exp, 1, 6)

	fit, res, err := Run(zap.NewNop(), exp, srcs, Config{})
	require.NoError(t, err)
	require.Len(t, fit, 2, "off-image point sources stay in the list")
	assert.Equal(t, 0., res[1].Flux)
	assert.Equal(t, 0., res[1].FluxIVar)
	assert.Equal(t, 0., res[1].FracIn)
}

func TestRunMaskedFraction(t *testing.T) {
	const sig1 = 1.0
	exp := testExposure(sig1)
	srcs := []fpcat.Source{psfSource(150, 2.5)}
	addSource(exp, &srcs[0], 1000)
	// zero out the columns left of center
	x, _, _ := exp.WCS.PixelXY(srcs[0].RA, srcs[0].Dec)
	cx := int(math.Round(x))
	for iy := 0; iy < exp.Height(); iy++ {
		for ix := 0; ix < cx; ix++ {
			exp.InvVar[iy*exp.Width()+ix] = 0
		}
	}
	_, res, err := Run(zap.NewNop(), exp, srcs, Config{})
	require.NoError(t, err)
	assert.Greater(t, res[0].FracMasked, .3)
	assert.Less(t, res[0].FracMasked, .7)
	assert.Greater(t, res[0].FluxIVar, 0.)
}

func TestSubtractOffImageGalaxy(t *testing.T) {
	exp := testExposure(1)
	// large galaxy centered just off the east edge, profile spilling in
	gal := fpcat.Source{
		RA: 150 - 230*0.262/3600, Dec: 2.5, Type: fpcat.TypeSer,
		Sersic: 2, ShapeR: 30, BrickPrimary: true,
		RefCat: fpcat.RefCatLarge, RefID: 7, KeepRadius: 0.02,
		Fluxes: map[string]float64{"r": 5000},
	}
	x, y, _ := exp.WCS.PixelXY(gal.RA, gal.Dec)
	if p := renderUnit(exp, &gal, x, y); p != nil {
		p.AddTo(exp.Pix, exp.WCS.W, exp.WCS.H, 5000)
	}
	star := psfSource(150, 2.5)
	addSource(exp, &star, 200)

	fit, res, err := Run(zap.NewNop(), exp, []fpcat.Source{gal, star}, Config{})
	require.NoError(t, err)
	require.Len(t, fit, 1, "off-image large galaxy dropped from the fit")
	assert.Equal(t, fpcat.TypePSF, fit[0].Type)
	// its wings were subtracted, so the star's flux is unbiased
	assert.InEpsilon(t, 200, res[0].Flux, .05)
}

func TestOffImageGalaxyZeroFluxDropped(t *testing.T) {
	exp := testExposure(1)
	gal := fpcat.Source{
		RA: 150 - 230*0.262/3600, Dec: 2.5, Type: fpcat.TypeSer,
		Sersic: 2, ShapeR: 30, BrickPrimary: true,
		RefCat: fpcat.RefCatLarge, RefID: 8, KeepRadius: 0.02,
	}
	star := psfSource(150, 2.5)
	addSource(exp, &star, 200)

	// no catalog flux to subtract: the galaxy is dropped with nothing
	// rendered, and the star's fit is untouched
	fit, res, err := Run(zap.NewNop(), exp, []fpcat.Source{gal, star}, Config{})
	require.NoError(t, err)
	require.Len(t, fit, 1)
	assert.Equal(t, fpcat.TypePSF, fit[0].Type)
	assert.InEpsilon(t, 200, res[0].Flux, .05)
}

func TestGalaxyCovarianceRoundness(t *testing.T) {
	s := fpcat.Source{Type: fpcat.TypeRex, ShapeR: 1.1774}
	cxx, cxy, cyy := galaxyCovariance(&s, 1)
	assert.InDelta(t, 1, cxx, 1e-9)
	assert.InDelta(t, 1, cyy, 1e-9)
	assert.InDelta(t, 0, cxy, 1e-12)
}

func TestNewDerivSourceNilPatch(t *testing.T) {
	r := &realSource{src: &fpcat.Source{Type: fpcat.TypePSF}}
	assert.Nil(t, newDerivSource(r, [2][2]float64{{1, 0}, {0, 1}}))
}
