// Public domain.

package fpimage_test

import (
	"math"
	"testing"

	"github.com/legacysurvey/forcedphot/internal/fpimage"
)

func TestRenderGaussUnitSum(t *testing.T) {
	p := fpimage.RenderGauss(10.3, 7.8, 2.25, 0, 2.25)
	if p == nil {
		t.Fatal("nil patch")
	}
	if s := p.Sum(); math.Abs(s-1) > 1e-12 {
		t.Errorf("sum = %g, want 1", s)
	}
}

func TestRenderGaussDegenerate(t *testing.T) {
	if p := fpimage.RenderGauss(5, 5, 0, 0, 0); p != nil {
		t.Error("expected nil patch for zero covariance")
	}
	if p := fpimage.RenderGauss(5, 5, 1, 1, 1); p != nil {
		t.Error("expected nil patch for singular covariance")
	}
}

func TestGaussPSFCentering(t *testing.T) {
	psf := fpimage.GaussPSF{FWHM: 3.5}
	p := psf.Render(32, 32)
	if p == nil {
		t.Fatal("nil patch")
	}
	// peak pixel at the center
	best, bx, by := -1.0, 0, 0
	for iy := 0; iy < p.H; iy++ {
		for ix := 0; ix < p.W; ix++ {
			if v := p.Pix[iy*p.W+ix]; v > best {
				best, bx, by = v, p.X0+ix, p.Y0+iy
			}
		}
	}
	if bx != 32 || by != 32 {
		t.Errorf("peak at (%d,%d), want (32,32)", bx, by)
	}
}

func TestPatchAddToClipping(t *testing.T) {
	img := make([]float64, 16)
	p := fpimage.NewPatch(-1, -1, 3, 3)
	for i := range p.Pix {
		p.Pix[i] = 1
	}
	p.AddTo(img, 4, 4, 2)
	// only the 2x2 overlap lands
	var s float64
	for _, v := range img {
		s += v
	}
	if s != 8 {
		t.Errorf("sum = %g, want 8", s)
	}
	if got := p.SumInside(4, 4); got != 4 {
		t.Errorf("SumInside = %g, want 4", got)
	}
}
