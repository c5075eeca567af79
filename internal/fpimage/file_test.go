// Public domain.

package fpimage

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

func TestExposureFileRoundTrip(t *testing.T) {
	e := &Exposure{
		Pix:    []float64{1, 2, 3, 4},
		InvVar: []float64{1, 1, 1, 0},
		DQ:     []int16{0, 0, DQSaturated, 0},
		PSF:    GaussPSF{FWHM: 4.5},
		WCS: &fpsky.WCS{
			CRVal1: 150, CRVal2: 2.5,
			CRPix1: 0.5, CRPix2: 0.5,
			CD: [2][2]float64{{-1e-4, 0}, {0, 1e-4}},
			W:  2, H: 2,
		},
		Band: "z", MJD: 58000,
		Camera: "decam", ExpNum: 99, CCDName: "S1",
		ExpTime: 120, FWHM: 4.5, Sig1: 0.9,
		PsfNorm: 0.2, GalNorm: 0.1, MidSky: 300, ZpScale: 80,
		SkyRMS: 1.2, CCDZpt: 24.9, Airmass: 1.1,
	}
	fn := filepath.Join(t.TempDir(), "decam-99-S1.dat.gz")
	if err := WriteFile(fn, e); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "decam-99-S1" {
		t.Fatalf("name = %s", got.Name())
	}
	for i, v := range e.Pix {
		if got.Pix[i] != v {
			t.Fatalf("pix %d = %g, want %g", i, got.Pix[i], v)
		}
	}
	if got.DQ[2] != DQSaturated {
		t.Fatal("dq mask lost")
	}
	if got.WCS.W != 2 || got.WCS.CRVal1 != 150 {
		t.Fatal("wcs lost")
	}
	psf, ok := got.PSF.(GaussPSF)
	if !ok || psf.FWHM != 4.5 {
		t.Fatalf("psf = %#v", got.PSF)
	}
	if got.MJD != 58000 || got.ZpScale != 80 {
		t.Fatal("metadata lost")
	}
}

func TestExposureFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.dat.gz"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}
