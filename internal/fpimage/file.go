// Public domain.

package fpimage

import (
	"compress/gzip"
	"encoding/gob"
	"os"

	"github.com/zeebo/errs"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

// Error is the class of exposure file errors.
var Error = errs.Class("fpimage")

// exposureFile is the on-disk form of an Exposure.  The PSF is stored as
// its Gaussian FWHM and reconstructed on read; calibration produces richer
// PSF models but those stay outside this pipeline.
type exposureFile struct {
	Pix    []float64
	InvVar []float64
	DQ     []int16
	WCS    fpsky.WCS
	Band   string
	MJD    float64

	Camera    string
	ExpNum    int64
	CCDName   string
	ExpTime   float64
	FWHM      float64
	Sig1      float64
	PsfNorm   float64
	GalNorm   float64
	MidSky    float64
	ZpScale   float64
	SkyRMS    float64
	CCDZpt    float64
	CCDRARms  float64
	CCDDecRms float64
	CCDPhRms  float64
	CCDCuts   int64
	Airmass   float64
}

// ReadFile reads a gob-encoded, gzip-compressed exposure file.
func ReadFile(fn string) (*Exposure, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, Error.New("%s: %v", fn, err)
	}
	defer gz.Close()
	var ef exposureFile
	if err := gob.NewDecoder(gz).Decode(&ef); err != nil {
		return nil, Error.New("%s: %v", fn, err)
	}
	wcs := ef.WCS
	return &Exposure{
		Pix:    ef.Pix,
		InvVar: ef.InvVar,
		DQ:     ef.DQ,
		PSF:    GaussPSF{FWHM: ef.FWHM},
		WCS:    &wcs,
		Band:   ef.Band,
		MJD:    ef.MJD,

		Camera: ef.Camera, ExpNum: ef.ExpNum, CCDName: ef.CCDName,
		ExpTime: ef.ExpTime, FWHM: ef.FWHM, Sig1: ef.Sig1,
		PsfNorm: ef.PsfNorm, GalNorm: ef.GalNorm,
		MidSky: ef.MidSky, ZpScale: ef.ZpScale, SkyRMS: ef.SkyRMS,
		CCDZpt: ef.CCDZpt, CCDRARms: ef.CCDRARms,
		CCDDecRms: ef.CCDDecRms, CCDPhRms: ef.CCDPhRms,
		CCDCuts: ef.CCDCuts, Airmass: ef.Airmass,
	}, nil
}

// WriteFile writes an exposure file readable by ReadFile.  Used by ingest
// tooling and tests.
func WriteFile(fn string, e *Exposure) error {
	ef := exposureFile{
		Pix:    e.Pix,
		InvVar: e.InvVar,
		DQ:     e.DQ,
		WCS:    *e.WCS,
		Band:   e.Band,
		MJD:    e.MJD,

		Camera: e.Camera, ExpNum: e.ExpNum, CCDName: e.CCDName,
		ExpTime: e.ExpTime, FWHM: e.FWHM, Sig1: e.Sig1,
		PsfNorm: e.PsfNorm, GalNorm: e.GalNorm,
		MidSky: e.MidSky, ZpScale: e.ZpScale, SkyRMS: e.SkyRMS,
		CCDZpt: e.CCDZpt, CCDRARms: e.CCDRARms,
		CCDDecRms: e.CCDDecRms, CCDPhRms: e.CCDPhRms,
		CCDCuts: e.CCDCuts, Airmass: e.Airmass,
	}
	f, err := os.Create(fn)
	if err != nil {
		return Error.Wrap(err)
	}
	gz := gzip.NewWriter(f)
	if err := gob.NewEncoder(gz).Encode(&ef); err != nil {
		f.Close()
		return Error.New("%s: %v", fn, err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return Error.Wrap(err)
	}
	return Error.Wrap(f.Close())
}
