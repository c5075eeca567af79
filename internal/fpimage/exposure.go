// Public domain.

package fpimage

import (
	"fmt"

	"github.com/legacysurvey/forcedphot/internal/fpsky"
)

// DQ bitmask values, matching the reduction pipeline's conventions.
const (
	DQBadPixel  = 0x1
	DQSaturated = 0x2
	DQBleed     = 0x8
	DQEdge      = 0x10
	DQEdge2     = 0x20 // set by the aggregator for out-of-bounds sources
	DQOutlier   = 0x800
)

// PSF renders a normalized unit-flux stamp for a point source centered at
// sub-pixel image coordinates.  Implementations report their Gaussian-
// equivalent sigma in pixels so extended-source models can be convolved by
// covariance addition.
type PSF interface {
	Render(x, y float64) *Patch
	Sigma() float64
}

// GaussPSF is a circular Gaussian point-spread function.
type GaussPSF struct {
	FWHM float64 // pixels
}

const fwhmPerSigma = 2.35482

func (p GaussPSF) Sigma() float64 { return p.FWHM / fwhmPerSigma }

func (p GaussPSF) Render(x, y float64) *Patch {
	s2 := p.Sigma() * p.Sigma()
	return RenderGauss(x, y, s2, 0, s2)
}

// Exposure is one calibrated CCD image with everything the photometry
// engine needs: pixels, per-pixel inverse variance, data-quality mask, PSF,
// astrometric solution, and the denormalized CCD metadata that rides along
// into every output row.
type Exposure struct {
	Pix    []float64 // row major, W x H
	InvVar []float64
	DQ     []int16
	PSF    PSF
	WCS    *fpsky.WCS
	Band   string
	MJD    float64

	// per-CCD metadata, copied into output rows
	Camera    string
	ExpNum    int64
	CCDName   string
	ExpTime   float64
	FWHM      float64 // pixels
	Sig1      float64 // typical per-pixel noise, image units
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

// Name identifies the exposure in error messages and log lines.
func (e *Exposure) Name() string {
	return fmt.Sprintf("%s-%d-%s", e.Camera, e.ExpNum, e.CCDName)
}

func (e *Exposure) Width() int  { return e.WCS.W }
func (e *Exposure) Height() int { return e.WCS.H }

// Contains reports whether floating pixel coordinates land inside the image.
func (e *Exposure) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= float64(e.WCS.W-1) && y <= float64(e.WCS.H-1)
}

// SubtractModel removes scale*patch from the image pixels in place.
func (e *Exposure) SubtractModel(p *Patch, scale float64) {
	p.AddTo(e.Pix, e.WCS.W, e.WCS.H, -scale)
}
