// Public domain.

package fpout

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/zeebo/errs"
)

// Error is the class of output-writing failures.
var Error = errs.Class("fpout")

// WriteCSV writes rows as a CSV table in the canonical column order.
// Array-valued aperture columns are expanded, one column per radius; nAp
// is the radius count and must match every row's aperture slices (rows
// without apertures get empty cells).  Derivative and AGN columns are
// emitted only when the options enable their modes.
func WriteCSV(w io.Writer, rows []Row, nAp int, opt Options) error {
	cw := csv.NewWriter(w)

	header := []string{
		"release", "brickid", "brickname", "objid",
		"camera", "expnum", "ccdname", "filter", "mjd", "exptime",
		"psfsize", "fwhm", "ccd_cuts", "airmass", "sky", "skyrms",
		"psfdepth", "galdepth", "ccdzpt", "ccdrarms", "ccddecrms",
		"ccdphrms", "ra", "dec",
		"flux", "flux_ivar", "fracflux", "rchisq", "fracmasked", "fracin",
	}
	for i := 0; i < nAp; i++ {
		header = append(header, "apflux_"+strconv.Itoa(i))
	}
	for i := 0; i < nAp; i++ {
		header = append(header, "apflux_ivar_"+strconv.Itoa(i))
	}
	header = append(header, "x", "y", "dqmask")
	if opt.Derivs {
		header = append(header, "dra", "ddec", "dra_ivar", "ddec_ivar")
	}
	if opt.AGN {
		header = append(header, "flux_agn", "flux_agn_ivar")
	}
	if err := cw.Write(header); err != nil {
		return Error.Wrap(err)
	}

	rec := make([]string, 0, len(header))
	for i := range rows {
		r := &rows[i]
		rec = rec[:0]
		rec = append(rec,
			strconv.FormatInt(int64(r.Release), 10),
			strconv.FormatInt(int64(r.BrickID), 10),
			r.BrickName,
			strconv.FormatInt(int64(r.ObjID), 10),
			r.Camera,
			strconv.FormatInt(r.ExpNum, 10),
			r.CCDName,
			r.Filter,
			ff(r.MJD), ff(r.ExpTime), ff(r.PsfSize), ff(r.FWHM),
			strconv.FormatInt(r.CCDCuts, 10),
			ff(r.Airmass), ff(r.Sky), ff(r.SkyRMS),
			ff(r.PsfDepth), ff(r.GalDepth), ff(r.CCDZpt),
			ff(r.CCDRARms), ff(r.CCDDecRms), ff(r.CCDPhRms),
			ff(r.RA), ff(r.Dec),
			ff(r.Flux), ff(r.FluxIVar), ff(r.FracFlux), ff(r.RChisq),
			ff(r.FracMasked), ff(r.FracIn),
		)
		rec = appendAp(rec, r.ApFlux, nAp)
		rec = appendAp(rec, r.ApFluxIVar, nAp)
		rec = append(rec,
			ff(r.X), ff(r.Y),
			strconv.FormatInt(int64(r.DQMask), 10),
		)
		if opt.Derivs {
			rec = append(rec, ff(r.DRA), ff(r.DDec), ff(r.DRAIVar), ff(r.DDecIVar))
		}
		if opt.AGN {
			rec = append(rec, ff(r.FluxAGN), ff(r.FluxAGNIVar))
		}
		if err := cw.Write(rec); err != nil {
			return Error.Wrap(err)
		}
	}
	cw.Flush()
	return Error.Wrap(cw.Error())
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func appendAp(rec []string, vals []float64, n int) []string {
	for i := 0; i < n; i++ {
		if i < len(vals) {
			rec = append(rec, ff(vals[i]))
		} else {
			rec = append(rec, "")
		}
	}
	return rec
}
