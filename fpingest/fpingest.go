/*
Command fpingest prepares catalog store files for the program forcedphot.

forcedphot reads brick metadata, per-brick source tables, and the
large-galaxy reference catalog from gob-encoded, gzip-compressed files.
fpingest generates those files from CSV tables exported by the survey
database, so you do not need the survey's own tooling to assemble a store.

Usage:

   fpingest -o <dir> bricks   <bricks.csv>
   fpingest -o <dir> catalog  <brick> <sources.csv>
   fpingest -o <dir> galaxies <galaxies.csv>
   fpingest -v

The bricks table needs columns brickname, brickid, ra, dec, ra1, ra2,
dec1, dec2.  The sources table needs release, brickid, brickname, objid,
type, ra, dec, brick_primary, plus any of sersic, shape_r, shape_e1,
shape_e2, ref_epoch, pmra, pmdec, parallax, ref_cat, ref_id, keep_radius,
and flux_<band> columns.  The galaxies table needs ref_cat, ref_id, ra,
dec, keep_radius, brickname, frozen.  Unknown columns are ignored; missing
optional columns read as zero.

-------------
Public domain.
*/
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/soniakeys/exit"

	"github.com/legacysurvey/forcedphot/internal/fpcat"
)

const versionString = "fpingest version 0.1"
const copyrightString = "Public domain."

func main() {
	defer exit.Handler()

	outDir := flag.String("o", ".", "")
	vers := flag.Bool("v", false, "")
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage:
  fpingest -o <dir> bricks   <bricks.csv>
  fpingest -o <dir> catalog  <brick> <sources.csv>
  fpingest -o <dir> galaxies <galaxies.csv>
  fpingest -v

For full documentation:
   go doc github.com/legacysurvey/forcedphot/fpingest
`)
	}
	flag.Parse()
	if *vers {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}

	store := fpcat.NewDirStore(*outDir)
	var err error
	switch {
	case flag.NArg() == 2 && flag.Arg(0) == "bricks":
		err = ingestBricks(store, flag.Arg(1))
	case flag.NArg() == 3 && flag.Arg(0) == "catalog":
		err = ingestCatalog(store, flag.Arg(1), flag.Arg(2))
	case flag.NArg() == 2 && flag.Arg(0) == "galaxies":
		err = ingestGalaxies(store, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		exit.Log(err)
	}
}

func ingestBricks(store *fpcat.DirStore, fn string) error {
	var bricks []fpcat.Brick
	err := readCSV(fn, func(row record) error {
		id, err := row.int("brickid")
		if err != nil {
			return err
		}
		bricks = append(bricks, fpcat.Brick{
			Name: row.str("brickname"),
			ID:   int32(id),
			RA:   row.float("ra"),
			Dec:  row.float("dec"),
			RA1:  row.float("ra1"),
			RA2:  row.float("ra2"),
			Dec1: row.float("dec1"),
			Dec2: row.float("dec2"),
		})
		return nil
	})
	if err != nil {
		return err
	}
	if err := store.WriteBricks(bricks); err != nil {
		return err
	}
	fmt.Printf("Wrote %d bricks.\n", len(bricks))
	return nil
}

func ingestCatalog(store *fpcat.DirStore, brick, fn string) error {
	var srcs []fpcat.Source
	err := readCSV(fn, func(row record) error {
		objid, err := row.int("objid")
		if err != nil {
			return err
		}
		brickid, _ := row.int("brickid")
		release, _ := row.int("release")
		refid, _ := row.int("ref_id")
		s := fpcat.Source{
			RA:           row.float("ra"),
			Dec:          row.float("dec"),
			Type:         strings.ToUpper(strings.TrimSpace(row.str("type"))),
			Release:      int32(release),
			BrickID:      int32(brickid),
			BrickName:    row.str("brickname"),
			ObjID:        int32(objid),
			BrickPrimary: row.boolVal("brick_primary"),
			Sersic:       row.float("sersic"),
			ShapeR:       row.float("shape_r"),
			ShapeE1:      row.float("shape_e1"),
			ShapeE2:      row.float("shape_e2"),
			RefEpoch:     row.float("ref_epoch"),
			PMRA:         row.float("pmra"),
			PMDec:        row.float("pmdec"),
			Parallax:     row.float("parallax"),
			RefCat:       row.str("ref_cat"),
			RefID:        refid,
			KeepRadius:   row.float("keep_radius"),
		}
		for col := range row.cols {
			if band, ok := strings.CutPrefix(col, "flux_"); ok {
				s.SetFlux(band, row.float(col))
			}
		}
		srcs = append(srcs, s)
		return nil
	})
	if err != nil {
		return err
	}
	if err := store.WriteCatalog(brick, srcs); err != nil {
		return err
	}
	fmt.Printf("Wrote %d sources to brick %s.\n", len(srcs), brick)
	return nil
}

func ingestGalaxies(store *fpcat.DirStore, fn string) error {
	var gals []fpcat.RefGalaxy
	err := readCSV(fn, func(row record) error {
		refid, err := row.int("ref_id")
		if err != nil {
			return err
		}
		gals = append(gals, fpcat.RefGalaxy{
			RefCat:     row.str("ref_cat"),
			RefID:      refid,
			RA:         row.float("ra"),
			Dec:        row.float("dec"),
			KeepRadius: row.float("keep_radius"),
			BrickName:  row.str("brickname"),
			Frozen:     row.boolVal("frozen"),
		})
		return nil
	})
	if err != nil {
		return err
	}
	if err := store.WriteLargeGalaxies(gals); err != nil {
		return err
	}
	fmt.Printf("Wrote %d reference galaxies.\n", len(gals))
	return nil
}

// record is one CSV data row with header-indexed access.
type record struct {
	cols   map[string]int
	fields []string
}

func (r record) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

func (r record) float(col string) float64 {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0
	}
	return v
}

func (r record) int(col string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(r.str(col)), 10, 64)
}

func (r record) boolVal(col string) bool {
	switch strings.ToLower(strings.TrimSpace(r.str(col))) {
	case "1", "t", "true", "yes":
		return true
	}
	return false
}

func readCSV(fn string, each func(record) error) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("%s: reading header: %w", fn, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", fn, err)
		}
		if err := each(record{cols, fields}); err != nil {
			return fmt.Errorf("%s line %d: %w", fn, line, err)
		}
	}
}
