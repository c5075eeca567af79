// Public domain.

package fpcat

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store serves brick metadata and per-brick source tables for one catalog
// reduction.  A missing brick catalog is reported with an error satisfying
// errors.Is(err, fs.ErrNotExist); the assembler logs and skips those.
type Store interface {
	// Bricks returns metadata for every brick in the reduction.
	Bricks() ([]Brick, error)
	// Catalog returns the source table of one brick.
	Catalog(brick string) ([]Source, error)
}

// RefGalaxy is one large-galaxy entry from the reference catalog.  The
// recorded brick name is a hint only; it is not always exactly correct.
type RefGalaxy struct {
	RefCat     string
	RefID      int64
	RA, Dec    float64
	KeepRadius float64 // degrees
	BrickName  string
	Frozen     bool
}

// RefStore serves the large-galaxy reference catalog used by the backfill.
type RefStore interface {
	LargeGalaxies() ([]RefGalaxy, error)
}

// File names inside a DirStore directory.  Catalog and brick files are
// gob-encoded and gzip-compressed.
const (
	bricksFile    = "survey-bricks.dat.gz"
	refFile       = "ref-galaxies.dat.gz"
	catalogPrefix = "tractor-"
	catalogSuffix = ".dat.gz"
)

// DirStore reads a catalog reduction from a directory of gob files, one
// catalog file per brick plus one brick-metadata file.
type DirStore struct {
	Dir string

	bricks []Brick // lazily loaded
}

var (
	_ Store    = (*DirStore)(nil)
	_ RefStore = (*DirStore)(nil)
)

func NewDirStore(dir string) *DirStore { return &DirStore{Dir: dir} }

func (d *DirStore) Bricks() ([]Brick, error) {
	if d.bricks != nil {
		return d.bricks, nil
	}
	var bricks []Brick
	if err := readGob(filepath.Join(d.Dir, bricksFile), &bricks); err != nil {
		return nil, Error.Wrap(err)
	}
	d.bricks = bricks
	return bricks, nil
}

func (d *DirStore) Catalog(brick string) ([]Source, error) {
	var srcs []Source
	err := readGob(d.CatalogPath(brick), &srcs)
	if err != nil {
		// keep fs.ErrNotExist visible through the wrap
		return nil, err
	}
	return srcs, nil
}

// CatalogPath returns the path of one brick's catalog file.
func (d *DirStore) CatalogPath(brick string) string {
	return filepath.Join(d.Dir, catalogPrefix+brick+catalogSuffix)
}

// WriteCatalog writes one brick's catalog file.  Used by ingest tooling and
// tests.
func (d *DirStore) WriteCatalog(brick string, srcs []Source) error {
	return Error.Wrap(writeGob(d.CatalogPath(brick), srcs))
}

// WriteBricks writes the brick-metadata file.
func (d *DirStore) WriteBricks(bricks []Brick) error {
	d.bricks = nil
	return Error.Wrap(writeGob(filepath.Join(d.Dir, bricksFile), bricks))
}

// LargeGalaxies reads the large-galaxy reference file.
func (d *DirStore) LargeGalaxies() ([]RefGalaxy, error) {
	var gals []RefGalaxy
	if err := readGob(filepath.Join(d.Dir, refFile), &gals); err != nil {
		return nil, Error.Wrap(err)
	}
	return gals, nil
}

// WriteLargeGalaxies writes the large-galaxy reference file.
func (d *DirStore) WriteLargeGalaxies(gals []RefGalaxy) error {
	return Error.Wrap(writeGob(filepath.Join(d.Dir, refFile), gals))
}

// WriteSourceFile writes a standalone gob source table, the format used
// for fitted-catalog dumps.
func WriteSourceFile(fn string, srcs []Source) error {
	return Error.Wrap(writeGob(fn, srcs))
}

func readGob(fn string, v interface{}) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

func writeGob(fn string, v interface{}) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(f)
	if err := gob.NewEncoder(gz).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", fn, err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MemStore is an in-memory Store for tests and synthetic scenarios.
type MemStore struct {
	BrickList []Brick
	Catalogs  map[string][]Source
	Galaxies  []RefGalaxy
}

var (
	_ Store    = (*MemStore)(nil)
	_ RefStore = (*MemStore)(nil)
)

func (m *MemStore) Bricks() ([]Brick, error) { return m.BrickList, nil }

func (m *MemStore) Catalog(brick string) ([]Source, error) {
	srcs, ok := m.Catalogs[brick]
	if !ok {
		return nil, fmt.Errorf("brick %s: %w", brick, fs.ErrNotExist)
	}
	return srcs, nil
}

func (m *MemStore) LargeGalaxies() ([]RefGalaxy, error) { return m.Galaxies, nil }
