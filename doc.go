/*
Command forcedphot performs forced photometry: it fits per-source fluxes
against calibrated CCD exposures while holding every catalog position and
shape fixed.

Contents

Version 0.1

  Program overview
  Command line usage
  Catalog stores
  Fit modes
  Output

Program overview

Input is a set of exposure files, each holding one calibrated CCD image
with its inverse-variance map, data-quality mask, astrometric solution,
point-spread function width, and photometric metadata, plus a directory of
brick-partitioned catalog files.  For each exposure the program assembles
the catalog sources overlapping the image footprint, corrects positions
for proper motion and parallax to the exposure epoch, fits one flux
amplitude per source with shapes and positions frozen, optionally measures
aperture sums, and emits one diagnostic record per source.

Catalogs partitioned between a northern and a southern reduction are
resolved along a declination line: within the northern galactic cap, rows
north of the line come from the northern reduction and rows south of it
from the southern one.  Large galaxies whose catalog rows live in bricks
outside the exposure footprint but whose profiles still reach into the
image are backfilled from a reference catalog; a backfill that cannot
recover every expected galaxy is a fatal error, since silently dropping
one biases its neighbors' photometry.

Sample run:

  forcedphot -cat dr10/north -cat-south dr10/south -resolve-dec 32.375 \
      -ref dr10/ref -derivs -o decam-523-N4.csv decam-523-N4.dat.gz

Command line usage

Invoking the program without arguments (or with invalid arguments) shows
this usage prompt.

  Usage: forcedphot [options] -cat <dir> <exposure-file>...
         forcedphot -v    display version and copyright

  Options:
         -cat <dir>          catalog directory (required)
         -cat-south <dir>    southern-reduction catalog directory
         -resolve-dec <deg>  declination resolve line between reductions
         -ref <dir>          large-galaxy reference directory
         -margin <pix>       catalog inclusion margin (default 20)
         -derivs             fit sub-pixel position derivatives
         -no-fixed           with -derivs, skip the fixed-position pass
         -agn                fit auxiliary nuclear point sources
         -no-move            skip proper-motion epoch correction
         -apradii <list>     aperture radii, arcsec, comma separated
         -no-apphot          skip aperture photometry
         -engine <name>      amplitude solver: cholesky (default) or qr
         -fit-threads <n>    solver threads
         -threads <n>        concurrent exposures (default GOMAXPROCS)
         -o <file>           output CSV path (default stdout)
         -write-cat <file>   write the fitted source table
         -verbose            debug logging

Exposures are processed concurrently, one exposure per worker, and results
are merged in command-line order.

Catalog stores

A catalog directory contains survey-bricks.dat.gz, the brick metadata
table, and one tractor-<brick>.dat.gz file per brick.  Both are gob
encoded and gzip compressed.  A missing brick file is logged and skipped;
an exposure whose footprint contains no catalog sources produces no output
rows but is not an error.  The reference directory contains
ref-galaxies.dat.gz in the same encoding.

Fit modes

The default fit frees one flux amplitude per source.  With -derivs, point
sources additionally get two amplitudes measuring the model's sensitivity
to RA and Dec shifts, reported as arcsec offsets; a fixed-position pass
runs first and its flux is the one reported, with the derivative pass
supplying the fit-quality statistics.  With -agn, every fitted EXP, DEV,
or SER galaxy gets a co-located point source with its own free flux,
capturing unresolved nuclear emission.  The two modes are mutually
exclusive.

Output

One CSV row per photometered source: catalog identifiers, denormalized
exposure metadata (band, epoch, exposure time, seeing, sky level, depth),
fitted flux and inverse variance, profile-weighted fit-quality statistics,
aperture sums, pixel position, and a nearest-pixel data-quality mask with
an out-of-bounds bit for sources off the image.

-------------
Public domain.
*/
package main
