// Public domain.

// Package fpprog is the forcedphot command: flag parsing, store and
// exposure file access, the worker fan-out across exposures, and output
// packaging.  One exposure is one self-contained task; results are merged
// in command-line order.
package fpprog

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/soniakeys/exit"
	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/legacysurvey/forcedphot/internal/fpap"
	"github.com/legacysurvey/forcedphot/internal/fpcat"
	"github.com/legacysurvey/forcedphot/internal/fpfit"
	"github.com/legacysurvey/forcedphot/internal/fpimage"
	"github.com/legacysurvey/forcedphot/internal/fpout"
	"github.com/legacysurvey/forcedphot/internal/fpsolve"
)

const versionString = "forcedphot version 0.1 Go source."
const copyrightString = "Public domain."

func Main() {
	defer exit.Handler()

	cl := parseCommandLine()
	log := newLogger(cl.verbose)
	defer log.Sync()

	catCfg := openStores(cl)
	fitCfg := fpfit.Config{
		Derivs:        cl.derivs,
		AlsoFixedFlux: cl.derivs && !cl.noFixed,
		AGN:           cl.agn,
		Solver: fpsolve.Config{
			Engine:  cl.engine,
			Threads: cl.fitThreads,
		},
	}
	// surface engine misconfiguration before any pixels are read
	if _, err := fpsolve.New(fitCfg.Solver); err != nil {
		exit.Log(err)
	}

	radii := fpap.DefaultRadiiArcsec
	if cl.apRadii != "" {
		radii = parseRadii(cl.apRadii)
	}
	if cl.noApphot {
		radii = nil
	}

	// Workers photometer one exposure each.  As in-order sequencing,
	// every task carries a private result channel; the channel of those
	// channels preserves command-line order no matter which worker
	// finishes first.
	maxWorkers := cl.threads
	if maxWorkers < 1 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	taskCh := make(chan *task)
	prCh := make(chan chan taskResult, maxWorkers*2)

	go func() {
		for _, fn := range cl.exposures {
			rch := make(chan taskResult, 1)
			taskCh <- &task{fn, rch}
			prCh <- rch
		}
		close(prCh)
	}()

	// start workers lazily; there may be more cores than exposures.
	go func() {
		for n := 0; n < maxWorkers; n++ {
			t, ok := <-taskCh
			if !ok {
				return
			}
			go worker(log, t, taskCh, catCfg, fitCfg, radii, cl)
		}
	}()

	var rows []fpout.Row
	var fitted []fpcat.Source
	for rch := range prCh {
		r := <-rch
		if r.err != nil {
			exit.Log(r.err)
		}
		rows = append(rows, r.rows...)
		fitted = append(fitted, r.fitted...)
	}

	if len(rows) == 0 {
		log.Info("no photometry results to write")
		return
	}
	writeOutput(log, cl, rows, len(radii))
	if cl.writeCat != "" {
		if err := fpcat.WriteSourceFile(cl.writeCat, fitted); err != nil {
			exit.Log(err)
		}
		log.Info("wrote fitted catalog",
			zap.String("path", cl.writeCat), zap.Int("sources", len(fitted)))
	}
}

type task struct {
	fn  string
	rch chan taskResult
}

type taskResult struct {
	rows   []fpout.Row
	fitted []fpcat.Source
	err    error
}

// worker photometers exposures until the task channel closes.  The first
// task is handed in directly; more are pulled from taskCh.
func worker(log *zap.Logger, t *task, taskCh chan *task,
	catCfg fpcat.Config, fitCfg fpfit.Config, radii []float64, cl *commandLine) {
	for ; ; t = <-taskCh {
		rows, fitted, err := processExposure(log, t.fn, catCfg, fitCfg, radii, cl)
		t.rch <- taskResult{rows, fitted, err}
	}
}

func processExposure(log *zap.Logger, fn string,
	catCfg fpcat.Config, fitCfg fpfit.Config, radii []float64,
	cl *commandLine) ([]fpout.Row, []fpcat.Source, error) {
	exp, err := fpimage.ReadFile(fn)
	if err != nil {
		return nil, nil, err
	}
	ra, dec := exp.WCS.RaDec(float64(exp.Width())/2, float64(exp.Height())/2)
	log.Info("photometering exposure",
		zap.String("exposure", exp.Name()),
		zap.String("band", exp.Band),
		zap.String("ra", fmt.Sprint(sexa.FmtRA(unit.RAFromDeg(ra)))),
		zap.String("dec", fmt.Sprint(sexa.FmtAngle(unit.AngleFromDeg(dec)))))

	srcs, err := fpcat.Assemble(log, exp.WCS, catCfg)
	if err != nil {
		if errors.Is(err, fpcat.ErrNoSources) {
			log.Info("no catalog sources on exposure",
				zap.String("exposure", exp.Name()))
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !cl.noMove {
		fpcat.PropagateEpochs(srcs, exp.MJD)
	}

	fitted, res, err := fpfit.Run(log, exp, srcs, fitCfg)
	if err != nil {
		return nil, nil, err
	}
	var ap []fpap.Result
	if radii != nil {
		ap = fpap.Sum(exp, fitted, radii)
	}
	rows := fpout.Aggregate(exp, fitted, res, ap, fpout.Options{
		Derivs:        fitCfg.Derivs,
		AlsoFixedFlux: fitCfg.AlsoFixedFlux,
		AGN:           fitCfg.AGN,
	})
	log.Info("exposure done",
		zap.String("exposure", exp.Name()), zap.Int("sources", len(rows)))
	return rows, fitted, nil
}

func writeOutput(log *zap.Logger, cl *commandLine, rows []fpout.Row, nAp int) {
	opt := fpout.Options{
		Derivs:        cl.derivs,
		AlsoFixedFlux: cl.derivs && !cl.noFixed,
		AGN:           cl.agn,
	}
	w := os.Stdout
	if cl.out != "" {
		f, err := os.Create(cl.out)
		if err != nil {
			exit.Log(err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				exit.Log(err)
			}
			log.Info("wrote photometry table",
				zap.String("path", cl.out), zap.Int("rows", len(rows)))
		}()
		w = f
	}
	if err := fpout.WriteCSV(w, rows, nAp, opt); err != nil {
		exit.Log(err)
	}
}

type commandLine struct {
	catDir     string
	southDir   string
	refDir     string
	resolveDec float64
	margin     float64

	derivs  bool
	agn     bool
	noFixed bool
	noMove  bool

	apRadii  string
	noApphot bool

	engine     string
	fitThreads int
	threads    int

	out      string
	writeCat string
	verbose  bool

	exposures []string
}

func parseCommandLine() *commandLine {
	var cl commandLine
	v := flag.Bool("v", false, "")
	flag.StringVar(&cl.catDir, "cat", "", "")
	flag.StringVar(&cl.southDir, "cat-south", "", "")
	flag.StringVar(&cl.refDir, "ref", "", "")
	flag.Float64Var(&cl.resolveDec, "resolve-dec", math.NaN(), "")
	flag.Float64Var(&cl.margin, "margin", 0, "")
	flag.BoolVar(&cl.derivs, "derivs", false, "")
	flag.BoolVar(&cl.agn, "agn", false, "")
	flag.BoolVar(&cl.noFixed, "no-fixed", false, "")
	flag.BoolVar(&cl.noMove, "no-move", false, "")
	flag.StringVar(&cl.apRadii, "apradii", "", "")
	flag.BoolVar(&cl.noApphot, "no-apphot", false, "")
	flag.StringVar(&cl.engine, "engine", "", "")
	flag.IntVar(&cl.fitThreads, "fit-threads", 0, "")
	flag.IntVar(&cl.threads, "threads", 0, "")
	flag.StringVar(&cl.out, "o", "", "")
	flag.StringVar(&cl.writeCat, "write-cat", "", "")
	flag.BoolVar(&cl.verbose, "verbose", false, "")
	flag.Usage = func() {
		os.Stderr.WriteString(`
Usage: forcedphot [options] -cat <dir> <exposure-file>...
       forcedphot -v    display version and copyright

Options:
       -cat <dir>          catalog directory (required)
       -cat-south <dir>    southern-reduction catalog directory
       -resolve-dec <deg>  declination resolve line, required with -cat-south
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
`)
	}
	flag.Parse()
	switch {
	case *v:
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	case cl.catDir == "" || flag.NArg() == 0:
		flag.Usage()
		os.Exit(1)
	}
	cl.exposures = flag.Args()
	return &cl
}

func openStores(cl *commandLine) fpcat.Config {
	if cl.southDir != "" && math.IsNaN(cl.resolveDec) {
		exit.Log("-cat-south requires -resolve-dec")
	}
	cfg := fpcat.Config{
		North:     fpcat.NewDirStore(cl.catDir),
		MarginPix: cl.margin,
	}
	if cl.southDir != "" {
		cfg.South = fpcat.NewDirStore(cl.southDir)
	}
	if cl.refDir != "" {
		cfg.Ref = fpcat.NewDirStore(cl.refDir)
	}
	if !math.IsNaN(cl.resolveDec) {
		dec := cl.resolveDec
		cfg.ResolveDec = &dec
	}
	return cfg
}

func parseRadii(spec string) []float64 {
	var radii []float64
	for _, s := range strings.Split(spec, ",") {
		r, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || r <= 0 {
			exit.Log("invalid aperture radius: " + s)
		}
		radii = append(radii, r)
	}
	return radii
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		exit.Log(err)
	}
	return log
}
