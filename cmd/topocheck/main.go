// Command topocheck validates, and optionally repairs, GeoJSON files
// against the rules of a configuration file.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/bsaid97/go-topology-engine/config"
	"github.com/bsaid97/go-topology-engine/geoskernel"
	"github.com/bsaid97/go-topology-engine/logger"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string  `short:"c" long:"config"    env:"CONFIG_FILE" description:"Path to configuration file"`
	Fix        bool    `short:"f" long:"fix"                         description:"Repair the auto-fixable errors"`
	FixAll     bool    `long:"fix-all"                               description:"Attempt a repair of every error"`
	Tolerance  float64 `short:"t" long:"tolerance"                   description:"Tolerance in coordinate units, overrides the configuration"`
	Format     string  `long:"format"                                description:"Report format" choice:"json" choice:"yaml" default:"json"`
	Out        string  `short:"o" long:"out"                         description:"Directory receiving the repaired files"`
	Shapefile  bool    `long:"shapefile"                             description:"Also write repaired files as shapefiles"`
	Workers    int     `short:"w" long:"workers"   env:"WORKERS"     description:"Files processed in parallel, 0 for one per CPU"`

	Args struct {
		Files []string `positional-arg-name:"files" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	opts.Logger.Setup()

	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		cfg, err = config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	checker := &Checker{
		Kernel:    geoskernel.New(geoskernel.WithLogger(log.Logger)),
		Config:    cfg,
		Fix:       opts.Fix || opts.FixAll,
		FixAll:    opts.FixAll,
		Tolerance: opts.Tolerance,
		OutDir:    opts.Out,
		Shapefile: opts.Shapefile,
		Workers:   opts.Workers,
		Log:       log.Logger,
	}

	results, err := checker.Run(ctx, opts.Args.Files)
	if err != nil {
		log.Error().Err(err).Msg("Batch interrupted")
	}

	if err := WriteResults(os.Stdout, results, opts.Format); err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}

	if err != nil || !AllValid(results) {
		os.Exit(1)
	}
}
