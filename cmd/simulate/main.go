// Command simulate replays a counselling scenario file against the
// allotment engine and prints the allotments of each round together with
// the final seat inventory.  No database is needed.
//
//	simulate -f scenario.yaml [-o text|yaml] [-v]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-allotment/internal/allotment"
	"github.com/iliyamo/seat-allotment/internal/config"
	"github.com/iliyamo/seat-allotment/internal/logger"
	"github.com/iliyamo/seat-allotment/internal/scenario"
)

func main() {
	var (
		file    string
		output  string
		verbose bool
	)
	flags := pflag.NewFlagSet("simulate", pflag.ExitOnError)
	flags.StringVarP(&file, "file", "f", "", "scenario YAML file")
	flags.StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log each round to stderr")
	_ = flags.Parse(os.Args[1:])

	if file == "" {
		fmt.Fprintln(os.Stderr, "simulate: -f is required")
		flags.Usage()
		os.Exit(2)
	}
	if output != "text" && output != "yaml" {
		fmt.Fprintf(os.Stderr, "simulate: unknown output format %q\n", output)
		os.Exit(2)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(config.LogConfig{Level: level, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	s, err := scenario.Load(file)
	if err != nil {
		log.Error("load scenario", zap.String("file", file), zap.Error(err))
		os.Exit(1)
	}
	report, err := scenario.NewRunner(log).Run(s)
	if err != nil {
		log.Error("scenario failed", zap.String("kind", string(allotment.KindOf(err))), zap.Error(err))
		os.Exit(1)
	}

	if output == "yaml" {
		err = report.WriteYAML(os.Stdout)
	} else {
		err = report.WriteText(os.Stdout)
	}
	if err != nil {
		log.Error("write report", zap.Error(err))
		os.Exit(1)
	}
}
