package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chrissnell/electrotonic/internal/electrotonic"
	"github.com/chrissnell/electrotonic/internal/log"
	"github.com/chrissnell/electrotonic/internal/skeleton/ingest"
	"github.com/chrissnell/electrotonic/internal/store"
	"github.com/chrissnell/electrotonic/pkg/config"
	"github.com/chrissnell/electrotonic/pkg/responseformat"
)

type computeOptions struct {
	rm, cm, ri   float64
	mode         string
	workers      int
	radiusMethod string
	smooth       bool
	format       string
	output       string
	save         bool
}

func newComputeCmd(root *rootOptions) *cobra.Command {
	opts := &computeOptions{}

	cmd := &cobra.Command{
		Use:   "compute <skeleton.swc|skeleton.json>",
		Short: "Compute the segment property table for one neuron",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runCompute(cmd, cfg, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.rm, "rm", electrotonic.DefaultRm, "Specific membrane resistance (kOhm cm^2)")
	f.Float64Var(&opts.cm, "cm", electrotonic.DefaultCm, "Specific membrane capacitance (uF/cm^2)")
	f.Float64Var(&opts.ri, "ri", electrotonic.DefaultRi, "Specific intracellular resistance (Ohm cm)")
	f.StringVar(&opts.mode, "mode", string(electrotonic.ModeCorrected), "Surface area mode: 'corrected' or 'compatible'")
	f.IntVar(&opts.workers, "workers", 1, "Number of segments computed concurrently")
	f.StringVar(&opts.radiusMethod, "radius-method", "linear", "Radius estimation: 'linear' (from connectors) or 'node' (stored radii)")
	f.BoolVar(&opts.smooth, "smooth", true, "Smooth estimated radii with a rolling mean")
	f.StringVarP(&opts.format, "format", "f", string(responseformat.FormatTable), "Output format: table, csv, json or msgpack")
	f.StringVarP(&opts.output, "output", "o", "", "Write output to this file instead of stdout")
	f.BoolVar(&opts.save, "save", false, "Persist the run to the configured store")

	return cmd
}

// apply overrides configuration values with the flags set on the command line.
func (o *computeOptions) apply(cmd *cobra.Command, cfg *config.ConfigData) error {
	f := cmd.Flags()
	if f.Changed("rm") {
		cfg.Model.Rm = o.rm
	}
	if f.Changed("cm") {
		cfg.Model.Cm = o.cm
	}
	if f.Changed("ri") {
		cfg.Model.Ri = o.ri
	}
	if f.Changed("mode") {
		cfg.Compute.SurfaceAreaMode = o.mode
	}
	if f.Changed("workers") {
		cfg.Compute.Workers = o.workers
	}
	if f.Changed("radius-method") {
		cfg.Compute.RadiusMethod = o.radiusMethod
	}
	if f.Changed("smooth") {
		smooth := o.smooth
		cfg.Compute.Smooth = &smooth
	}
	return cfg.Validate()
}

func runCompute(cmd *cobra.Command, cfg *config.ConfigData, opts *computeOptions, path string) error {
	format, err := responseformat.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	calcOpts, err := cfg.CalculatorOptions()
	if err != nil {
		return err
	}
	radiusOpts, err := cfg.RadiusOptions()
	if err != nil {
		return err
	}

	neuron, err := ingest.LoadSingle(path)
	if err != nil {
		return err
	}
	log.Infof("loaded %q (skeleton %d) with %s treenodes", neuron.Name, neuron.SkeletonID, humanize.Comma(int64(len(neuron.Nodes))))

	analysis, err := electrotonic.Analyze(cmd.Context(), neuron, calcOpts, radiusOpts, log.Named("electrotonic"))
	if err != nil {
		return err
	}

	if opts.save {
		if err := saveRun(cmd, cfg, analysis); err != nil {
			return err
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		w = file
	}

	if err := responseformat.NewFormatter().WriteTable(w, format, analysis.Records, &analysis.Summary); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	if opts.output != "" {
		log.Infof("wrote %s segments to %s", humanize.Comma(int64(len(analysis.Records))), opts.output)
	}
	return nil
}

func saveRun(cmd *cobra.Command, cfg *config.ConfigData, analysis *electrotonic.Analysis) error {
	st, err := store.Open(cfg.Storage, log.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	n := analysis.Neuron
	run := store.NewRun(n.SkeletonID, n.Name, analysis.Options, analysis.Records)
	if err := st.SaveRun(cmd.Context(), run); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "saved run %s\n", run.ID)
	return nil
}
