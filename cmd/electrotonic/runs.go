package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chrissnell/electrotonic/internal/constants"
	"github.com/chrissnell/electrotonic/internal/log"
	"github.com/chrissnell/electrotonic/internal/store"
	"github.com/chrissnell/electrotonic/pkg/responseformat"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored calculator runs",
	}
	cmd.AddCommand(newRunsListCmd(root), newRunsShowCmd(root))
	return cmd
}

func openStore(root *rootOptions) (store.Store, error) {
	cfg, err := root.loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Storage, log.Named("store"))
}

func newRunsListCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(root)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs stored")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSKELETON\tNAME\tSEGMENTS\tMODE\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", r.ID, r.SkeletonID, r.Name,
					humanize.Comma(int64(r.SegmentCount)), r.Mode, humanize.RelTime(r.CreatedAt, time.Now(), "ago", "from now"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", constants.DefaultRunListLimit, "Maximum number of runs to list")
	return cmd
}

func newRunsShowCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the segment table of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			f, err := responseformat.ParseFormat(format)
			if err != nil {
				return err
			}

			st, err := openStore(root)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			if f == responseformat.FormatTable {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: skeleton %d %q, %s mode, Rm=%g Cm=%g Ri=%g\n",
					run.ID, run.SkeletonID, run.Name, run.Mode, run.Constants.Rm, run.Constants.Cm, run.Constants.Ri)
			}
			return responseformat.NewFormatter().WriteTable(cmd.OutOrStdout(), f, run.Records, nil)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(responseformat.FormatTable), "Output format: table, csv, json or msgpack")
	return cmd
}
