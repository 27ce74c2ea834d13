package main

import (
	"github.com/spf13/cobra"

	"github.com/chrissnell/electrotonic/internal/app"
	"github.com/chrissnell/electrotonic/internal/log"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port   int
		listen string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.REST.Port = port
			}
			if cmd.Flags().Changed("listen") {
				cfg.REST.ListenAddr = listen
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			application := app.New(cfg, log.GetSugaredLogger())
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port")
	cmd.Flags().StringVar(&listen, "listen", "0.0.0.0", "Listen address")

	return cmd
}
