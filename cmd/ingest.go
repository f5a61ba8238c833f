package main

import (
	"fmt"

	"github.com/lexiguard/lexiguard/internal/config"
	"github.com/lexiguard/lexiguard/internal/service"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index every document in the documents directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(func(c *config.Config) {
				if dir != "" {
					c.Ingest.DocumentsDir = dir
				}
			})
			if err != nil {
				return err
			}
			svc, err := service.New(cmd.Context(), cfg)
			if err != nil {
				service.Handle(err)
				return err
			}
			defer svc.Close()

			report, err := svc.Ingest(cmd.Context())
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d passages) from %s\n",
					report.Files, report.Passages, cfg.Ingest.DocumentsDir)
				for _, path := range report.Failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s\n", path)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Documents directory (or set DOCUMENTS_DIR)")
	return cmd
}
