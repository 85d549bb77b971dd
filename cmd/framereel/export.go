package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/framereel/encoder"
	"pkt.systems/framereel/export"
	"pkt.systems/framereel/internal/appconfig"
	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

func newExportCmd() *cobra.Command {
	var cfgPath string
	var format string
	var output string
	var includeMetadata bool
	var includeHTML bool
	cmd := &cobra.Command{
		Use:   "export <reel-id>",
		Short: "Export a stored reel to an animation or bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Export.Format
			}

			store, err := openStore(cfgPath, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			reel, err := store.LoadReel(cmd.Context(), schema.ReelID(args[0]))
			if err != nil {
				return err
			}
			artifact, err := export.Export(cmd.Context(), reel, export.Options{
				Format:          schema.ExportFormat(format),
				IncludeMetadata: includeMetadata,
				IncludeHTML:     includeHTML,
				Encode: encoder.Options{
					MaxColors:        cfg.Export.MaxColors,
					Dither:           cfg.Export.Dither,
					CompressionLevel: cfg.Export.CompressionLevel,
				},
				Progress: func(p schema.ExportProgress) {
					if p.Total > 0 {
						logger.Debug("export progress", "stage", p.Stage, "step", p.Step, "total", p.Total)
					} else {
						logger.Debug("export progress", "stage", p.Stage)
					}
				},
			})
			if err != nil {
				return err
			}

			target := output
			if target == "" {
				target = artifact.Filename
			}
			if err := os.WriteFile(target, artifact.Payload, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", target, artifact.Size)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: gif, apng, or bundle")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to the derived name)")
	cmd.Flags().BoolVar(&includeMetadata, "metadata", false, "include the metadata document in bundle exports")
	cmd.Flags().BoolVar(&includeHTML, "html", false, "include markup snapshots in the metadata document")
	return cmd
}
