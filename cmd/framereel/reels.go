package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkt.systems/framereel/internal/appconfig"
	"pkt.systems/framereel/reelstore"
	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

func newReelsCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "reels",
		Short: "Inspect and manage stored reels",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	cmd.AddCommand(newReelsListCmd(&cfgPath))
	cmd.AddCommand(newReelsShowCmd(&cfgPath))
	cmd.AddCommand(newReelsDeleteCmd(&cfgPath))
	cmd.AddCommand(newReelsCleanupCmd(&cfgPath))
	return cmd
}

func openStore(cfgPath string, logger pslog.Logger) (*reelstore.Store, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return reelstore.Open(cfg.Store.Path, reelstore.Options{
		ChunkSize: cfg.Store.SaveChunkSize,
		Logger:    logger,
	})
}

func newReelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored reels",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*cfgPath, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			reels, err := store.LoadAllReels(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTART\tFRAMES\tSIZE")
			for _, reel := range reels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					reel.ID, reel.Title, reel.StartTime.Format("2006-01-02 15:04:05"),
					reel.FrameCount, reel.EstimatedSize)
			}
			return w.Flush()
		},
	}
}

func newReelsShowCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reel-id>",
		Short: "Show one reel with its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*cfgPath, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			reel, err := store.LoadReel(cmd.Context(), schema.ReelID(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", reel.ID)
			fmt.Fprintf(out, "title:       %s\n", reel.Title)
			if reel.Description != "" {
				fmt.Fprintf(out, "description: %s\n", reel.Description)
			}
			fmt.Fprintf(out, "start:       %s\n", reel.StartTime.Format("2006-01-02 15:04:05"))
			if reel.EndTime != nil {
				fmt.Fprintf(out, "end:         %s\n", reel.EndTime.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "duration:    %s\n", reel.Metadata.Duration)
			fmt.Fprintf(out, "clicks:      %d\n", reel.Metadata.ClickCount)
			fmt.Fprintf(out, "frames:      %d\n", len(reel.Frames))
			w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tPHASE\tBUTTON\tTIMESTAMP\tBYTES")
			for _, frame := range reel.Frames {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n",
					frame.Order, frame.Metadata.Phase, frame.Metadata.Button.Name(),
					frame.Timestamp.Format("15:04:05.000"), len(frame.Image))
			}
			return w.Flush()
		},
	}
}

func newReelsDeleteCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <reel-id>",
		Short: "Delete a reel and all its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*cfgPath, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.DeleteReel(cmd.Context(), schema.ReelID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newReelsCleanupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <keep-count>",
		Short: "Evict the oldest reels, keeping the most recent <keep-count>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, err := strconv.Atoi(args[0])
			if err != nil || keep < 0 {
				return fmt.Errorf("keep-count must be a non-negative integer")
			}
			store, err := openStore(*cfgPath, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			deleted, err := store.CleanupOldReels(cmd.Context(), keep)
			if err != nil {
				return err
			}
			for _, id := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reels deleted\n", len(deleted))
			return nil
		},
	}
}
