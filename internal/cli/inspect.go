package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunocoulet-rtm/portraits/internal/utils"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
)

var inspectOut string

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Run one image through the tiers and write a debug overlay without touching the buckets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, args[0])
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectOut, "out", "o", "out", "directory receiving the overlay and thumbnail")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, path string) error {
	orchestrator, release, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer release()

	res, err := orchestrator.Process(cmd.Context(), path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Outcome)

	if res.Frame == nil {
		return nil
	}
	if err := utils.EnsureDir(inspectOut); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	overlay := raster.DebugOverlay(res.Frame, res.Outcome.Face, res.Outcome.Crop)
	overlayPath := filepath.Join(inspectOut, base+"_debug.png")
	if err := raster.Save(overlay, overlayPath, raster.SaveOptions{Format: "png"}); err != nil {
		return fmt.Errorf("debug overlay save failed: %w", err)
	}
	fmt.Fprintf(out, "wrote %s\n", overlayPath)

	if res.Image != nil {
		thumbPath := filepath.Join(inspectOut, base+"_thumb.jpg")
		if err := raster.Save(res.Image, thumbPath, raster.SaveOptions{Quality: cfg.Output.Quality}); err != nil {
			return fmt.Errorf("thumbnail save failed: %w", err)
		}
		fmt.Fprintf(out, "wrote %s\n", thumbPath)
	}
	return nil
}
