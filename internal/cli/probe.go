package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunocoulet-rtm/portraits/pkg/detection"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
)

var probeDetector string

var probeCmd = &cobra.Command{
	Use:   "probe <image>",
	Short: "Run a single configured detector on an image and print what it found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		locators := newLocatorSet(cfg)
		defer locators.Close()

		loc, err := locators.get(probeDetector)
		if err != nil {
			return err
		}
		img, err := raster.Load(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		// vision models first get a plain question to check they can see the image at all
		if vl, ok := loc.(*detection.VisionLocator); ok {
			answer, err := vl.TestVision(cmd.Context(), img)
			if err != nil {
				return fmt.Errorf("vision test failed: %w", err)
			}
			fmt.Fprintf(out, "model says: %s\n", answer)
		}

		faces, err := loc.Detect(cmd.Context(), img)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s found %d face(s) in %dx%d\n", loc.Name(), len(faces), img.Bounds().Dx(), img.Bounds().Dy())
		for i, f := range faces {
			fmt.Fprintf(out, "  #%d x=%d y=%d w=%d h=%d score=%.2f\n", i, f.X, f.Y, f.Width, f.Height, f.Score)
		}
		if best, ok := detection.Largest(faces); ok {
			fmt.Fprintf(out, "largest: x=%d y=%d w=%d h=%d\n", best.X, best.Y, best.Width, best.Height)
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVarP(&probeDetector, "detector", "d", "cascade", "name of a detector under detectors in the config")
	rootCmd.AddCommand(probeCmd)
}
