package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/brunocoulet-rtm/portraits/internal/config"
	"github.com/brunocoulet-rtm/portraits/internal/logging"
	"github.com/brunocoulet-rtm/portraits/pkg/pipeline"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// storageFlags are shared by run and watch; set flags override the config file
type storageFlags struct {
	input     string
	accepted  string
	rejected  string
	move      bool
	recursive bool
	workers   int
}

func (f *storageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "input bucket directory")
	cmd.Flags().StringVarP(&f.accepted, "accepted", "a", "", "directory receiving thumbnails")
	cmd.Flags().StringVarP(&f.rejected, "rejected", "r", "", "directory receiving rejected originals")
	cmd.Flags().BoolVar(&f.move, "move", false, "move originals out of the input directory instead of copying")
	cmd.Flags().BoolVar(&f.recursive, "recursive", false, "descend into subdirectories of the input directory")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 1, "number of files processed in parallel")
}

func (f *storageFlags) apply(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		c.Storage.Input = f.input
	}
	if flags.Changed("accepted") {
		c.Storage.Accepted = f.accepted
	}
	if flags.Changed("rejected") {
		c.Storage.Rejected = f.rejected
	}
	if flags.Changed("move") && f.move {
		c.Storage.Mode = "move"
	}
	if flags.Changed("recursive") {
		c.Storage.Recursive = f.recursive
	}
	if flags.Changed("workers") {
		c.Batch.Workers = f.workers
	}
}

var (
	runFlags     storageFlags
	failOnReject bool
	noProgress   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every image in the input directory once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runFlags.apply(cmd, cfg)
		if cmd.Flags().Changed("fail-on-reject") {
			cfg.Batch.FailOnReject = failOnReject
		}
		return runBatch(cmd, cfg)
	},
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().BoolVar(&failOnReject, "fail-on-reject", false, "exit non-zero when any file is rejected")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(runCmd)
}

// runBatch orchestrates a one-shot run: build tiers and buckets, list inputs, process, summarize
func runBatch(cmd *cobra.Command, c *config.Config) error {
	orchestrator, release, err := buildOrchestrator(c)
	if err != nil {
		return err
	}
	defer release()

	buckets, err := buildBuckets(c)
	if err != nil {
		return err
	}
	inputs, err := buckets.Inputs()
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !noProgress && len(inputs) > 0 {
		bar = newProgress(len(inputs), os.Stderr)
	}

	batch := pipeline.NewBatch(orchestrator, buckets, progressHooks(bar, c.Batch.Workers))

	stats, err := batch.Run(cmd.Context(), inputs)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	logging.Println(stats.Summary())
	fmt.Fprintf(cmd.OutOrStdout(), "accepted=%d rejected=%d skipped=%d\n", stats.Accepted, stats.Rejected, stats.Skipped)
	if err != nil {
		return err
	}

	if c.Batch.FailOnReject && stats.Rejected > 0 {
		return fmt.Errorf("%d file(s) rejected", stats.Rejected)
	}
	return nil
}

func newProgress(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("portraits"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
	)
}

// progressHooks advances bar once per input, whether it was processed or skipped
func progressHooks(bar *progressbar.ProgressBar, workers int) pipeline.BatchConfig {
	step := func() {
		if bar != nil {
			bar.Add(1)
		}
	}
	return pipeline.BatchConfig{
		Workers:   workers,
		OnOutcome: func(types.Outcome) { step() },
		OnSkip:    func(string) { step() },
	}
}
