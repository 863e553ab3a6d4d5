package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunocoulet-rtm/portraits/internal/logging"
	"github.com/brunocoulet-rtm/portraits/internal/utils"
	"github.com/brunocoulet-rtm/portraits/pkg/pipeline"
	"github.com/brunocoulet-rtm/portraits/pkg/storage"
	"github.com/brunocoulet-rtm/portraits/pkg/watch"
)

var (
	watchFlags    storageFlags
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process the input directory, then keep processing files as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watchFlags.apply(cmd, cfg)
		err := runWatch(cmd.Context())
		if errors.Is(err, context.Canceled) {
			logging.Println("watch stopped")
			return nil
		}
		return err
	},
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a new file is processed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context) error {
	if err := utils.EnsureDir(cfg.Storage.Input); err != nil {
		return fmt.Errorf("failed to create input directory: %w", err)
	}

	orchestrator, release, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer release()

	buckets, err := buildBuckets(cfg)
	if err != nil {
		return err
	}
	batch := pipeline.NewBatch(orchestrator, buckets, pipeline.BatchConfig{Workers: cfg.Batch.Workers})

	// Start watching before the initial pass so nothing dropped in meanwhile is missed
	w, err := watch.New(buckets.Input, watchDebounce, func(ctx context.Context, path string) error {
		if buckets.Processed(path) {
			logging.Debugf("%s: already processed, skipping", path)
			return nil
		}
		_, err := batch.ProcessFile(ctx, path)
		if errors.Is(err, storage.ErrExists) {
			// a file with the same bucket name arrived later; leave it in the input bucket
			logging.Printf("%s left in place: %v", path, err)
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	defer w.Close()

	inputs, err := buckets.Inputs()
	if err != nil {
		return err
	}
	stats, err := batch.Run(ctx, inputs)
	logging.Println(stats.Summary())
	if err != nil {
		return err
	}

	return w.Run(ctx)
}
