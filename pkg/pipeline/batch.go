package pipeline

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brunocoulet-rtm/portraits/internal/logging"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

// Store places processed files into their buckets
type Store interface {
	// Processed reports whether input already has an outcome on disk
	Processed(input string) bool
	// SaveAccepted writes the thumbnail for input and returns its path
	SaveAccepted(img image.Image, input string) (string, error)
	// Place copies or moves path into bucket and returns the new path
	Place(path string, bucket types.Bucket) (string, error)
}

// BatchConfig controls a batch run
type BatchConfig struct {
	// Workers is the number of files processed at once; values below 1 mean 1
	Workers int
	// OnOutcome is called once per finished file; it must be safe for concurrent use
	OnOutcome func(types.Outcome)
	// OnSkip is called for every input that already had an outcome, before any file is processed
	OnSkip func(path string)
}

// Stats summarizes a batch run
type Stats struct {
	RunID    string
	Total    int
	Accepted int
	Rejected int
	Skipped  int
	ByReason map[types.Reason]int
	ByTier   map[types.Tier]int
	Duration time.Duration

	mu sync.Mutex
}

func newStats() *Stats {
	return &Stats{
		RunID:    uuid.NewString(),
		ByReason: make(map[types.Reason]int),
		ByTier:   make(map[types.Tier]int),
	}
}

func (s *Stats) record(o types.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	if o.Success() {
		s.Accepted++
		s.ByTier[o.Tier]++
	} else {
		s.Rejected++
		s.ByReason[o.Reason]++
	}
}

func (s *Stats) skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

// Summary returns a one-line description of the run
func (s *Stats) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	reasons := make([]string, 0, len(s.ByReason))
	for r, n := range s.ByReason {
		reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
	}
	sort.Strings(reasons)

	return fmt.Sprintf("run %s: %d processed, %d accepted (primary=%d fallback=%d), %d rejected [%s], %d skipped in %s",
		s.RunID, s.Total, s.Accepted, s.ByTier[types.TierPrimary], s.ByTier[types.TierFallback],
		s.Rejected, strings.Join(reasons, " "), s.Skipped, s.Duration.Round(time.Millisecond))
}

// Batch runs many files through an orchestrator and places each one in exactly one bucket
type Batch struct {
	orchestrator *Orchestrator
	store        Store
	cfg          BatchConfig
}

// NewBatch creates a batch runner
func NewBatch(o *Orchestrator, store Store, cfg BatchConfig) *Batch {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Batch{orchestrator: o, store: store, cfg: cfg}
}

// Run processes inputs. A detector fault, a storage failure or cancellation stops the
// batch and is returned together with the stats gathered so far.
func (b *Batch) Run(ctx context.Context, inputs []string) (*Stats, error) {
	stats := newStats()
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	logging.Printf("run %s: %d candidate files, %d worker(s)", stats.RunID, len(inputs), b.cfg.Workers)

	// skip decisions are taken before any worker writes to the buckets
	pending := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if b.store.Processed(in) {
			logging.Debugf("%s: already processed, skipping", in)
			stats.skip()
			if b.cfg.OnSkip != nil {
				b.cfg.OnSkip(in)
			}
			continue
		}
		pending = append(pending, in)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	for _, in := range pending {
		if gctx.Err() != nil {
			break
		}
		in := in
		g.Go(func() error {
			return b.processOne(gctx, in, stats)
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return stats, err
}

// ProcessFile runs a single file outside of a batch and places it
func (b *Batch) ProcessFile(ctx context.Context, path string) (types.Outcome, error) {
	return b.handle(ctx, path)
}

func (b *Batch) processOne(ctx context.Context, path string, stats *Stats) error {
	outcome, err := b.handle(ctx, path)
	if err != nil {
		return err
	}
	stats.record(outcome)
	if b.cfg.OnOutcome != nil {
		b.cfg.OnOutcome(outcome)
	}
	return nil
}

// handle processes path and places it in the accepted or rejected bucket
func (b *Batch) handle(ctx context.Context, path string) (types.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return types.Outcome{}, err
	}
	res, err := b.orchestrator.Process(ctx, path)
	if err != nil {
		return types.Outcome{}, err
	}

	outcome := res.Outcome
	if outcome.Success() {
		outPath, err := b.store.SaveAccepted(res.Image, path)
		if err != nil {
			return types.Outcome{}, fmt.Errorf("failed to save thumbnail for %s: %w", path, err)
		}
		outcome.Output = outPath
		logging.Printf("accepted %s -> %s (%s tier, rotation %s)", path, outPath, outcome.Tier, outcome.Rotation)
		return outcome, nil
	}

	dest, err := b.store.Place(path, types.BucketRejected)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("failed to place rejected %s: %w", path, err)
	}
	outcome.Output = dest
	logging.Printf("rejected %s: %s (%s tier)", path, outcome.Reason, outcome.Tier)
	return outcome, nil
}
