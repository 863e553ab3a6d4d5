// Package storage keeps the input, accepted and rejected directories of a batch.
package storage

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunocoulet-rtm/portraits/internal/utils"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
	"github.com/brunocoulet-rtm/portraits/pkg/types"
)

var (
	// ErrExists is returned instead of replacing a file already in a bucket
	ErrExists = errors.New("file already exists in bucket")
	// ErrCollision is returned when two inputs map to the same bucket file
	ErrCollision = errors.New("inputs collide in bucket")
)

// Mode selects whether originals leave the input directory
type Mode string

const (
	ModeCopy Mode = "copy"
	ModeMove Mode = "move"
)

// ParseMode validates a configured mode; empty means copy
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCopy:
		return ModeCopy, nil
	case ModeMove:
		return ModeMove, nil
	}
	return "", fmt.Errorf("unknown storage mode %q (want copy or move)", s)
}

// Buckets maps the batch lifecycle onto three directories
type Buckets struct {
	Input     string
	Accepted  string
	Rejected  string
	Mode      Mode
	Recursive bool
	Save      raster.SaveOptions
}

// New validates the directories and creates the output buckets
func New(input, accepted, rejected string, mode Mode, save raster.SaveOptions) (*Buckets, error) {
	if input == "" || accepted == "" || rejected == "" {
		return nil, fmt.Errorf("input, accepted and rejected directories are required")
	}
	dirs := map[string]string{}
	for name, dir := range map[string]string{"input": input, "accepted": accepted, "rejected": rejected} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid %s directory: %w", name, err)
		}
		if other, ok := dirs[abs]; ok {
			return nil, fmt.Errorf("%s and %s directories must differ", other, name)
		}
		dirs[abs] = name
	}
	if !utils.DirExists(input) {
		return nil, fmt.Errorf("input directory %s does not exist", input)
	}
	for _, dir := range []string{accepted, rejected} {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", dir, err)
		}
	}
	if mode == "" {
		mode = ModeCopy
	}
	return &Buckets{Input: input, Accepted: accepted, Rejected: rejected, Mode: mode, Save: save}, nil
}

// Dir returns the directory backing a bucket
func (b *Buckets) Dir(bucket types.Bucket) string {
	switch bucket {
	case types.BucketAccepted:
		return b.Accepted
	case types.BucketRejected:
		return b.Rejected
	default:
		return b.Input
	}
}

// Inputs lists the image files waiting in the input bucket.
// Two inputs that would land on the same bucket file make the listing fail with ErrCollision.
func (b *Buckets) Inputs() ([]string, error) {
	files, err := utils.ListImageFiles(b.Input, b.Recursive)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory: %w", err)
	}

	owners := make(map[string]string, 2*len(files))
	for _, f := range files {
		for _, target := range []string{b.OutputPath(f), b.RejectedPath(f)} {
			if prev, ok := owners[target]; ok {
				return nil, fmt.Errorf("%w: %s and %s both map to %s", ErrCollision, prev, f, target)
			}
			owners[target] = f
		}
	}
	return files, nil
}

// relPath returns input relative to the input bucket, or its base name when it lies elsewhere
func (b *Buckets) relPath(input string) string {
	root, err1 := filepath.Abs(b.Input)
	abs, err2 := filepath.Abs(input)
	if err1 == nil && err2 == nil {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel
		}
	}
	return filepath.Base(input)
}

// OutputPath returns where the thumbnail for input is written. The subdirectory below the
// input bucket is kept, and a thumbnail whose format differs from the input's extension
// carries that extension in its name, so p.jpg and p.png never share an output.
func (b *Buckets) OutputPath(input string) string {
	ext := utils.GetFileExtension(input)
	format := b.Save.Format
	if format == "" {
		switch ext {
		case "jpg", "jpeg", "png", "webp":
			format = ext
		default:
			format = "jpg"
		}
	}

	suffix := ""
	if ext != "" && canonical(ext) != canonical(format) {
		suffix = "_" + ext
	}
	rel := b.relPath(input)
	return utils.GenerateOutputFilename(rel, filepath.Join(b.Accepted, filepath.Dir(rel)), "", suffix, format)
}

// RejectedPath returns where input lands when it is rejected
func (b *Buckets) RejectedPath(input string) string {
	return filepath.Join(b.Rejected, b.relPath(input))
}

func canonical(format string) string {
	if f := strings.ToLower(format); f != "jpeg" {
		return f
	}
	return "jpg"
}

// Processed reports whether input already has a thumbnail or a rejected copy
func (b *Buckets) Processed(input string) bool {
	return utils.FileExists(b.OutputPath(input)) || utils.FileExists(b.RejectedPath(input))
}

// SaveAccepted writes the thumbnail for input into the accepted bucket. It never replaces an
// existing file. In move mode the original is removed from the input bucket afterwards.
func (b *Buckets) SaveAccepted(img image.Image, input string) (string, error) {
	out := b.OutputPath(input)
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return "", fmt.Errorf("failed to create bucket %s: %w", filepath.Dir(out), err)
	}

	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrExists, out)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", out, err)
	}

	opts := b.Save
	opts.Format = raster.FormatFor(out)
	if err := raster.Encode(f, img, opts); err != nil {
		f.Close()
		os.Remove(out)
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}

	if b.Mode == ModeMove {
		if err := os.Remove(input); err != nil {
			return out, fmt.Errorf("failed to remove original %s: %w", input, err)
		}
	}
	return out, nil
}

// Place copies or moves path into bucket, keeping its path below the input bucket.
// An existing file at the target is never replaced.
func (b *Buckets) Place(path string, bucket types.Bucket) (string, error) {
	target := filepath.Join(b.Dir(bucket), b.relPath(path))
	if filepath.Clean(path) == filepath.Clean(target) {
		return target, nil
	}
	if _, err := os.Lstat(target); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, target)
	}

	dir := filepath.Dir(target)
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create bucket %s: %w", dir, err)
	}

	var err error
	if b.Mode == ModeMove {
		err = utils.MoveFile(path, target)
	} else {
		err = utils.CopyFile(path, target)
	}
	if err != nil {
		return "", fmt.Errorf("failed to place %s in %s bucket: %w", path, bucket, err)
	}
	return target, nil
}
