package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunocoulet-rtm/portraits"
	"github.com/brunocoulet-rtm/portraits/internal/config"
	"github.com/brunocoulet-rtm/portraits/pkg/detection"
	"github.com/brunocoulet-rtm/portraits/pkg/pipeline"
	"github.com/brunocoulet-rtm/portraits/pkg/raster"
)

// resetFlags clears values left behind by a previous execution of the shared command tree
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func gradient(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(60 + x%120), G: uint8(60 + y%120), B: 100, A: 255})
		}
	}
	return img
}

type workspace struct {
	root, config, input, accepted, rejected string
}

// newWorkspace lays out buckets and a config whose tiers both use the saliency detector
func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	ws := workspace{
		root:     root,
		config:   filepath.Join(root, "portraits.yaml"),
		input:    filepath.Join(root, "in"),
		accepted: filepath.Join(root, "ok"),
		rejected: filepath.Join(root, "ko"),
	}
	require.NoError(t, os.MkdirAll(ws.input, 0755))

	c := config.Default()
	c.Primary.Detector = "saliency"
	c.Fallback.Detector = "saliency"
	c.Storage = config.StorageConfig{Input: ws.input, Accepted: ws.accepted, Rejected: ws.rejected, Mode: "copy"}
	require.NoError(t, c.SaveToFile(ws.config))

	require.NoError(t, raster.Save(gradient(300, 400), filepath.Join(ws.input, "face.png"), raster.SaveOptions{Format: "png"}))
	require.NoError(t, os.WriteFile(filepath.Join(ws.input, "broken.jpg"), []byte("garbage"), 0644))
	return ws
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "portraits "+portraits.Version+"\n", out)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "portraits.yaml")

	out, err := execute(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	_, err = execute(t, "init-config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init-config", "--force", path)
	assert.NoError(t, err)
}

func TestRunCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.config, "run", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted=1 rejected=1 skipped=0")

	thumb, err := raster.Load(filepath.Join(ws.accepted, "face.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 192, 248), thumb.Bounds())
	assert.FileExists(t, filepath.Join(ws.rejected, "broken.jpg"))
	assert.FileExists(t, filepath.Join(ws.input, "face.png"), "copy mode keeps originals")

	out, err = execute(t, "--config", ws.config, "run", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted=0 rejected=0 skipped=2")
}

func TestProgressCountsSkippedInputs(t *testing.T) {
	ws := newWorkspace(t)
	_, err := execute(t, "--config", ws.config, "run", "--no-progress")
	require.NoError(t, err)

	c, err := config.LoadFromFile(ws.config)
	require.NoError(t, err)
	o, release, err := buildOrchestrator(c)
	require.NoError(t, err)
	defer release()
	buckets, err := buildBuckets(c)
	require.NoError(t, err)
	inputs, err := buckets.Inputs()
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	bar := newProgress(len(inputs), io.Discard)
	stats, err := pipeline.NewBatch(o, buckets, progressHooks(bar, 1)).Run(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, int64(len(inputs)), bar.State().CurrentNum)
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	ws := newWorkspace(t)
	other := filepath.Join(ws.root, "elsewhere")

	_, err := execute(t, "--config", ws.config, "run", "--no-progress", "--move", "--accepted", other, "--workers", "2")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(other, "face.png"))
	assert.NoFileExists(t, filepath.Join(ws.input, "face.png"))
	assert.NoFileExists(t, filepath.Join(ws.input, "broken.jpg"))
}

func TestRunFailOnReject(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.config, "run", "--no-progress", "--fail-on-reject")
	assert.ErrorContains(t, err, "1 file(s) rejected")
}

func TestRunMissingInput(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "--config", ws.config, "run", "--no-progress", "--input", filepath.Join(ws.root, "nope"))
	assert.Error(t, err)
}

func TestLogFileClosedWhenRunFails(t *testing.T) {
	ws := newWorkspace(t)
	logPath := filepath.Join(ws.root, "portraits.log")

	_, err := execute(t, "--config", ws.config, "--log-file", logPath, "run", "--no-progress", "--input", filepath.Join(ws.root, "nope"))
	assert.Error(t, err)
	assert.Nil(t, logCloser)
}

func TestInspectCommand(t *testing.T) {
	ws := newWorkspace(t)
	outDir := filepath.Join(ws.root, "debug")

	out, err := execute(t, "--config", ws.config, "inspect", filepath.Join(ws.input, "face.png"), "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "face_debug.png")
	assert.FileExists(t, filepath.Join(outDir, "face_debug.png"))
	assert.FileExists(t, filepath.Join(outDir, "face_thumb.jpg"))
	assert.NoFileExists(t, filepath.Join(ws.accepted, "face.png"), "inspect never places files")
}

func TestProbeCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "--config", ws.config, "probe", "--detector", "saliency", filepath.Join(ws.input, "face.png"))
	require.NoError(t, err)
	assert.Contains(t, out, "saliency found 1 face(s) in 300x400")

	_, err = execute(t, "--config", ws.config, "probe", "--detector", "missing", filepath.Join(ws.input, "face.png"))
	assert.ErrorContains(t, err, "not configured")
}

func TestNewLocatorKinds(t *testing.T) {
	l, err := newLocator(config.DetectorConfig{Kind: config.KindOllama, URL: "http://localhost:11434", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "vision:m", l.Name())

	l, err = newLocator(config.DetectorConfig{Kind: config.KindLlamaCpp, URL: "http://localhost:8080", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &detection.VisionLocator{}, l)

	l, err = newLocator(config.DetectorConfig{Kind: config.KindSaliency})
	require.NoError(t, err)
	assert.Equal(t, "saliency", l.Name())

	_, err = newLocator(config.DetectorConfig{Kind: config.KindPigo, Cascade: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	_, err = newLocator(config.DetectorConfig{Kind: "magic"})
	assert.Error(t, err)
}

func TestBuildOrchestrator(t *testing.T) {
	c := config.Default()
	c.Primary.Detector = "saliency"
	c.Fallback.Enabled = false
	o, release, err := buildOrchestrator(c)
	require.NoError(t, err)
	assert.NotNil(t, o)
	release()

	c.Primary.Enabled = false
	_, _, err = buildOrchestrator(c)
	assert.Error(t, err)

	c = config.Default()
	o, release, err = buildOrchestrator(c)
	require.NoError(t, err, "defaults build with the bundled cascade")
	assert.NotNil(t, o)
	release()

	c = config.Default()
	c.Primary.Detector = "undefined"
	_, _, err = buildOrchestrator(c)
	assert.ErrorContains(t, err, "primary tier")
}
