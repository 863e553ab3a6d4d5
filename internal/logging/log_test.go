package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetVerbose(false)
	})
	return &buf
}

func TestDebugfRespectsVerbose(t *testing.T) {
	buf := captureOutput(t)

	SetVerbose(false)
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "DEBUG shown 2")
}

func TestPrintf(t *testing.T) {
	buf := captureOutput(t)

	Printf("accepted %s", "a.jpg")
	assert.Equal(t, "accepted a.jpg\n", buf.String())
}

func TestSetupWritesLogFile(t *testing.T) {
	prevOut, prevFlags := log.Writer(), log.Flags()
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetVerbose(false)
	})

	path := filepath.Join(t.TempDir(), "logs", "portraits.log")
	closer, err := Setup(Options{File: path, Quiet: true})
	require.NoError(t, err)

	Printf("hello from %s", "test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.False(t, Verbose())
}
