package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevelsAndFormats(t *testing.T) {
	for _, cfg := range []Config{
		{Level: "debug", Format: "console"},
		{Level: "info", Format: "json"},
		{Level: "", Format: ""},
		{Level: "warning", Format: "console"},
	} {
		log, err := New(cfg)
		require.NoError(t, err, "config %+v", cfg)
		log.Named("test").Debug("hello", String("k", "v"), Int("n", 1), Error(errors.New("boom")))
	}
}

func TestNewRejectsUnknownValues(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overhead.log")
	log, err := New(Config{Level: "info", Format: "json", File: path})
	require.NoError(t, err)

	log.Named("adsb").Info("Fetch completed", Int("aircraft", 3))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fetch completed")
	assert.Contains(t, string(data), `"aircraft":3`)
}
