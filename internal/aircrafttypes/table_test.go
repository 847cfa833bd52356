package aircrafttypes

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableLookups(t *testing.T) {
	tbl := Default()
	require.Greater(t, tbl.Len(), 100)

	assert.Equal(t, "Airbus A320", tbl.FriendlyName("A320"))
	assert.Equal(t, "Airbus A320", tbl.FriendlyName(" a320 "))
	assert.Equal(t, "Boeing 737-800", tbl.FriendlyName("738"), "IATA code resolves")
	assert.Equal(t, "Airbus A320 family", tbl.FriendlyName("A32X"), "family prefix fallback")
	assert.Equal(t, "", tbl.FriendlyName("ZZZZ"))
	assert.Equal(t, "", tbl.FriendlyName(""))

	min, max, ok := tbl.SeatRange("C172")
	require.True(t, ok)
	assert.Equal(t, 4, min)
	assert.Equal(t, 4, max)

	_, max, ok = tbl.SeatRange("B73X")
	require.True(t, ok, "family seat fallback")
	assert.Equal(t, 220, max)

	max, ok = tbl.SeatMax("SF50")
	require.True(t, ok)
	assert.Equal(t, 7, max)

	_, ok = tbl.SeatMax("NOPE")
	assert.False(t, ok)
}

func TestDisplayType(t *testing.T) {
	tbl := Default()
	assert.Equal(t, "C208 Cessna 208 Caravan", tbl.DisplayType("C208"))
	assert.Equal(t, "ZZZZ", tbl.DisplayType("ZZZZ"))
}

func TestLoadZstdCompressed(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(embeddedTypes)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "types.json.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), tbl.Len())
	assert.Equal(t, "Cirrus SR22", tbl.FriendlyName("SR22"))
}

func TestLoadRejectsGarbage(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not json")))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
