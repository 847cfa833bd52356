package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexScannerSingleChunk(t *testing.T) {
	var s HexScanner
	got := s.Feed([]byte(`{"ac":[{"hex":"ae1234","flight":"RCH123"},{"hex":"43C6F1"},{"hex":"~0a1b2c"}]}`))
	assert.Equal(t, []uint32{0xae1234, 0x43c6f1}, got, "a non-hex character drops the token")
	assert.Equal(t, uint64(2), s.Tokens())
}

func TestHexScannerSplitAcrossChunks(t *testing.T) {
	body := []byte(`[{"hex":"ae1234"},{"hex" :"ffffff"},{"hex":"00000a"}]`)
	for split := 1; split < len(body); split++ {
		var s HexScanner
		var got []uint32
		got = append(got, s.Feed(body[:split])...)
		got = append(got, s.Feed(body[split:])...)
		require.Equal(t, []uint32{0xae1234, 0x00000a}, got, "split at %d", split)
	}
}

func TestHexScannerByteAtATime(t *testing.T) {
	body := []byte(`x""hex":"abcdef0"`)
	var s HexScanner
	var got []uint32
	for i := range body {
		got = append(got, s.Feed(body[i:i+1])...)
	}
	assert.Equal(t, []uint32{0xabcdef}, got, "digits past the sixth are ignored")
}

func TestHexScannerEmptyValue(t *testing.T) {
	var s HexScanner
	assert.Empty(t, s.Feed([]byte(`{"hex":""}`)))
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"ae1234", 0xae1234, true},
		{"AE1234", 0xae1234, true},
		{"~ae1234", 0xae1234, true},
		{"ae12345678", 0xae1234, true},
		{"", 0, false},
		{"zz", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseHex(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
