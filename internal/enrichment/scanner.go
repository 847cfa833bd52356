package enrichment

// MaxHexNibbles is the number of hex digits in an ICAO 24-bit address
const MaxHexNibbles = 6

var hexNeedle = []byte(`"hex":"`)

type scanState uint8

const (
	stateSearch scanState = iota
	stateInHex
)

// HexScanner extracts ICAO addresses from a JSON byte stream without decoding it.
// It looks for the literal `"hex":"` and reads up to six hex digits until the
// closing quote. A non-hex character inside the value drops the token. Feed may
// be called with arbitrarily split chunks.
type HexScanner struct {
	state   scanState
	match   int
	current uint32
	digits  int
	tokens  uint64
}

// Feed scans the next chunk and returns the addresses completed within it
func (s *HexScanner) Feed(chunk []byte) []uint32 {
	var out []uint32
	for _, c := range chunk {
		if s.state == stateSearch {
			if c == hexNeedle[s.match] {
				s.match++
				if s.match == len(hexNeedle) {
					s.state = stateInHex
					s.match = 0
					s.current = 0
					s.digits = 0
				}
			} else if c == hexNeedle[0] {
				s.match = 1
			} else {
				s.match = 0
			}
			continue
		}

		if c == '"' {
			if s.digits > 0 {
				out = append(out, s.current)
				s.tokens++
			}
			s.reset()
			continue
		}

		nib := hexNibble(c)
		if nib < 0 {
			s.reset()
			continue
		}
		// Digits past the sixth are ignored
		if s.digits < MaxHexNibbles {
			s.current = s.current<<4 | uint32(nib)
			s.digits++
		}
	}
	return out
}

// Tokens returns how many addresses have been emitted so far
func (s *HexScanner) Tokens() uint64 {
	return s.tokens
}

func (s *HexScanner) reset() {
	s.state = stateSearch
	s.current = 0
	s.digits = 0
}

// ParseHex converts an address string to its numeric form, skipping non-hex
// characters (such as the "~" prefix on non-ICAO addresses) and keeping the
// first six digits
func ParseHex(s string) (uint32, bool) {
	var v uint32
	digits := 0
	for i := 0; i < len(s); i++ {
		nib := hexNibble(s[i])
		if nib < 0 {
			continue
		}
		if digits >= MaxHexNibbles {
			break
		}
		v = v<<4 | uint32(nib)
		digits++
	}
	return v, digits > 0
}

func hexNibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
