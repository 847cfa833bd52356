// Package aircrafttypes resolves ICAO/IATA type designators to friendly names and seat ranges.
package aircrafttypes

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

//go:embed data/types.json
var embeddedTypes []byte

// zstd frame magic number
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// TypeInfo is one entry of the rich type dataset
type TypeInfo struct {
	ICAO         string `json:"icao"`
	IATA         string `json:"iata"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	MinSeats     int    `json:"min_seats"`
	MaxSeats     int    `json:"max_seats"`
}

type nameEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type familyName struct {
	Prefixes []string `json:"prefixes"`
	Name     string   `json:"name"`
}

type seatFamily struct {
	Prefixes []string `json:"prefixes"`
	Exact    []string `json:"exact"`
	MinSeats int      `json:"min_seats"`
	MaxSeats int      `json:"max_seats"`
}

type dataset struct {
	Types        []TypeInfo   `json:"types"`
	Names        []nameEntry  `json:"names"`
	FamilyNames  []familyName `json:"family_names"`
	SeatFamilies []seatFamily `json:"seat_families"`
}

// Table answers friendly-name and seat-capacity queries. It is immutable after loading.
type Table struct {
	types        []TypeInfo
	byCode       map[string]int // ICAO and IATA code -> index into types, ICAO wins
	names        map[string]string
	familyNames  []familyName
	seatFamilies []seatFamily
}

// Default returns the table built into the binary
func Default() *Table {
	t, err := Load(bytes.NewReader(embeddedTypes))
	if err != nil {
		panic(fmt.Sprintf("embedded aircraft type table is invalid: %v", err))
	}
	return t
}

// LoadFile loads a table from a JSON file, optionally zstd compressed
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open aircraft type table: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load aircraft type table %s: %w", path, err)
	}
	return t, nil
}

// Load decodes a table from r. zstd-compressed input is detected by its frame magic.
func Load(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br

	if head, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	var ds dataset
	if err := json.NewDecoder(src).Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode aircraft type table: %w", err)
	}
	return newTable(ds), nil
}

func newTable(ds dataset) *Table {
	t := &Table{
		types:        ds.Types,
		byCode:       make(map[string]int, len(ds.Types)*2),
		names:        make(map[string]string, len(ds.Names)),
		familyNames:  ds.FamilyNames,
		seatFamilies: ds.SeatFamilies,
	}

	// ICAO designators take precedence over IATA codes that happen to collide
	for i, ti := range ds.Types {
		if code := normalize(ti.IATA); code != "" {
			if _, exists := t.byCode[code]; !exists {
				t.byCode[code] = i
			}
		}
	}
	for i, ti := range ds.Types {
		if code := normalize(ti.ICAO); code != "" {
			t.byCode[code] = i
		}
	}
	for _, n := range ds.Names {
		t.names[normalize(n.Code)] = n.Name
	}
	return t
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func hasAnyPrefix(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// Lookup returns the rich entry for an exact ICAO or IATA code
func (t *Table) Lookup(code string) (TypeInfo, bool) {
	i, ok := t.byCode[normalize(code)]
	if !ok {
		return TypeInfo{}, false
	}
	return t.types[i], true
}

// FriendlyName returns a human readable aircraft name or "" when the code is unknown
func (t *Table) FriendlyName(code string) string {
	c := normalize(code)
	if c == "" {
		return ""
	}
	if ti, ok := t.Lookup(c); ok {
		return ti.Manufacturer + " " + ti.Model
	}
	if name, ok := t.names[c]; ok {
		return name
	}
	for _, fam := range t.familyNames {
		if hasAnyPrefix(c, fam.Prefixes) {
			return fam.Name
		}
	}
	return ""
}

// SeatRange returns the typical minimum and maximum seat count for the code
func (t *Table) SeatRange(code string) (min, max int, ok bool) {
	c := normalize(code)
	if c == "" {
		return 0, 0, false
	}
	if ti, found := t.Lookup(c); found {
		return ti.MinSeats, ti.MaxSeats, true
	}
	for _, fam := range t.seatFamilies {
		for _, e := range fam.Exact {
			if c == e {
				return fam.MinSeats, fam.MaxSeats, true
			}
		}
		if hasAnyPrefix(c, fam.Prefixes) {
			return fam.MinSeats, fam.MaxSeats, true
		}
	}
	return 0, 0, false
}

// SeatMax returns the maximum seat count for the code
func (t *Table) SeatMax(code string) (int, bool) {
	_, max, ok := t.SeatRange(code)
	return max, ok
}

// DisplayType returns "CODE Friendly Name", or whichever part is known
func (t *Table) DisplayType(code string) string {
	c := strings.TrimSpace(code)
	name := t.FriendlyName(c)
	switch {
	case name == "":
		return c
	case c == "":
		return name
	default:
		return c + " " + name
	}
}

// Len returns the number of rich entries
func (t *Table) Len() int {
	return len(t.types)
}
