package selection

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/internal/flight"
)

func rec(hex string, altFt int, distKm float64) flight.Flight {
	return flight.Flight{Identity: hex, Hex: hex, AltitudeFt: altFt, DistanceKm: distKm, Valid: true}
}

func milSet(hexes ...string) func(string) bool {
	set := make(map[string]bool, len(hexes))
	for _, h := range hexes {
		set[h] = true
	}
	return func(hex string) bool { return set[hex] }
}

func TestSelectMilitaryAirborneBeatsNearest(t *testing.T) {
	records := []flight.Flight{
		rec("milgnd", 0, 1),
		rec("civair", 12000, 3),
		rec("milair", 20000, 40),
	}
	got, tier, ok := Select(records, milSet("milgnd", "milair"))
	require.True(t, ok)
	assert.Equal(t, "milair", got.Hex)
	assert.Equal(t, TierMilitaryAirborne, tier)
	assert.True(t, tier.Military())
}

func TestSelectPriorityOrder(t *testing.T) {
	t.Run("military grounded beats civil airborne", func(t *testing.T) {
		got, tier, ok := Select([]flight.Flight{rec("civair", 5000, 2), rec("milgnd", 0, 9)}, milSet("milgnd"))
		require.True(t, ok)
		assert.Equal(t, "milgnd", got.Hex)
		assert.Equal(t, TierMilitaryGrounded, tier)
	})

	t.Run("airborne beats nearer grounded", func(t *testing.T) {
		got, tier, ok := Select([]flight.Flight{rec("gnd", 0, 0.5), rec("air", 3000, 5)}, nil)
		require.True(t, ok)
		assert.Equal(t, "air", got.Hex)
		assert.Equal(t, TierAirborne, tier)
	})

	t.Run("grounded when nothing airborne", func(t *testing.T) {
		got, tier, ok := Select([]flight.Flight{rec("far", -1, 9), rec("near", 0, 2)}, nil)
		require.True(t, ok)
		assert.Equal(t, "near", got.Hex)
		assert.Equal(t, TierGrounded, tier)
	})

	t.Run("nearest within a tier", func(t *testing.T) {
		got, _, _ := Select([]flight.Flight{rec("a", 100, 7), rec("b", 100, 3), rec("c", 100, 5)}, nil)
		assert.Equal(t, "b", got.Hex)
	})

	t.Run("first wins on equal distance", func(t *testing.T) {
		got, _, _ := Select([]flight.Flight{rec("a", 100, 3), rec("b", 100, 3)}, nil)
		assert.Equal(t, "a", got.Hex)
	})
}

func TestSelectNoData(t *testing.T) {
	_, tier, ok := Select(nil, nil)
	assert.False(t, ok)
	assert.Equal(t, TierNone, tier)

	invalid := rec("x", 1000, 1)
	invalid.Valid = false
	_, _, ok = Select([]flight.Flight{invalid}, milSet("x"))
	assert.False(t, ok)
}

func TestSelectUnknownDistanceSortsLast(t *testing.T) {
	got, _, _ := Select([]flight.Flight{rec("nan", 100, math.NaN()), rec("known", 100, 80)}, nil)
	assert.Equal(t, "known", got.Hex)
}

func TestCandidates(t *testing.T) {
	records := []flight.Flight{rec("AE1234", 0, 1), rec("ae1234", 0, 2), rec("", 0, 3), rec("738065", 0, 4)}
	hexes, truncated := Candidates(records, 48)
	assert.Equal(t, []string{"ae1234", "738065"}, hexes)
	assert.False(t, truncated)
}

func TestCandidatesTruncates(t *testing.T) {
	records := make([]flight.Flight, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, rec(fmt.Sprintf("%06x", i), 1000, float64(i)))
	}
	hexes, truncated := Candidates(records, 0)
	assert.Len(t, hexes, DefaultMaxCandidates)
	assert.True(t, truncated)
	assert.Equal(t, "000000", hexes[0])

	hexes, truncated = Candidates(records[:48], 48)
	assert.Len(t, hexes, 48)
	assert.False(t, truncated)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "military-airborne", TierMilitaryAirborne.String())
	assert.Equal(t, "none", Tier(99).String())
	b, err := TierGrounded.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "grounded", string(b))
}
