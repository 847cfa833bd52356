package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yegors/overhead/internal/aircrafttypes"
	"github.com/yegors/overhead/internal/flight"
)

type seatMap map[string]int

func (m seatMap) SeatMax(code string) (int, bool) {
	v, ok := m[code]
	return v, ok
}

func TestClassify(t *testing.T) {
	seats := seatMap{"C172": 4, "PC12": 9, "B738": 189, "GLEX": 19, "E135": 37, "ZERO": 0, "T20": 20, "T21": 21}

	tests := []struct {
		name   string
		f      flight.Flight
		isMil  bool
		expect flight.OpClass
	}{
		{"military small aircraft without callsign", flight.Flight{TypeCode: "C172"}, true, flight.OpMilitary},
		{"military airliner with callsign", flight.Flight{TypeCode: "B738", HasCallsign: true}, true, flight.OpMilitary},
		{"small aircraft with callsign", flight.Flight{TypeCode: "PC12", HasCallsign: true}, false, flight.OpPrivate},
		{"threshold is inclusive", flight.Flight{TypeCode: "T20", HasCallsign: true}, false, flight.OpPrivate},
		{"above threshold", flight.Flight{TypeCode: "T21", HasCallsign: true}, false, flight.OpCommercial},
		{"airliner with callsign", flight.Flight{TypeCode: "B738", HasCallsign: true}, false, flight.OpCommercial},
		{"airliner without callsign", flight.Flight{TypeCode: "B738"}, false, flight.OpPrivate},
		{"unknown type with callsign", flight.Flight{TypeCode: "XXXX", HasCallsign: true}, false, flight.OpCommercial},
		{"zero seats ignored", flight.Flight{TypeCode: "ZERO", HasCallsign: true}, false, flight.OpCommercial},
		{"no type code", flight.Flight{HasCallsign: true}, false, flight.OpCommercial},
		{"seat override beats table", flight.Flight{TypeCode: "B738", HasCallsign: true, SeatOverride: 4}, false, flight.OpPrivate},
		{"large seat override on small type", flight.Flight{TypeCode: "C172", HasCallsign: true, SeatOverride: 180}, false, flight.OpCommercial},
		{"seat override without type", flight.Flight{HasCallsign: true, SeatOverride: 8}, false, flight.OpPrivate},
		{"military ignores seat override", flight.Flight{TypeCode: "B738", SeatOverride: 4}, true, flight.OpMilitary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Classify(tt.f, tt.isMil, seats, 20))
		})
	}
}

func TestClassifyThreshold(t *testing.T) {
	seats := seatMap{"GLEX": 19}
	f := flight.Flight{TypeCode: "GLEX", HasCallsign: true}

	assert.Equal(t, flight.OpPrivate, Classify(f, false, seats, 0), "default threshold")
	assert.Equal(t, flight.OpCommercial, Classify(f, false, seats, 15), "lower threshold")
}

func TestClassifyWithBuiltInTable(t *testing.T) {
	tbl := aircrafttypes.Default()
	assert.Equal(t, flight.OpPrivate, Classify(flight.Flight{TypeCode: "C172", HasCallsign: true}, false, tbl, 20))
	assert.Equal(t, flight.OpCommercial, Classify(flight.Flight{TypeCode: "A320", HasCallsign: true}, false, tbl, 20))
	assert.Equal(t, flight.OpPrivate, Classify(flight.Flight{TypeCode: "A320"}, false, nil, 20))
}
