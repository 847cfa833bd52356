package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusKm = 6371.0   // Mean Earth radius for the spherical model (km)
	KmToNM        = 0.539957 // Conversion factor from kilometres to nautical miles
	FeetToMeters  = 0.3048   // Conversion factor from feet to metres

	// Bounds accepted by the point/dist query endpoints
	MinRadiusNM = 1
	MaxRadiusNM = 250
)

// Point is a geodetic coordinate in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func rad2deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// HaversineKm returns the great-circle surface distance between a and b in kilometres.
// This is a 2D ground distance on a spherical Earth and is meant for display only.
func HaversineKm(a, b Point) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLon := deg2rad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// InitialBearing returns the true bearing in degrees [0, 360) from a towards b
func InitialBearing(a, b Point) float64 {
	lat1 := deg2rad(a.Lat)
	lat2 := deg2rad(b.Lat)
	dLon := deg2rad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeHeading(rad2deg(math.Atan2(y, x)))
}

// Destination returns the point reached from p after distanceKm along the
// great circle starting at bearingDeg
func Destination(p Point, bearingDeg, distanceKm float64) Point {
	lat1 := deg2rad(p.Lat)
	lon1 := deg2rad(p.Lon)
	brng := deg2rad(bearingDeg)
	d := distanceKm / EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	lon := math.Mod(rad2deg(lon2)+540, 360) - 180
	return Point{Lat: rad2deg(lat2), Lon: lon}
}

// NormalizeHeading wraps any angle into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// RadiusNMFromKm converts a search radius in km to the rounded nautical-mile value
// accepted by the dist endpoints, clamped to [MinRadiusNM, MaxRadiusNM].
// A non-positive radius returns 0.
func RadiusNMFromKm(km float64) int {
	if km <= 0 {
		return 0
	}
	nm := int(km*KmToNM + 0.5)
	if nm < MinRadiusNM {
		nm = MinRadiusNM
	}
	if nm > MaxRadiusNM {
		nm = MaxRadiusNM
	}
	return nm
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Outside the model's validity window
		return 0.0
	}

	return mag.D()
}

// MagneticBearing converts a true bearing observed at p into a magnetic bearing
func MagneticBearing(trueBearing float64, p Point, date time.Time) float64 {
	return NormalizeHeading(trueBearing - CalculateMagneticVariation(p.Lat, p.Lon, 0, date))
}
