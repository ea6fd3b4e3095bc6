package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in metres.
const EarthRadius = 6371000.0

// LatLon is a geographic coordinate in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the coordinate lies inside the usual ranges.
func (c LatLon) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Haversine returns the great-circle distance between a and b in metres.
func Haversine(a, b LatLon) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Projector maps between geographic coordinates and the local planar frame
// with an equirectangular projection about Origin. Good enough for a
// battlefield-sized area; error grows with distance from the origin.
type Projector struct {
	Origin LatLon
	cosLat float64
}

// NewProjector returns a projector centred on origin.
func NewProjector(origin LatLon) (*Projector, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("invalid projector origin: lat=%f, lon=%f", origin.Lat, origin.Lon)
	}
	if math.Abs(origin.Lat) == 90 {
		return nil, fmt.Errorf("projector origin at a pole")
	}
	return &Projector{Origin: origin, cosLat: math.Cos(origin.Lat * math.Pi / 180)}, nil
}

// ToXY projects c into the local frame.
func (p *Projector) ToXY(c LatLon) Vec {
	return Vec{
		X: (c.Lon - p.Origin.Lon) * math.Pi / 180 * EarthRadius * p.cosLat,
		Y: (c.Lat - p.Origin.Lat) * math.Pi / 180 * EarthRadius,
	}
}

// ToLatLon is the inverse of ToXY.
func (p *Projector) ToLatLon(v Vec) LatLon {
	return LatLon{
		Lat: p.Origin.Lat + v.Y/EarthRadius*180/math.Pi,
		Lon: p.Origin.Lon + v.X/(EarthRadius*p.cosLat)*180/math.Pi,
	}
}
