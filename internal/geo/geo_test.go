package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecOps(t *testing.T) {
	a, b := V(3, 4), V(1, 1)

	assert.Equal(t, V(4, 5), a.Add(b))
	assert.Equal(t, V(2, 3), a.Sub(b))
	assert.Equal(t, V(6, 8), a.Scale(2))
	assert.InDelta(t, 5.0, a.Len(), 1e-9)
	assert.InDelta(t, 5.0, Zero.Dist(a), 1e-9)
	assert.Equal(t, "(3, 4)", a.String())
}

func TestToward(t *testing.T) {
	from, to := V(0, 0), V(300, 400)

	assert.Equal(t, to, from.Toward(to, 1000), "no overshoot")
	mid := from.Toward(to, 250)
	assert.InDelta(t, 150.0, mid.X, 1e-9)
	assert.InDelta(t, 200.0, mid.Y, 1e-9)
	assert.Equal(t, to, to.Toward(to, 0))
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is ~111.2 km.
	d := Haversine(LatLon{Lat: 49, Lon: 0}, LatLon{Lat: 50, Lon: 0})
	assert.InDelta(t, 111195, d, 10)

	assert.Zero(t, Haversine(LatLon{Lat: 49.3, Lon: -0.8}, LatLon{Lat: 49.3, Lon: -0.8}))
}

func TestProjectorRoundTrip(t *testing.T) {
	p, err := NewProjector(LatLon{Lat: 49.3, Lon: -0.8})
	require.NoError(t, err)

	c := LatLon{Lat: 49.35, Lon: -0.72}
	back := p.ToLatLon(p.ToXY(c))
	assert.InDelta(t, c.Lat, back.Lat, 1e-9)
	assert.InDelta(t, c.Lon, back.Lon, 1e-9)

	assert.Equal(t, Zero, p.ToXY(p.Origin))
}

func TestProjectorAgreesWithHaversineLocally(t *testing.T) {
	p, err := NewProjector(LatLon{Lat: 49.3, Lon: -0.8})
	require.NoError(t, err)

	c := LatLon{Lat: 49.32, Lon: -0.77}
	planar := p.ToXY(c).Len()
	assert.InEpsilon(t, Haversine(p.Origin, c), planar, 0.001)
}

func TestNewProjector_Invalid(t *testing.T) {
	_, err := NewProjector(LatLon{Lat: 91})
	assert.Error(t, err)
	_, err = NewProjector(LatLon{Lat: 90})
	assert.Error(t, err)
}
