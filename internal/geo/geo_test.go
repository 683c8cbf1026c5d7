package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_MoscowCenters(t *testing.T) {
	// Red Square area to Arbat area, known to be ~1.9 km apart.
	d := Distance(55.7558, 37.6176, 55.7522, 37.5936)
	assert.InDelta(t, 1.9, d, 0.1)
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	d := Distance(55.7558, 37.6176, 55.7558, 37.6176)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestDistance_Symmetric(t *testing.T) {
	a := Distance(55.7558, 37.6176, 59.9311, 30.3609)
	b := Distance(59.9311, 30.3609, 55.7558, 37.6176)
	assert.InDelta(t, a, b, 1e-9)
	// Moscow to Saint Petersburg is ~635 km.
	assert.InDelta(t, 635, a, 5)
}

func TestBox_ContainsRadius(t *testing.T) {
	lat, lng := 55.7558, 37.6176
	box := Box(lat, lng, 10)

	// Points right at the cardinal edges of the circle stay inside the box.
	north := lat + 10.0/111.0
	assert.LessOrEqual(t, north, box.MaxLat)
	east := lng + 10.0/(111.0*math.Cos(lat*math.Pi/180))
	assert.LessOrEqual(t, east, box.MaxLng)
	assert.GreaterOrEqual(t, lat-10.0/111.0, box.MinLat)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(55.7558, 37.6176))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
	assert.False(t, ValidCoordinates(math.NaN(), 0))
}
