package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forwardMercator - прямая проекция WGS 84 -> EPSG:3857 для подготовки тестовых данных.
func forwardMercator(lon, lat float64) (x, y float64) {
	x = lon * math.Pi / 180 * earthRadius
	y = math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * earthRadius
	return
}

func TestTransformPoint_RoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		lon, lat float64
	}{
		{"Москва", 37.6173, 55.7558},
		{"Калининград", 20.4522, 54.7104},
		{"нулевой меридиан", 0, 0},
		{"западное полушарие", -73.9857, 40.7484},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := forwardMercator(tc.lon, tc.lat)
			p := TransformPoint(x, y)
			assert.InDelta(t, tc.lon, p[0], 1e-9)
			assert.InDelta(t, tc.lat, p[1], 1e-9)
		})
	}
}

func TestTransformRings_PreservesStructure(t *testing.T) {
	x1, y1 := forwardMercator(20.0, 54.0)
	x2, y2 := forwardMercator(20.1, 54.0)
	x3, y3 := forwardMercator(20.1, 54.1)

	raw := [][][2]float64{
		{{x1, y1}, {x2, y2}, {x3, y3}, {x1, y1}}, // внешний контур
		{{x2, y2}, {x3, y3}, {x2, y2}},           // отверстие
	}

	rings := TransformRings(raw)
	require.Len(t, rings, 2)
	require.Len(t, rings[0], 4)
	require.Len(t, rings[1], 3)

	// Замыкающая вершина остается дубликатом первой.
	assert.Equal(t, rings[0][0], rings[0][3])
	assert.InDelta(t, 20.0, rings[0][0][0], 1e-9)
	assert.InDelta(t, 54.1, rings[0][2][1], 1e-9)
}

func TestCentroid_ExcludesClosingVertex(t *testing.T) {
	// Треугольник с замыкающей вершиной: среднее трех различных вершин,
	// а не четырех точек списка.
	rings := Rings{{{0, 0}, {0, 2}, {2, 0}, {0, 0}}}

	c, ok := Centroid(rings)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, c[0], 1e-12)
	assert.InDelta(t, 2.0/3.0, c[1], 1e-12)
}

func TestCentroid_DegenerateRing(t *testing.T) {
	_, ok := Centroid(Rings{})
	assert.False(t, ok)

	_, ok = Centroid(Rings{{}})
	assert.False(t, ok)

	_, ok = Centroid(Rings{{{10, 20}}})
	assert.False(t, ok, "контур из одной точки без замыкания вырожден")

	// Минимальный валидный случай: одна различная вершина плюс замыкающая.
	c, ok := Centroid(Rings{{{10, 20}, {10, 20}}})
	require.True(t, ok)
	assert.Equal(t, Point{10, 20}, c)
}

func TestReorder_Symmetric(t *testing.T) {
	p := Point{20.4522, 54.7104}

	swapped := ReorderPoint(p, OrderLatLon)
	assert.Equal(t, Point{54.7104, 20.4522}, swapped)

	// Повторная перестановка возвращает исходную пару.
	back := Point{swapped[1], swapped[0]}
	assert.Equal(t, p, back)

	assert.Equal(t, p, ReorderPoint(p, OrderLonLat), "порядок по умолчанию не меняет точку")
}

func TestReorderRings(t *testing.T) {
	rings := Rings{{{1, 2}, {3, 4}, {1, 2}}}
	out := ReorderRings(rings, OrderLatLon)
	assert.Equal(t, Rings{{{2, 1}, {4, 3}, {2, 1}}}, out)
	assert.Equal(t, rings, ReorderRings(rings, OrderLonLat))
}
