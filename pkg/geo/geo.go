// Пакет geo приводит геометрию геопортала (проекция Web Mercator, EPSG:3857)
// к географическим координатам WGS 84 (EPSG:4326).
package geo

import "math"

// Радиус сферы Web Mercator в метрах.
const earthRadius = 6378137.0

// Order - порядок компонент в итоговых координатах.
type Order string

const (
	// OrderLonLat - долгота, широта (стандарт WGS 84).
	OrderLonLat Order = "lon,lat"
	// OrderLatLon - широта, долгота (ожидают Яндекс.Карты и подобные виджеты).
	OrderLatLon Order = "lat,lon"
)

// Point - координатная пара. До Reorder всегда [долгота, широта].
type Point [2]float64

// Ring - замкнутый контур полигона: первая и последняя вершины совпадают.
type Ring []Point

// Rings - внешний контур полигона плюс контуры отверстий.
type Rings []Ring

// TransformPoint переводит точку из проекции EPSG:3857 (метры) в WGS 84 (градусы).
func TransformPoint(x, y float64) Point {
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return Point{lon, lat}
}

// TransformRings применяет TransformPoint к каждой вершине каждого контура,
// сохраняя структуру контуров и порядок вершин, включая замыкающую вершину.
func TransformRings(raw [][][2]float64) Rings {
	rings := make(Rings, 0, len(raw))
	for _, rawRing := range raw {
		ring := make(Ring, 0, len(rawRing))
		for _, vertex := range rawRing {
			ring = append(ring, TransformPoint(vertex[0], vertex[1]))
		}
		rings = append(rings, ring)
	}
	return rings
}

// Centroid вычисляет среднее арифметическое вершин внешнего контура.
// Замыкающая вершина (дубликат первой) в среднем не участвует.
// Для вырожденного контура возвращает ok=false.
func Centroid(rings Rings) (Point, bool) {
	if len(rings) == 0 {
		return Point{}, false
	}
	outer := rings[0]
	n := len(outer) - 1
	if n < 1 {
		return Point{}, false
	}
	var sumLon, sumLat float64
	for _, p := range outer[:n] {
		sumLon += p[0]
		sumLat += p[1]
	}
	return Point{sumLon / float64(n), sumLat / float64(n)}, true
}

// ReorderPoint меняет порядок компонент точки на указанный.
// Исходный порядок всегда lon,lat; для OrderLonLat точка возвращается как есть.
func ReorderPoint(p Point, order Order) Point {
	if order == OrderLatLon {
		return Point{p[1], p[0]}
	}
	return p
}

// ReorderRings применяет ReorderPoint к каждой вершине каждого контура.
func ReorderRings(rings Rings, order Order) Rings {
	if order != OrderLatLon {
		return rings
	}
	out := make(Rings, 0, len(rings))
	for _, ring := range rings {
		reordered := make(Ring, 0, len(ring))
		for _, p := range ring {
			reordered = append(reordered, ReorderPoint(p, order))
		}
		out = append(out, reordered)
	}
	return out
}
