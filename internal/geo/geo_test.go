package geo

import (
	"math"
	"testing"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	p := Point{Lat: -23.5505, Lon: -46.6333}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0 for identical points, got %f", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := Point{Lat: -23.5505, Lon: -46.6333}
	b := Point{Lat: -23.5614, Lon: -46.6565}
	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %f and %f", d1, d2)
	}
}

func TestDistanceKmKnownPair(t *testing.T) {
	// one degree of longitude on the equator is about 111.19 km
	a := Point{Lat: 0, Lon: 0}
	b := Point{Lat: 0, Lon: 1}
	d := DistanceKm(a, b)
	if d < 111 || d > 111.4 {
		t.Fatalf("expected roughly 111.19 km, got %f", d)
	}
}

func TestBuildMatrixShape(t *testing.T) {
	homes := []Point{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}
	clients := []Point{{Lat: 0, Lon: 1}, {Lat: 0, Lon: 2}, {Lat: 0, Lon: 3}}

	m := BuildMatrix(homes, clients)
	if len(m) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m))
	}
	for i, row := range m {
		if len(row) != 3 {
			t.Fatalf("expected 3 columns in row %d, got %d", i, len(row))
		}
	}
	if m[0][0] != DistanceKm(homes[0], clients[0]) {
		t.Fatalf("matrix entry does not match direct distance")
	}
}

func TestRouteLengthKmEmpty(t *testing.T) {
	if d := RouteLengthKm(Point{Lat: 1, Lon: 1}, nil); d != 0 {
		t.Fatalf("expected 0 for empty route, got %f", d)
	}
}

func TestRouteLengthKmRoundTrip(t *testing.T) {
	home := Point{Lat: 0, Lon: 0}
	stop := Point{Lat: 0, Lon: 1}
	oneWay := DistanceKm(home, stop)
	total := RouteLengthKm(home, []Point{stop})
	if math.Abs(total-2*oneWay) > 1e-9 {
		t.Fatalf("expected out-and-back distance %f, got %f", 2*oneWay, total)
	}
}
