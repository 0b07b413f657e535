package geo

import "math"

const earthRadiusKm = 6371.0

type Point struct {
	Lat float64
	Lon float64
}

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLon := degreesToRadians(b.Lon - a.Lon)

	latA := degreesToRadians(a.Lat)
	latB := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(latA)*math.Cos(latB)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// BuildMatrix returns matrix[t][c] = distance in km from technician home t to
// client c.
func BuildMatrix(homes, clients []Point) [][]float64 {
	matrix := make([][]float64, len(homes))
	for t, home := range homes {
		row := make([]float64, len(clients))
		for c, client := range clients {
			row[c] = DistanceKm(home, client)
		}
		matrix[t] = row
	}
	return matrix
}

// RouteLengthKm sums the legs of a route that starts at home, visits the stops
// in order, and returns home. Used for route cost estimates only.
func RouteLengthKm(home Point, stops []Point) float64 {
	if len(stops) == 0 {
		return 0
	}
	total := 0.0
	current := home
	for _, stop := range stops {
		total += DistanceKm(current, stop)
		current = stop
	}
	total += DistanceKm(current, home)
	return total
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}
