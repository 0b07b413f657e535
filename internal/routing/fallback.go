// Package routing orders one day's visits per technician, preferring an
// external route-optimization service and degrading to a deterministic
// estimate when the service cannot be used.
package routing

import (
	"math"
	"time"

	"github.com/visitops/backend/internal/geo"
	"github.com/visitops/backend/internal/models"
)

const (
	workDayStart = "08:00:00"
	workDayEnd   = "18:00:00"

	// averageSpeedKmh is the assumed urban driving speed for estimated
	// travel times.
	averageSpeedKmh = 40.0
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildFallbackRoute sequences the clients in the order given, starting from
// the technician's home at 08:00 and estimating travel at the average driving
// speed. Each ETA advances by the leg's travel time plus the previous stop's
// service duration.
func BuildFallbackRoute(date string, tech models.Technician, clients []models.Client) models.Route {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		day = time.Now().UTC().Truncate(24 * time.Hour)
	}
	clock := time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, time.UTC)

	stops := make([]models.RouteStop, len(clients))
	prev := geo.Point{Lat: tech.Lat, Lon: tech.Lon}
	totalKm := 0.0
	travelMinutes := 0.0
	serviceMinutes := 0
	for i, c := range clients {
		here := geo.Point{Lat: c.Lat, Lon: c.Lon}
		legKm := geo.DistanceKm(prev, here)
		legMinutes := legKm / averageSpeedKmh * 60

		clock = clock.Add(time.Duration(legMinutes * float64(time.Minute)))
		stops[i] = models.RouteStop{
			ClientID:   c.ID,
			StopOrder:  i + 1,
			ETA:        clock,
			LegKm:      round2(legKm),
			LegMinutes: int(math.Round(legMinutes)),
		}
		clock = clock.Add(time.Duration(c.ServiceMinutes) * time.Minute)

		totalKm += legKm
		travelMinutes += legMinutes
		serviceMinutes += c.ServiceMinutes
		prev = here
	}

	return models.Route{
		TechnicianID: tech.ID,
		Date:         date,
		TotalKm:      round2(totalKm),
		TotalMinutes: int(math.Round(travelMinutes + float64(serviceMinutes))),
		Optimized:    false,
		Stops:        stops,
	}
}
