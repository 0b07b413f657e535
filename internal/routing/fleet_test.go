package routing

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/geo"
	"github.com/visitops/backend/internal/models"
)

func fleetFixture() (models.Technician, []models.Client) {
	tech := models.Technician{ID: "t1", Lat: -23.55, Lon: -46.63}
	clients := []models.Client{
		{ID: "c1", Lat: -23.56, Lon: -46.64, ServiceMinutes: 30, OpeningHour: "8:00", ClosingHour: "18:00"},
		{ID: "c2", Lat: -23.57, Lon: -46.65, ServiceMinutes: 45},
	}
	return tech, clients
}

func TestFleetAPIRequestShape(t *testing.T) {
	var got optimizeToursRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(optimizeToursResponse{Routes: []tourRoute{{
			Visits: []tourVisit{{ShipmentIndex: intPtr(0), StartTime: "2026-03-02T08:20:00Z"}},
		}}})
	}))
	defer srv.Close()

	tech, clients := fleetFixture()
	api := &FleetAPI{BaseURL: srv.URL, Parent: "projects/demo", Logger: zerolog.Nop()}
	if _, err := api.OptimizeTour(context.Background(), "2026-03-02", tech, clients); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if got.Parent != "projects/demo" {
		t.Fatalf("expected parent in request, got %q", got.Parent)
	}
	if len(got.Model.Shipments) != 2 {
		t.Fatalf("expected one shipment per client, got %d", len(got.Model.Shipments))
	}
	if got.Model.Shipments[0].Label != "c1" || got.Model.Shipments[0].Deliveries[0].Duration != "1800s" {
		t.Fatalf("unexpected first shipment %+v", got.Model.Shipments[0])
	}
	tw := got.Model.Shipments[0].Deliveries[0].TimeWindows
	if len(tw) != 1 || tw[0].StartTime != "2026-03-02T08:00:00Z" || tw[0].EndTime != "2026-03-02T18:00:00Z" {
		t.Fatalf("unexpected time window %+v", tw)
	}
	if len(got.Model.Shipments[1].Deliveries[0].TimeWindows) != 0 {
		t.Fatalf("expected no window when hours are absent")
	}
	if len(got.Model.Vehicles) != 1 || got.Model.Vehicles[0].Label != "t1" || got.Model.Vehicles[0].TravelMode != "DRIVING" {
		t.Fatalf("unexpected vehicle %+v", got.Model.Vehicles)
	}
	if got.Model.GlobalStartTime != "2026-03-02T08:00:00Z" || got.Model.GlobalEndTime != "2026-03-02T18:00:00Z" {
		t.Fatalf("unexpected global window %s - %s", got.Model.GlobalStartTime, got.Model.GlobalEndTime)
	}
}

func TestFleetAPIParsesOptimizedRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(optimizeToursResponse{Routes: []tourRoute{{
			Visits: []tourVisit{
				{ShipmentIndex: intPtr(1), StartTime: "2026-03-02T08:20:00Z"},
				{ShipmentLabel: "c1", StartTime: "2026-03-02T09:30:00Z"},
				{ShipmentLabel: "ghost", StartTime: "2026-03-02T10:00:00Z"},
			},
			Metrics: &tourRouteMetrics{TravelDuration: "3600s", TravelDistanceMeters: 12500},
		}}})
	}))
	defer srv.Close()

	tech, clients := fleetFixture()
	api := &FleetAPI{BaseURL: srv.URL, Parent: "projects/demo", Logger: zerolog.Nop()}
	route, err := api.OptimizeTour(context.Background(), "2026-03-02", tech, clients)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if !route.Optimized {
		t.Fatalf("expected optimized route")
	}
	// unresolved label dropped, remaining stops renumbered contiguously
	if len(route.Stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(route.Stops))
	}
	if route.Stops[0].ClientID != "c2" || route.Stops[0].StopOrder != 1 {
		t.Fatalf("unexpected first stop %+v", route.Stops[0])
	}
	if route.Stops[1].ClientID != "c1" || route.Stops[1].StopOrder != 2 {
		t.Fatalf("unexpected second stop %+v", route.Stops[1])
	}
	if route.Stops[0].ETA.Hour() != 8 || route.Stops[0].ETA.Minute() != 20 {
		t.Fatalf("unexpected ETA %v", route.Stops[0].ETA)
	}
	if route.TotalKm != 12.5 {
		t.Fatalf("expected 12.5 km from metrics, got %f", route.TotalKm)
	}
	if route.TotalMinutes != 60 {
		t.Fatalf("expected 60 minutes from metrics, got %d", route.TotalMinutes)
	}
	if route.Stops[0].LegKm <= 0 {
		t.Fatalf("expected computed leg distance, got %f", route.Stops[0].LegKm)
	}
	legKm := geo.DistanceKm(geo.Point{Lat: tech.Lat, Lon: tech.Lon}, geo.Point{Lat: clients[1].Lat, Lon: clients[1].Lon})
	if want := int(math.Round(legKm / 40 * 60)); route.Stops[0].LegMinutes != want {
		t.Fatalf("expected rounded leg minutes %d, got %d", want, route.Stops[0].LegMinutes)
	}
}

func TestFleetAPINoUsableVisits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(optimizeToursResponse{Routes: []tourRoute{{
			Visits: []tourVisit{{ShipmentLabel: "ghost", StartTime: "2026-03-02T10:00:00Z"}},
		}}})
	}))
	defer srv.Close()

	tech, clients := fleetFixture()
	api := &FleetAPI{BaseURL: srv.URL, Logger: zerolog.Nop()}
	if _, err := api.OptimizeTour(context.Background(), "2026-03-02", tech, clients); err == nil {
		t.Fatalf("expected error when no visit resolves")
	}
}

func TestFleetAPIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tech, clients := fleetFixture()
	api := &FleetAPI{BaseURL: srv.URL, Logger: zerolog.Nop()}
	if _, err := api.OptimizeTour(context.Background(), "2026-03-02", tech, clients); err == nil {
		t.Fatalf("expected error on 429 response")
	}
}

func intPtr(i int) *int { return &i }
