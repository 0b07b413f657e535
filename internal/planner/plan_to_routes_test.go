package planner

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/models"
	"github.com/visitops/backend/internal/routing"
)

// The planner's per-day output feeds straight into daily sequencing: every
// technician with at least one client that day gets exactly one route, and
// days without assignments produce none.
func TestPlanFeedsDailySequencing(t *testing.T) {
	technicians := []models.Technician{
		{ID: "t1", Lat: -23.5505, Lon: -46.6333, DailyCapacity: 1},
		{ID: "t2", Lat: -23.5614, Lon: -46.6565, DailyCapacity: 1},
	}
	clients := []models.Client{
		{ID: "c1", Lat: -23.55, Lon: -46.64, MonthlyVisits: 1, ServiceMinutes: 30},
		{ID: "c2", Lat: -23.56, Lon: -46.65, MonthlyVisits: 1, ServiceMinutes: 45},
	}
	dates := []string{"2026-03-02", "2026-03-03"}

	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Technicians:  technicians,
		Clients:      clients,
		WorkingDates: dates,
	}, Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(res.UnmetClients) != 0 {
		t.Fatalf("expected all demand met, got %v", res.UnmetClients)
	}

	techByID := map[string]models.Technician{}
	for _, tech := range technicians {
		techByID[tech.ID] = tech
	}
	clientByID := map[string]models.Client{}
	for _, c := range clients {
		clientByID[c.ID] = c
	}

	seq := routing.Sequencer{Logger: zerolog.Nop()}
	for day := 1; day <= len(dates); day++ {
		var groups []routing.TechnicianDay
		loaded := 0
		for _, a := range res.ByDay[day] {
			g := routing.TechnicianDay{Technician: techByID[a.TechnicianID]}
			for _, id := range a.ClientIDs {
				g.Clients = append(g.Clients, clientByID[id])
			}
			groups = append(groups, g)
			if len(g.Clients) > 0 {
				loaded++
			}
		}

		out := seq.BuildDay(context.Background(), dates[day-1], groups)
		if len(out.Routes) != loaded {
			t.Fatalf("day %d: expected %d routes, got %d", day, loaded, len(out.Routes))
		}

		routed := map[string]int{}
		for _, r := range out.Routes {
			routed[r.TechnicianID]++
			if r.Date != dates[day-1] {
				t.Fatalf("day %d: route dated %s", day, r.Date)
			}
		}
		for _, a := range res.ByDay[day] {
			if len(a.ClientIDs) == 0 {
				continue
			}
			if routed[a.TechnicianID] != 1 {
				t.Fatalf("day %d: expected one route for %s, got %d", day, a.TechnicianID, routed[a.TechnicianID])
			}
			var stops int
			for _, r := range out.Routes {
				if r.TechnicianID == a.TechnicianID {
					stops = len(r.Stops)
				}
			}
			if stops != len(a.ClientIDs) {
				t.Fatalf("day %d: %s has %d stops for %d planned visits", day, a.TechnicianID, stops, len(a.ClientIDs))
			}
		}
	}
}
