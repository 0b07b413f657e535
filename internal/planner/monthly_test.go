package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/milp"
	"github.com/visitops/backend/internal/models"
	"github.com/visitops/backend/internal/solver"
)

// greedySolver produces a feasible integer solution straight from the model
// structure: it fills each demand constraint left to right while honoring
// every upper-bound constraint, and routes leftover demand into the slack
// variable.
type greedySolver struct{}

func (greedySolver) Solve(_ context.Context, m *milp.Model) (solver.Result, error) {
	type budget struct {
		rhs  int
		used int
	}
	budgetsByVar := make(map[string][]*budget)
	for _, c := range m.Constraints() {
		if c.Op != "<=" {
			continue
		}
		b := &budget{rhs: c.RHS}
		for _, v := range c.Vars {
			budgetsByVar[v] = append(budgetsByVar[v], b)
		}
	}

	cols := make(map[string]float64, m.NumVariables())
	for _, c := range m.Constraints() {
		if c.Op != ">=" {
			continue
		}
		need := c.RHS
		for _, v := range c.Vars {
			if strings.HasPrefix(v, "u") {
				cols[v] = float64(need)
				continue
			}
			if need == 0 || cols[v] > 0.5 {
				continue
			}
			blocked := false
			for _, b := range budgetsByVar[v] {
				if b.used >= b.rhs {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			cols[v] = 1
			for _, b := range budgetsByVar[v] {
				b.used++
			}
			need--
		}
	}
	return solver.Result{Status: solver.StatusOptimal, Columns: cols}, nil
}

type failingSolver struct{}

func (failingSolver) Solve(context.Context, *milp.Model) (solver.Result, error) {
	return solver.Result{Status: solver.StatusError}, errors.New("solver crashed")
}

func testPlanner(s solver.Adapter) *Planner {
	return &Planner{Solver: s, Logger: zerolog.Nop()}
}

func someTechnicians() []models.Technician {
	return []models.Technician{
		{ID: "t1", Lat: -23.5505, Lon: -46.6333, DailyCapacity: 5},
		{ID: "t2", Lat: -23.5614, Lon: -46.6565, DailyCapacity: 5},
	}
}

func someClients() []models.Client {
	return []models.Client{
		{ID: "c1", Lat: -23.55, Lon: -46.64, MonthlyVisits: 2},
		{ID: "c2", Lat: -23.56, Lon: -46.65, MonthlyVisits: 1},
	}
}

func TestPlanMeetsDemand(t *testing.T) {
	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Technicians:  someTechnicians(),
		Clients:      someClients(),
		WorkingDates: []string{"2026-03-02", "2026-03-03", "2026-03-04"},
	}, Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(res.UnmetClients) != 0 {
		t.Fatalf("expected no unmet clients, got %v", res.UnmetClients)
	}
	total := 0
	for day, assignments := range res.ByDay {
		seen := map[string]bool{}
		for _, a := range assignments {
			for _, id := range a.ClientIDs {
				if seen[id] {
					t.Fatalf("client %s visited twice on day %d", id, day)
				}
				seen[id] = true
				total++
			}
		}
	}
	if total != 3 {
		t.Fatalf("expected 3 scheduled visits, got %d", total)
	}
	if res.Statistics.Status != string(solver.StatusOptimal) {
		t.Fatalf("unexpected status %s", res.Statistics.Status)
	}
	if res.Statistics.Variables == 0 || res.Statistics.Constraints == 0 {
		t.Fatalf("expected model size in statistics")
	}
}

func TestPlanRespectsCapacity(t *testing.T) {
	technicians := []models.Technician{{ID: "t1", DailyCapacity: 1}}
	clients := []models.Client{
		{ID: "c1", MonthlyVisits: 1},
		{ID: "c2", MonthlyVisits: 1},
		{ID: "c3", MonthlyVisits: 1},
	}

	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Technicians:  technicians,
		Clients:      clients,
		WorkingDates: []string{"2026-03-02", "2026-03-03"},
	}, Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	for day, assignments := range res.ByDay {
		for _, a := range assignments {
			if len(a.ClientIDs) > 1 {
				t.Fatalf("capacity 1 exceeded on day %d: %v", day, a.ClientIDs)
			}
		}
	}
	if len(res.UnmetClients) != 1 {
		t.Fatalf("expected exactly one unmet client, got %v", res.UnmetClients)
	}
	d := res.UnmetDetails[res.UnmetClients[0]]
	if d.Required != 1 || d.Scheduled != 0 {
		t.Fatalf("unexpected unmet detail %+v", d)
	}
}

func TestPlanAppliesEmergencyReserve(t *testing.T) {
	technicians := []models.Technician{{ID: "t1", DailyCapacity: 5}}
	clients := make([]models.Client, 5)
	for i := range clients {
		clients[i] = models.Client{ID: string(rune('a' + i)), MonthlyVisits: 1}
	}

	// floor(5 * 0.8) = 4 effective slots on the single working day
	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Technicians:  technicians,
		Clients:      clients,
		WorkingDates: []string{"2026-03-02"},
	}, Options{EmergencyReserve: 0.2})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	scheduled := 0
	for _, assignments := range res.ByDay {
		for _, a := range assignments {
			scheduled += len(a.ClientIDs)
		}
	}
	if scheduled != 4 {
		t.Fatalf("expected 4 scheduled visits with reserve, got %d", scheduled)
	}
	if len(res.UnmetClients) != 1 {
		t.Fatalf("expected 1 unmet client, got %v", res.UnmetClients)
	}
}

func TestPlanHonorsUnavailability(t *testing.T) {
	technicians := []models.Technician{{ID: "t1", DailyCapacity: 5}}
	clients := []models.Client{{ID: "c1", MonthlyVisits: 2}}

	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Technicians:  technicians,
		Clients:      clients,
		WorkingDates: []string{"2026-03-02", "2026-03-03"},
	}, Options{Unavailability: map[string][]int{"t1": {1}}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if _, ok := res.ByDay[1]; ok {
		t.Fatalf("expected no assignments on the unavailable day")
	}
	if len(res.ByDay[2]) != 1 {
		t.Fatalf("expected assignments on day 2, got %+v", res.ByDay)
	}
	// one visit per client per day leaves the second required visit unmet
	d := res.UnmetDetails["c1"]
	if d.Required != 2 || d.Scheduled != 1 {
		t.Fatalf("unexpected unmet detail %+v", d)
	}
}

func TestPlanNoTechnicians(t *testing.T) {
	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Clients:      someClients(),
		WorkingDates: []string{"2026-03-02"},
	}, Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if res.Statistics.Status != StatusNoTechnicians {
		t.Fatalf("expected NO_TECHNICIANS, got %s", res.Statistics.Status)
	}
	if len(res.UnmetClients) != 2 {
		t.Fatalf("expected every client unmet, got %v", res.UnmetClients)
	}
}

func TestPlanNoClients(t *testing.T) {
	res, err := testPlanner(greedySolver{}).Plan(context.Background(), Input{
		Technicians:  someTechnicians(),
		WorkingDates: []string{"2026-03-02", "2026-03-03"},
	}, Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if res.Statistics.Status != string(solver.StatusOptimal) {
		t.Fatalf("expected OPTIMAL, got %s", res.Statistics.Status)
	}
	if len(res.ByDay) != 2 {
		t.Fatalf("expected an entry per working day, got %d", len(res.ByDay))
	}
	for day, assignments := range res.ByDay {
		if len(assignments) != 2 {
			t.Fatalf("expected every technician listed on day %d", day)
		}
		for _, a := range assignments {
			if len(a.ClientIDs) != 0 {
				t.Fatalf("expected empty client list, got %v", a.ClientIDs)
			}
		}
	}
}

func TestPlanSolverFailureDegrades(t *testing.T) {
	res, err := testPlanner(failingSolver{}).Plan(context.Background(), Input{
		Technicians:  someTechnicians(),
		Clients:      someClients(),
		WorkingDates: []string{"2026-03-02"},
	}, Options{})
	if err != nil {
		t.Fatalf("expected degraded result, not error: %v", err)
	}
	if res.Statistics.Status != string(solver.StatusError) {
		t.Fatalf("expected ERROR status, got %s", res.Statistics.Status)
	}
	if len(res.UnmetClients) != 2 {
		t.Fatalf("expected all demand unmet, got %v", res.UnmetClients)
	}
	if len(res.ByDay) != 0 {
		t.Fatalf("expected no assignments, got %+v", res.ByDay)
	}
}

func TestPlanInputValidation(t *testing.T) {
	p := testPlanner(greedySolver{})

	if _, err := p.Plan(context.Background(), Input{Technicians: someTechnicians(), Clients: someClients()}, Options{}); !errors.Is(err, ErrNoWorkingDays) {
		t.Fatalf("expected ErrNoWorkingDays, got %v", err)
	}
	if _, err := p.Plan(context.Background(), Input{
		Technicians:  someTechnicians(),
		Clients:      someClients(),
		WorkingDates: []string{"2026-03-02"},
	}, Options{EmergencyReserve: 1}); !errors.Is(err, ErrBadReserve) {
		t.Fatalf("expected ErrBadReserve, got %v", err)
	}
	if _, err := p.Plan(context.Background(), Input{
		Technicians:  []models.Technician{{ID: ""}},
		WorkingDates: []string{"2026-03-02"},
	}, Options{}); err == nil {
		t.Fatalf("expected error for empty technician id")
	}
}
