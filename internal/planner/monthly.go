// Package planner turns technicians, clients, and a working-day horizon into
// a day-by-day visit schedule by building and solving the assignment model.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/visitops/backend/internal/geo"
	"github.com/visitops/backend/internal/milp"
	"github.com/visitops/backend/internal/models"
	"github.com/visitops/backend/internal/solver"
)

const (
	// StatusNoTechnicians marks a run short-circuited before the solver
	// because there was nobody to schedule.
	StatusNoTechnicians = "NO_TECHNICIANS"

	DefaultEmergencyReserve = 0.2
)

var (
	ErrNoWorkingDays = errors.New("planner: at least one working day required")
	ErrBadReserve    = errors.New("planner: emergency reserve must be in [0, 1)")
)

type Input struct {
	Technicians  []models.Technician
	Clients      []models.Client
	WorkingDates []string
	// DistanceMatrix, when set, is used instead of recomputing haversine
	// distances. Shape must be [technician][client].
	DistanceMatrix [][]float64
}

type Options struct {
	// EmergencyReserve is the capacity fraction withheld for unplanned
	// work; each technician plans with floor(capacity * (1 - reserve)).
	EmergencyReserve float64
	// Unavailability maps technician id to 1-based day indices within the
	// horizon on which that technician cannot work.
	Unavailability map[string][]int
	SolveTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{EmergencyReserve: DefaultEmergencyReserve}
}

type DayAssignment struct {
	TechnicianID string   `json:"technician"`
	ClientIDs    []string `json:"clients"`
}

type UnmetDetail struct {
	Required  int `json:"required"`
	Scheduled int `json:"scheduled"`
}

type Statistics struct {
	TotalDistanceKm float64       `json:"total_distance_km"`
	Status          string        `json:"status"`
	SolveTime       time.Duration `json:"solve_time"`
	Variables       int           `json:"variables,omitempty"`
	Constraints     int           `json:"constraints,omitempty"`
}

type Result struct {
	// ByDay maps the 1-based working-day index to that day's assignments.
	ByDay        map[int][]DayAssignment `json:"by_day"`
	UnmetClients []string                `json:"unmet_clients"`
	UnmetDetails map[string]UnmetDetail  `json:"unmet_details,omitempty"`
	Statistics   Statistics              `json:"statistics"`
}

type Planner struct {
	Solver solver.Adapter
	Logger zerolog.Logger
}

// Plan validates the input, applies the emergency reserve, solves the
// assignment model, and decodes the solution. Solver failures never surface
// as errors; they degrade into an ERROR-status result with all demand unmet.
// The input entities are never mutated.
func (p *Planner) Plan(ctx context.Context, input Input, opts Options) (Result, error) {
	start := time.Now()

	if len(input.WorkingDates) == 0 {
		return Result{}, ErrNoWorkingDays
	}
	if opts.EmergencyReserve < 0 || opts.EmergencyReserve >= 1 {
		return Result{}, ErrBadReserve
	}
	for _, t := range input.Technicians {
		if t.ID == "" {
			return Result{}, errors.New("planner: technician with empty id")
		}
	}
	for _, c := range input.Clients {
		if c.ID == "" {
			return Result{}, errors.New("planner: client with empty id")
		}
	}

	days := len(input.WorkingDates)

	if len(input.Technicians) == 0 {
		return allUnmetResult(input, StatusNoTechnicians, time.Since(start)), nil
	}

	if len(input.Clients) == 0 {
		byDay := make(map[int][]DayAssignment, days)
		for d := 1; d <= days; d++ {
			assignments := make([]DayAssignment, 0, len(input.Technicians))
			for _, t := range input.Technicians {
				assignments = append(assignments, DayAssignment{TechnicianID: t.ID, ClientIDs: []string{}})
			}
			byDay[d] = assignments
		}
		return Result{
			ByDay:        byDay,
			UnmetClients: []string{},
			Statistics: Statistics{
				Status:    string(solver.StatusOptimal),
				SolveTime: time.Since(start),
			},
		}, nil
	}

	matrix := input.DistanceMatrix
	if matrix == nil {
		homes := make([]geo.Point, len(input.Technicians))
		for i, t := range input.Technicians {
			homes[i] = geo.Point{Lat: t.Lat, Lon: t.Lon}
		}
		points := make([]geo.Point, len(input.Clients))
		for i, c := range input.Clients {
			points[i] = geo.Point{Lat: c.Lat, Lon: c.Lon}
		}
		matrix = geo.BuildMatrix(homes, points)
	}

	// Planning copies only: the reserve never touches the stored capacity.
	milpTechs := make([]milp.Technician, len(input.Technicians))
	for i, t := range input.Technicians {
		milpTechs[i] = milp.Technician{
			ID:              t.ID,
			Capacity:        int(math.Floor(float64(t.DailyCapacity) * (1 - opts.EmergencyReserve))),
			UnavailableDays: opts.Unavailability[t.ID],
		}
	}
	milpClients := make([]milp.Client, len(input.Clients))
	for i, c := range input.Clients {
		milpClients[i] = milp.Client{ID: c.ID, Frequency: c.MonthlyVisits}
	}

	model, err := milp.Build(milpTechs, milpClients, days, matrix)
	if err != nil {
		return Result{}, fmt.Errorf("planner: %w", err)
	}

	solveCtx := ctx
	if opts.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, opts.SolveTimeout)
		defer cancel()
	}

	res, err := p.Solver.Solve(solveCtx, model)
	if err != nil || res.Status == solver.StatusError {
		p.Logger.Error().Err(err).Msg("assignment solve failed, reporting all demand unmet")
		out := allUnmetResult(input, string(solver.StatusError), time.Since(start))
		out.Statistics.Variables = model.NumVariables()
		out.Statistics.Constraints = model.NumConstraints()
		return out, nil
	}

	sol := model.Decode(res.Columns)

	byDay := make(map[int][]DayAssignment, days)
	perDayTech := make(map[int]map[string][]string)
	totalDistance := 0.0
	for _, pick := range sol.Picks {
		day := pick.Day + 1
		if perDayTech[day] == nil {
			perDayTech[day] = make(map[string][]string)
		}
		techID := input.Technicians[pick.Tech].ID
		perDayTech[day][techID] = append(perDayTech[day][techID], input.Clients[pick.Client].ID)
		totalDistance += matrix[pick.Tech][pick.Client]
	}
	for day := 1; day <= days; day++ {
		assignments := make([]DayAssignment, 0)
		// keep technician input order deterministic
		for _, t := range input.Technicians {
			if clients, ok := perDayTech[day][t.ID]; ok && len(clients) > 0 {
				assignments = append(assignments, DayAssignment{TechnicianID: t.ID, ClientIDs: clients})
			}
		}
		if len(assignments) > 0 {
			byDay[day] = assignments
		}
	}

	unmetClients := make([]string, 0)
	unmetDetails := make(map[string]UnmetDetail)
	for c, count := range sol.Unmet {
		id := input.Clients[c].ID
		required := input.Clients[c].MonthlyVisits
		unmetClients = append(unmetClients, id)
		unmetDetails[id] = UnmetDetail{Required: required, Scheduled: required - count}
	}
	sort.Strings(unmetClients)

	p.Logger.Info().
		Str("status", string(res.Status)).
		Int("assignments", len(sol.Picks)).
		Int("unmet_clients", len(unmetClients)).
		Dur("solve_time", time.Since(start)).
		Msg("monthly plan solved")

	return Result{
		ByDay:        byDay,
		UnmetClients: unmetClients,
		UnmetDetails: unmetDetails,
		Statistics: Statistics{
			TotalDistanceKm: math.Round(totalDistance*100) / 100,
			Status:          string(res.Status),
			SolveTime:       time.Since(start),
			Variables:       model.NumVariables(),
			Constraints:     model.NumConstraints(),
		},
	}, nil
}

func allUnmetResult(input Input, status string, elapsed time.Duration) Result {
	unmetClients := make([]string, 0, len(input.Clients))
	unmetDetails := make(map[string]UnmetDetail, len(input.Clients))
	for _, c := range input.Clients {
		unmetClients = append(unmetClients, c.ID)
		unmetDetails[c.ID] = UnmetDetail{Required: c.MonthlyVisits, Scheduled: 0}
	}
	return Result{
		ByDay:        map[int][]DayAssignment{},
		UnmetClients: unmetClients,
		UnmetDetails: unmetDetails,
		Statistics: Statistics{
			Status:    status,
			SolveTime: elapsed,
		},
	}
}
