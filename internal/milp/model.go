// Package milp builds the monthly visit-assignment model.
//
// Sets: technicians t, clients c, working days d (0-based internally,
// 1-based at the API boundary).
//
// Variables:
//
//	x[t,c,d] in {0,1}  technician t visits client c on day d
//	unmet[c] in Z+     visits of client c the schedule could not place
//
// Objective:
//
//	minimize sum x[t,c,d]*round(distance[t][c]) + penalty*sum unmet[c]
//
// Constraints:
//
//	(1) sum_c x[t,c,d] <= capacity[t]                 per technician/day
//	(2) sum_{t,d} x[t,c,d] + unmet[c] >= frequency[c] per client
//	(3) sum_t x[t,c,d] <= 1                           per client/day
//
// Unavailability is enforced structurally: no x variable is created for a
// (t,d) pair in the technician's unavailable set.
package milp

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// UnmetPenalty dominates any feasible distance sum while staying small enough
// to keep the model numerically stable.
const UnmetPenalty = 100

var (
	ErrNoDays        = errors.New("milp: number of working days must be positive")
	ErrNoTechnicians = errors.New("milp: at least one technician required")
	ErrNoClients     = errors.New("milp: at least one client required")
	ErrMatrixShape   = errors.New("milp: distance matrix shape mismatch")
)

type Technician struct {
	ID       string
	Capacity int
	// UnavailableDays holds 1-based day indices within the horizon.
	UnavailableDays []int
}

type Client struct {
	ID        string
	Frequency int
}

type Term struct {
	Coef int
	Var  string
}

type Constraint struct {
	Name string
	Vars []string // unit coefficients
	Op   string   // "<=" or ">="
	RHS  int
}

type Bound struct {
	Var string
	Lo  int
	Up  int
}

// Pick is a decoded selected assignment, all indices 0-based.
type Pick struct {
	Tech   int
	Client int
	Day    int
}

type Solution struct {
	Picks []Pick
	// Unmet maps client index to the unplaced visit count.
	Unmet map[int]int
}

type Model struct {
	numTech    int
	numClients int
	numDays    int

	objective   []Term
	constraints []Constraint
	bounds      []Bound
	binary      []string
	general     []string

	// xIndex maps (t,c,d) to the compact x variable index; triples on
	// unavailable days are absent.
	xIndex map[[3]int]int
}

// Build constructs the assignment model. Distance is matrix[t][c] in km; the
// objective uses the nearest-integer rounding of each entry.
func Build(technicians []Technician, clients []Client, days int, distance [][]float64) (*Model, error) {
	if days <= 0 {
		return nil, ErrNoDays
	}
	if len(technicians) == 0 {
		return nil, ErrNoTechnicians
	}
	if len(clients) == 0 {
		return nil, ErrNoClients
	}
	if len(distance) != len(technicians) {
		return nil, ErrMatrixShape
	}
	for _, row := range distance {
		if len(row) != len(clients) {
			return nil, ErrMatrixShape
		}
	}

	m := &Model{
		numTech:    len(technicians),
		numClients: len(clients),
		numDays:    days,
		xIndex:     make(map[[3]int]int),
	}

	unavailable := unavailableSet(technicians)

	// x variables, compact indices skipping unavailable (t,d) pairs.
	next := 0
	for t := 0; t < m.numTech; t++ {
		for c := 0; c < m.numClients; c++ {
			for d := 0; d < days; d++ {
				if unavailable[[2]int{t, d}] {
					continue
				}
				m.xIndex[[3]int{t, c, d}] = next
				m.binary = append(m.binary, xName(next))
				next++
			}
		}
	}

	// unmet variables keep their own index space, one per client.
	for c := range clients {
		m.general = append(m.general, uName(c))
		m.bounds = append(m.bounds, Bound{Var: uName(c), Lo: 0, Up: clients[c].Frequency})
	}

	// Objective.
	for t := 0; t < m.numTech; t++ {
		for c := 0; c < m.numClients; c++ {
			coef := int(math.Round(distance[t][c]))
			if coef == 0 {
				continue
			}
			for d := 0; d < days; d++ {
				if idx, ok := m.xIndex[[3]int{t, c, d}]; ok {
					m.objective = append(m.objective, Term{Coef: coef, Var: xName(idx)})
				}
			}
		}
	}
	for c := range clients {
		m.objective = append(m.objective, Term{Coef: UnmetPenalty, Var: uName(c)})
	}

	count := 0

	// (1) daily capacity.
	for t := 0; t < m.numTech; t++ {
		for d := 0; d < days; d++ {
			if unavailable[[2]int{t, d}] {
				continue
			}
			vars := make([]string, 0, m.numClients)
			for c := 0; c < m.numClients; c++ {
				if idx, ok := m.xIndex[[3]int{t, c, d}]; ok {
					vars = append(vars, xName(idx))
				}
			}
			if len(vars) > 0 {
				m.constraints = append(m.constraints, Constraint{
					Name: fmt.Sprintf("cap%d", count),
					Vars: vars,
					Op:   "<=",
					RHS:  technicians[t].Capacity,
				})
				count++
			}
		}
	}

	// (2) frequency satisfaction.
	for c := 0; c < m.numClients; c++ {
		if clients[c].Frequency <= 0 {
			continue
		}
		var vars []string
		for t := 0; t < m.numTech; t++ {
			for d := 0; d < days; d++ {
				if idx, ok := m.xIndex[[3]int{t, c, d}]; ok {
					vars = append(vars, xName(idx))
				}
			}
		}
		vars = append(vars, uName(c))
		m.constraints = append(m.constraints, Constraint{
			Name: fmt.Sprintf("freq%d", count),
			Vars: vars,
			Op:   ">=",
			RHS:  clients[c].Frequency,
		})
		count++
	}

	// (3) at most one visit per client per day; only needed when more than
	// one technician is a candidate.
	for c := 0; c < m.numClients; c++ {
		for d := 0; d < days; d++ {
			var vars []string
			for t := 0; t < m.numTech; t++ {
				if idx, ok := m.xIndex[[3]int{t, c, d}]; ok {
					vars = append(vars, xName(idx))
				}
			}
			if len(vars) > 1 {
				m.constraints = append(m.constraints, Constraint{
					Name: fmt.Sprintf("one%d", count),
					Vars: vars,
					Op:   "<=",
					RHS:  1,
				})
				count++
			}
		}
	}

	return m, nil
}

// LP renders the model as CPLEX-LP text, the wire format of the solver
// collaborator. The binary list stays on a single line.
func (m *Model) LP() string {
	var b strings.Builder

	b.WriteString("MINIMIZE\n")
	if len(m.objective) == 0 {
		b.WriteString(" obj: 0\n")
	} else {
		terms := make([]string, len(m.objective))
		for i, t := range m.objective {
			terms[i] = fmt.Sprintf("%d %s", t.Coef, t.Var)
		}
		b.WriteString(" obj: " + strings.Join(terms, " + ") + "\n")
	}

	b.WriteString("SUBJECT TO\n")
	for _, c := range m.constraints {
		b.WriteString(fmt.Sprintf(" %s: %s %s %d\n", c.Name, strings.Join(c.Vars, " + "), c.Op, c.RHS))
	}

	b.WriteString("BOUNDS\n")
	for _, bd := range m.bounds {
		b.WriteString(fmt.Sprintf(" %d <= %s <= %d\n", bd.Lo, bd.Var, bd.Up))
	}

	if len(m.binary) > 0 {
		b.WriteString("BINARY\n")
		b.WriteString(" " + strings.Join(m.binary, " ") + "\n")
	}
	if len(m.general) > 0 {
		b.WriteString("GENERAL\n")
		b.WriteString(" " + strings.Join(m.general, " ") + "\n")
	}
	b.WriteString("END\n")

	return b.String()
}

// Columns returns every variable name in column order: x variables first,
// then unmet variables. Solver backends rely on this order.
func (m *Model) Columns() []string {
	cols := make([]string, 0, len(m.binary)+len(m.general))
	cols = append(cols, m.binary...)
	cols = append(cols, m.general...)
	return cols
}

func (m *Model) Constraints() []Constraint { return m.constraints }
func (m *Model) Bounds() []Bound           { return m.bounds }
func (m *Model) Objective() []Term         { return m.objective }
func (m *Model) BinaryVars() []string      { return m.binary }
func (m *Model) GeneralVars() []string     { return m.general }
func (m *Model) NumVariables() int         { return len(m.binary) + len(m.general) }
func (m *Model) NumConstraints() int       { return len(m.constraints) }
func (m *Model) Days() int                 { return m.numDays }

// XVar reports the variable name for (t,c,d), if the triple exists.
func (m *Model) XVar(t, c, d int) (string, bool) {
	idx, ok := m.xIndex[[3]int{t, c, d}]
	if !ok {
		return "", false
	}
	return xName(idx), true
}

// Decode maps primal column values back into domain terms. A binary value
// above 0.5 selects the assignment; unmet counts round to the nearest
// integer.
func (m *Model) Decode(columns map[string]float64) Solution {
	sol := Solution{Unmet: make(map[int]int)}

	for t := 0; t < m.numTech; t++ {
		for c := 0; c < m.numClients; c++ {
			for d := 0; d < m.numDays; d++ {
				idx, ok := m.xIndex[[3]int{t, c, d}]
				if !ok {
					continue
				}
				if columns[xName(idx)] > 0.5 {
					sol.Picks = append(sol.Picks, Pick{Tech: t, Client: c, Day: d})
				}
			}
		}
	}

	for c := 0; c < m.numClients; c++ {
		if v := columns[uName(c)]; v > 0.5 {
			sol.Unmet[c] = int(math.Round(v))
		}
	}

	return sol
}

func unavailableSet(technicians []Technician) map[[2]int]bool {
	set := make(map[[2]int]bool)
	for t, tech := range technicians {
		for _, day := range tech.UnavailableDays {
			// days are 1-based at the boundary
			set[[2]int{t, day - 1}] = true
		}
	}
	return set
}

func xName(i int) string { return fmt.Sprintf("x%d", i) }
func uName(i int) string { return fmt.Sprintf("u%d", i) }
