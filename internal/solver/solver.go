package solver

import (
	"context"
	"strings"

	"github.com/visitops/backend/internal/milp"
)

type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusUnbounded  Status = "UNBOUNDED"
	StatusError      Status = "ERROR"
	StatusUnknown    Status = "UNKNOWN"
)

type Result struct {
	Status Status
	// Columns holds the primal value of every named variable.
	Columns map[string]float64
}

// Adapter is the boundary to the external MILP engine. Implementations must
// return within the context deadline; on failure the caller degrades to an
// all-unmet result rather than propagating a fault.
type Adapter interface {
	Solve(ctx context.Context, m *milp.Model) (Result, error)
}

// NormalizeStatus maps solver-reported status strings onto the adapter
// vocabulary. HiGHS-style mixed-case names and already-normalized values are
// both accepted.
func NormalizeStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPTIMAL":
		return StatusOptimal
	case "FEASIBLE", "INTEGER FEASIBLE":
		return StatusFeasible
	case "INFEASIBLE":
		return StatusInfeasible
	case "UNBOUNDED":
		return StatusUnbounded
	case "ERROR":
		return StatusError
	default:
		return StatusUnknown
	}
}
