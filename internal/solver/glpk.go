package solver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lukpank/go-glpk/glpk"

	"github.com/visitops/backend/internal/milp"
)

// GLPK solves the model in-process through the GLPK integer optimizer. The
// binding exposes no time limit, so Solve runs the optimizer on its own
// goroutine and abandons it when the context deadline fires; each call owns
// its problem object, so an abandoned solve cannot affect later ones.
type GLPK struct{}

var (
	engineOnce sync.Once
	engine     *GLPK
)

// Engine returns the process-wide GLPK adapter: created on first use, reused
// across planning calls, never torn down.
func Engine() *GLPK {
	engineOnce.Do(func() { engine = &GLPK{} })
	return engine
}

type glpkOutcome struct {
	res Result
	err error
}

func (g *GLPK) Solve(ctx context.Context, m *milp.Model) (Result, error) {
	ch := make(chan glpkOutcome, 1)
	go func() {
		res, err := solveGLPK(m)
		ch <- glpkOutcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return Result{Status: StatusError}, fmt.Errorf("solver: time budget exceeded: %w", ctx.Err())
	}
}

func solveGLPK(m *milp.Model) (Result, error) {
	lp := glpk.New()
	defer lp.Delete()

	lp.SetProbName("visitplan")
	lp.SetObjDir(glpk.ObjDir(glpk.MIN))

	cols := m.Columns()
	lp.AddCols(len(cols))

	colIdx := make(map[string]int32, len(cols))
	for i, name := range cols {
		j := int32(i + 1)
		colIdx[name] = j
		lp.SetColName(int(j), name)
	}
	for _, name := range m.BinaryVars() {
		lp.SetColKind(int(colIdx[name]), glpk.VarType(glpk.BV))
	}
	for _, name := range m.GeneralVars() {
		lp.SetColKind(int(colIdx[name]), glpk.VarType(glpk.IV))
	}
	for _, b := range m.Bounds() {
		j := int(colIdx[b.Var])
		if b.Up > b.Lo {
			lp.SetColBnds(j, glpk.BndsType(glpk.DB), float64(b.Lo), float64(b.Up))
		} else {
			lp.SetColBnds(j, glpk.BndsType(glpk.FX), float64(b.Lo), float64(b.Lo))
		}
	}

	for _, t := range m.Objective() {
		lp.SetObjCoef(int(colIdx[t.Var]), float64(t.Coef))
	}

	constraints := m.Constraints()
	lp.AddRows(len(constraints))
	for i, c := range constraints {
		row := i + 1
		lp.SetRowName(row, c.Name)
		if c.Op == ">=" {
			lp.SetRowBnds(row, glpk.BndsType(glpk.LO), float64(c.RHS), 0)
		} else {
			lp.SetRowBnds(row, glpk.BndsType(glpk.UP), 0, float64(c.RHS))
		}
		ind := make([]int32, len(c.Vars))
		val := make([]float64, len(c.Vars))
		for k, v := range c.Vars {
			ind[k] = colIdx[v]
			val[k] = 1.0
		}
		lp.SetMatRow(row, ind, val)
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(true)
	iocp.SetMsgLev(glpk.MsgLev(glpk.MSG_ERR))

	if err := lp.Intopt(iocp); err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "no primal feasible") || strings.Contains(msg, "no dual feasible"):
			return Result{Status: StatusInfeasible}, nil
		case strings.Contains(msg, "unbound"):
			return Result{Status: StatusUnbounded}, nil
		}
		return Result{Status: StatusError}, fmt.Errorf("solver: intopt: %w", err)
	}

	var status Status
	switch lp.MipStatus() {
	case glpk.OPT:
		status = StatusOptimal
	case glpk.FEAS:
		status = StatusFeasible
	case glpk.NOFEAS:
		status = StatusInfeasible
	case glpk.UNBND:
		status = StatusUnbounded
	default:
		status = StatusUnknown
	}

	columns := make(map[string]float64, len(cols))
	for i, name := range cols {
		columns[name] = lp.MipColVal(i + 1)
	}

	return Result{Status: status, Columns: columns}, nil
}
