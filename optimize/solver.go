package optimize

import (
	"gonum.org/v1/gonum/floats"
)

// Status is the terminal state of a Solve call.
type Status int

const (
	// StatusConverged means the relative cost decrease or the update norm
	// fell below tolerance.
	StatusConverged Status = iota
	// StatusMaxIterationsReached means the iteration budget ran out.
	StatusMaxIterationsReached
	// StatusNonDecreasingLimitExceeded means the budget of consecutive
	// non-improving steps ran out; the best parameters seen were restored.
	StatusNonDecreasingLimitExceeded
	// StatusNoValidMeasurements means every residual block filtered out all
	// of its measurements, so there was nothing to solve. Parameters are left
	// untouched.
	StatusNoValidMeasurements
	// StatusSolverFailure means the normal equations could not be solved.
	// Parameters hold the last estimate accepted before the failure.
	StatusSolverFailure
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterationsReached:
		return "max iterations reached"
	case StatusNonDecreasingLimitExceeded:
		return "non-decreasing step limit exceeded"
	case StatusNoValidMeasurements:
		return "no valid measurements"
	case StatusSolverFailure:
		return "solver failure"
	default:
		return "unknown"
	}
}

// Result summarizes a terminated Solve call.
type Result struct {
	Status     Status
	Cost       float64
	Iterations int
}

// Solve iterates damped-free Gauss-Newton until a terminal state is reached,
// then leaves the best-cost parameter values observed in the problem (except
// on solver failure, which keeps the last pre-failure estimate). The returned
// error is non-nil only for StatusSolverFailure and for malformed problems.
func (p *Problem) Solve() (Result, error) {
	if len(p.blocks) == 0 {
		return Result{Status: StatusNoValidMeasurements}, nil
	}
	offsets, n := p.layout()
	if n == 0 {
		return Result{Status: StatusSolverFailure}, errNoFreeParameters
	}

	cur := p.values()
	evals, cost, rows, err := p.evaluate(cur, offsets, true)
	if err != nil {
		return Result{Status: StatusSolverFailure}, err
	}
	if rows == 0 {
		return Result{Status: StatusNoValidMeasurements}, nil
	}

	best, bestCost := cur, cost
	nondecreasing := 0

	finish := func(st Status, iters int) Result {
		p.restore(best)
		return Result{Status: st, Cost: bestCost, Iterations: iters}
	}

	if cost == 0 {
		return finish(StatusConverged, 0), nil
	}

	for iter := 1; iter <= p.opts.MaxIterations; iter++ {
		delta, err := p.solveNormalEquations(evals, n)
		if err != nil {
			p.restore(cur)
			return Result{Status: StatusSolverFailure, Cost: cost, Iterations: iter}, err
		}
		stepNorm := floats.Norm(delta, 2)
		if stepNorm < p.opts.MinUpdateNorm {
			return finish(StatusConverged, iter), nil
		}

		cand := retractAll(cur, offsets, delta)
		_, newCost, candRows, err := p.evaluate(cand, offsets, false)
		if err != nil {
			p.restore(cur)
			return Result{Status: StatusSolverFailure, Cost: cost, Iterations: iter}, err
		}
		if candRows == 0 {
			// The tentative update moved every measurement out of view.
			return finish(StatusNoValidMeasurements, iter), nil
		}

		if p.logger != nil {
			p.logger.Debugw("gauss-newton step",
				"iter", iter, "cost", cost, "new_cost", newCost, "step_norm", stepNorm)
		}

		switch {
		case newCost < cost:
			relDecrease := (cost - newCost) / cost
			cur, cost = cand, newCost
			nondecreasing = 0
			if cost < bestCost {
				best, bestCost = cur, cost
			}
			if relDecrease < p.opts.CostTolerance {
				return finish(StatusConverged, iter), nil
			}
		case p.opts.AllowNondecreasingSteps &&
			nondecreasing < p.opts.MaxNondecreasingSteps &&
			newCost <= cost/p.opts.MinCostDecrease:
			cur, cost = cand, newCost
			nondecreasing++
			if cost < bestCost {
				best, bestCost = cur, cost
			}
		case p.opts.AllowNondecreasingSteps:
			// Non-improving budget exhausted, or the step grew the cost past
			// the configured bound. The pending update is discarded.
			return finish(StatusNonDecreasingLimitExceeded, iter), nil
		default:
			// Strict descent mode: a non-improving step means no further
			// progress is possible without damping.
			return finish(StatusConverged, iter), nil
		}

		evals, cost, _, err = p.evaluate(cur, offsets, true)
		if err != nil {
			p.restore(cur)
			return Result{Status: StatusSolverFailure, Cost: cost, Iterations: iter}, err
		}
	}
	return finish(StatusMaxIterationsReached, p.opts.MaxIterations), nil
}
