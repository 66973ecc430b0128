package optimize

// Options configures a single Solve call. It is a plain immutable value:
// construct it with DefaultOptions, adjust fields, and pass it to NewProblem.
type Options struct {
	// MaxIterations bounds the number of Gauss-Newton iterations.
	MaxIterations int
	// CostTolerance terminates the solve when an accepted step decreases the
	// total cost by less than this fraction of the pre-step cost.
	CostTolerance float64
	// MinUpdateNorm terminates the solve when the tangent-space update has a
	// smaller 2-norm than this.
	MinUpdateNorm float64
	// AllowNondecreasingSteps permits accepting steps that do not strictly
	// decrease the cost, up to MaxNondecreasingSteps in a row. Photometric
	// cost surfaces are noisy enough that strict descent stalls early.
	AllowNondecreasingSteps bool
	// MaxNondecreasingSteps is the number of consecutive non-improving steps
	// tolerated before the solve terminates with StatusNonDecreasingLimit.
	MaxNondecreasingSteps int
	// MinCostDecrease bounds how much a non-improving step may grow the cost:
	// a step is acceptable while newCost <= cost/MinCostDecrease. Must lie in
	// (0, 1).
	MinCostDecrease float64
}

// DefaultOptions returns the options used when callers have no opinion.
func DefaultOptions() Options {
	return Options{
		MaxIterations:           100,
		CostTolerance:           1e-10,
		MinUpdateNorm:           1e-12,
		AllowNondecreasingSteps: false,
		MaxNondecreasingSteps:   3,
		MinCostDecrease:         0.99,
	}
}
