package optimize_test

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/cost"
	"github.com/viam-labs/densevo/lie"
	"github.com/viam-labs/densevo/optimize"
)

// parabolaProblem fits y = 2x^2 - 3x + 1 from noiseless samples.
func parabolaProblem(t *testing.T, a0, b0, c0 float64) *optimize.Problem {
	t.Helper()
	logger := golog.NewTestLogger(t)
	p := optimize.NewProblem(optimize.DefaultOptions(), logger)
	test.That(t, p.AddParameter("a", lie.NewVector(a0)), test.ShouldBeNil)
	test.That(t, p.AddParameter("b", lie.NewVector(b0)), test.ShouldBeNil)
	test.That(t, p.AddParameter("c", lie.NewVector(c0)), test.ShouldBeNil)
	for _, x := range []float64{-2, -1, 0, 1, 2} {
		y := 2*x*x - 3*x + 1
		err := p.AddResidualBlock(cost.NewQuadratic(x, y, 1), optimize.L2Loss{}, "a", "b", "c")
		test.That(t, err, test.ShouldBeNil)
	}
	return p
}

func TestSolveParabolaExact(t *testing.T) {
	p := parabolaProblem(t, 0, 0, 0)
	res, err := p.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusConverged)
	test.That(t, p.Parameter("a").(lie.Vector)[0], test.ShouldAlmostEqual, 2, 1e-8)
	test.That(t, p.Parameter("b").(lie.Vector)[0], test.ShouldAlmostEqual, -3, 1e-8)
	test.That(t, p.Parameter("c").(lie.Vector)[0], test.ShouldAlmostEqual, 1, 1e-8)
	test.That(t, res.Cost, test.ShouldBeLessThan, 1e-16)
}

func TestSolveIdempotent(t *testing.T) {
	first := parabolaProblem(t, 0, 0, 0)
	_, err := first.Solve()
	test.That(t, err, test.ShouldBeNil)
	a := first.Parameter("a").(lie.Vector)[0]
	b := first.Parameter("b").(lie.Vector)[0]
	c := first.Parameter("c").(lie.Vector)[0]

	again := parabolaProblem(t, a, b, c)
	res, err := again.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusConverged)
	test.That(t, res.Iterations, test.ShouldBeLessThanOrEqualTo, 1)
	test.That(t, again.Parameter("a").(lie.Vector)[0], test.ShouldAlmostEqual, a, 1e-12)
	test.That(t, again.Parameter("b").(lie.Vector)[0], test.ShouldAlmostEqual, b, 1e-12)
	test.That(t, again.Parameter("c").(lie.Vector)[0], test.ShouldAlmostEqual, c, 1e-12)
}

func TestSolveWithConstantParameter(t *testing.T) {
	p := parabolaProblem(t, 0, 0, 1) // c seeded at its true value
	test.That(t, p.SetConstant("c"), test.ShouldBeNil)
	res, err := p.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusConverged)
	test.That(t, p.Parameter("a").(lie.Vector)[0], test.ShouldAlmostEqual, 2, 1e-8)
	test.That(t, p.Parameter("b").(lie.Vector)[0], test.ShouldAlmostEqual, -3, 1e-8)
	test.That(t, p.Parameter("c").(lie.Vector)[0], test.ShouldEqual, 1.0)
}

func TestProblemRegistration(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := optimize.NewProblem(optimize.DefaultOptions(), logger)
	test.That(t, p.AddParameter("x", lie.NewVector(0)), test.ShouldBeNil)
	test.That(t, p.AddParameter("x", lie.NewVector(0)), test.ShouldNotBeNil)
	test.That(t, p.SetConstant("nope"), test.ShouldNotBeNil)
	err := p.AddResidualBlock(cost.NewQuadratic(0, 0, 1), nil, "x", "missing", "z")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, p.Parameter("missing"), test.ShouldBeNil)
}

// scriptedCost returns a fixed sequence of scalar residuals regardless of the
// parameter value, with unit Jacobian. It drives the step-acceptance state
// machine through exactly the transitions under test.
type scriptedCost struct {
	residuals []float64
	call      int
}

func (s *scriptedCost) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	r := s.residuals[s.call]
	if s.call < len(s.residuals)-1 {
		s.call++
	}
	res := []float64{r}
	if jacobians == nil {
		return res, nil, nil
	}
	jacs := make([]*mat.Dense, len(jacobians))
	if jacobians[0] {
		jacs[0] = mat.NewDense(1, 1, []float64{1})
	}
	return res, jacs, nil
}

func TestNondecreasingStepPolicy(t *testing.T) {
	// Costs per evaluation: an improving step to 0.9, then three accepted
	// non-improving steps (each within cost/0.99 of the previous), then a
	// fourth non-improving step that exhausts the budget and is rejected.
	// The solver must restore the best parameters seen, from the 0.9 step.
	costs := []float64{
		1.0,          // initial (with jacobians)
		0.9, 0.9,     // iter 1 candidate, re-evaluation after acceptance
		0.905, 0.905, // iter 2: non-improving, within bound
		0.91, 0.91, // iter 3
		0.915, 0.915, // iter 4
		0.92, // iter 5 candidate: budget exhausted, rejected
	}
	residuals := make([]float64, len(costs))
	for i, c := range costs {
		residuals[i] = math.Sqrt(c)
	}

	opts := optimize.DefaultOptions()
	opts.AllowNondecreasingSteps = true
	opts.MaxNondecreasingSteps = 3
	opts.MinCostDecrease = 0.99
	opts.MaxIterations = 20

	logger := golog.NewTestLogger(t)
	p := optimize.NewProblem(opts, logger)
	test.That(t, p.AddParameter("x", lie.NewVector(0)), test.ShouldBeNil)
	sc := &scriptedCost{residuals: residuals}
	test.That(t, p.AddResidualBlock(sc, optimize.L2Loss{}, "x"), test.ShouldBeNil)

	res, err := p.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusNonDecreasingLimitExceeded)
	test.That(t, res.Cost, test.ShouldAlmostEqual, 0.9, 1e-12)

	// The Gauss-Newton update for a unit Jacobian is -residual, so the best
	// parameters are those after the single improving step: x = -1.
	test.That(t, p.Parameter("x").(lie.Vector)[0], test.ShouldAlmostEqual, -1, 1e-12)
}

func TestStrictDescentStallsAsConverged(t *testing.T) {
	// Without AllowNondecreasingSteps the first non-improving step ends the
	// solve, keeping the pre-step parameters.
	sc := &scriptedCost{residuals: []float64{1, 1.5}}
	logger := golog.NewTestLogger(t)
	p := optimize.NewProblem(optimize.DefaultOptions(), logger)
	test.That(t, p.AddParameter("x", lie.NewVector(2)), test.ShouldBeNil)
	test.That(t, p.AddResidualBlock(sc, optimize.L2Loss{}, "x"), test.ShouldBeNil)

	res, err := p.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusConverged)
	test.That(t, p.Parameter("x").(lie.Vector)[0], test.ShouldAlmostEqual, 2, 1e-12)
}

// emptyCost drops every measurement, as a photometric cost does when the
// warp leaves the image.
type emptyCost struct{}

func (emptyCost) Evaluate([]lie.Element, []bool) ([]float64, []*mat.Dense, error) {
	return nil, nil, nil
}

func TestSolveNoValidMeasurements(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := optimize.NewProblem(optimize.DefaultOptions(), logger)
	test.That(t, p.AddParameter("x", lie.NewVector(3)), test.ShouldBeNil)
	test.That(t, p.AddResidualBlock(emptyCost{}, nil, "x"), test.ShouldBeNil)

	res, err := p.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusNoValidMeasurements)
	// parameters untouched
	test.That(t, p.Parameter("x").(lie.Vector)[0], test.ShouldEqual, 3.0)
}

// underdeterminedCost constrains only the sum of two unknowns, making the
// normal equations singular.
type underdeterminedCost struct{}

func (underdeterminedCost) Evaluate(params []lie.Element, jacobians []bool) ([]float64, []*mat.Dense, error) {
	x := params[0].(lie.Vector)[0]
	y := params[1].(lie.Vector)[0]
	res := []float64{x + y - 1}
	if jacobians == nil {
		return res, nil, nil
	}
	jacs := make([]*mat.Dense, 2)
	if jacobians[0] {
		jacs[0] = mat.NewDense(1, 1, []float64{1})
	}
	if jacobians[1] {
		jacs[1] = mat.NewDense(1, 1, []float64{1})
	}
	return res, jacs, nil
}

func TestSolveSingularSystem(t *testing.T) {
	logger := golog.NewTestLogger(t)
	p := optimize.NewProblem(optimize.DefaultOptions(), logger)
	test.That(t, p.AddParameter("x", lie.NewVector(5)), test.ShouldBeNil)
	test.That(t, p.AddParameter("y", lie.NewVector(7)), test.ShouldBeNil)
	test.That(t, p.AddResidualBlock(underdeterminedCost{}, nil, "x", "y"), test.ShouldBeNil)

	res, err := p.Solve()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, res.Status, test.ShouldEqual, optimize.StatusSolverFailure)
	// the last valid estimate is retained
	test.That(t, p.Parameter("x").(lie.Vector)[0], test.ShouldEqual, 5.0)
	test.That(t, p.Parameter("y").(lie.Vector)[0], test.ShouldEqual, 7.0)
}

func TestSolvePoseGraphChain(t *testing.T) {
	// two poses anchored by a prior on the first and a relative constraint:
	// the optimum is exactly prior composed with the relative observation
	logger := golog.NewTestLogger(t)
	stiffness := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		stiffness.Set(i, i, 1)
	}

	anchor := lie.ExpSE3([]float64{0.1, -0.2, 0.3, 0.05, -0.04, 0.03})
	motion := lie.ExpSE3([]float64{0.5, 0.1, -0.2, 0.02, 0.03, -0.01})

	opts := optimize.DefaultOptions()
	p := optimize.NewProblem(opts, logger)
	test.That(t, p.AddParameter("T_1_0", lie.IdentitySE3()), test.ShouldBeNil)
	test.That(t, p.AddParameter("T_2_0", lie.IdentitySE3()), test.ShouldBeNil)
	test.That(t, p.AddResidualBlock(cost.NewPosePrior(anchor, stiffness), nil, "T_1_0"), test.ShouldBeNil)
	test.That(t, p.AddResidualBlock(cost.NewRelativePose(motion, stiffness), nil, "T_1_0", "T_2_0"), test.ShouldBeNil)

	res, err := p.Solve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Status, test.ShouldNotEqual, optimize.StatusSolverFailure)
	test.That(t, res.Cost, test.ShouldBeLessThan, 1e-12)

	t1 := p.Parameter("T_1_0").(*lie.SE3)
	t2 := p.Parameter("T_2_0").(*lie.SE3)
	test.That(t, poseDistance(t1, anchor), test.ShouldBeLessThan, 1e-6)
	test.That(t, poseDistance(t2, motion.Compose(anchor)), test.ShouldBeLessThan, 1e-6)
}

func poseDistance(a, b *lie.SE3) float64 {
	xi := a.Compose(b.Inverse()).Log()
	var s float64
	for _, v := range xi {
		s += v * v
	}
	return math.Sqrt(s)
}
