package optimize

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/lie"
)

// ErrIllConditioned is returned when the Gauss-Newton normal equations are
// singular or not positive definite.
var ErrIllConditioned = errors.New("normal equations are singular or not positive definite")

var errNoFreeParameters = errors.New("problem has no non-constant parameters")

type paramBlock struct {
	value    lie.Element
	constant bool
}

type residualBlock struct {
	cost Cost
	loss Loss
	ids  []string
}

// Problem owns a set of parameters and residual blocks for the lifetime of
// one Solve call. Parameters are registered before Solve, mutated only by the
// solver's update step, and read back afterwards with Parameter. A Problem is
// not safe for concurrent use and is not meant to be reused across solves
// with different data.
type Problem struct {
	opts   Options
	logger golog.Logger

	order  []string
	params map[string]*paramBlock
	blocks []residualBlock
}

// NewProblem returns an empty problem with the given solve options.
func NewProblem(opts Options, logger golog.Logger) *Problem {
	return &Problem{
		opts:   opts,
		logger: logger,
		params: map[string]*paramBlock{},
	}
}

// AddParameter registers an unknown under id with its initial value. The
// global tangent-space column layout follows registration order.
func (p *Problem) AddParameter(id string, value lie.Element) error {
	if _, ok := p.params[id]; ok {
		return errors.Errorf("parameter %q already registered", id)
	}
	if value == nil {
		return errors.Errorf("parameter %q has no value", id)
	}
	p.order = append(p.order, id)
	p.params[id] = &paramBlock{value: value}
	return nil
}

// SetConstant excludes a registered parameter from optimization. Residual
// blocks may still read it.
func (p *Problem) SetConstant(id string) error {
	b, ok := p.params[id]
	if !ok {
		return errors.Errorf("unknown parameter %q", id)
	}
	b.constant = true
	return nil
}

// AddResidualBlock registers a cost over the named parameters. The order of
// paramIDs fixes the per-call parameter and Jacobian ordering seen by cost.
func (p *Problem) AddResidualBlock(cost Cost, loss Loss, paramIDs ...string) error {
	if cost == nil {
		return errors.New("residual block has no cost")
	}
	if loss == nil {
		loss = L2Loss{}
	}
	if len(paramIDs) == 0 {
		return errors.New("residual block references no parameters")
	}
	for _, id := range paramIDs {
		if _, ok := p.params[id]; !ok {
			return errors.Errorf("unknown parameter %q", id)
		}
	}
	ids := make([]string, len(paramIDs))
	copy(ids, paramIDs)
	p.blocks = append(p.blocks, residualBlock{cost: cost, loss: loss, ids: ids})
	return nil
}

// Parameter returns the current value of the named parameter, or nil if it
// was never registered.
func (p *Problem) Parameter(id string) lie.Element {
	b, ok := p.params[id]
	if !ok {
		return nil
	}
	return b.value
}

// layout assigns each non-constant parameter a contiguous tangent-space
// column range in registration order.
func (p *Problem) layout() (map[string]int, int) {
	offsets := make(map[string]int, len(p.order))
	n := 0
	for _, id := range p.order {
		b := p.params[id]
		if b.constant {
			continue
		}
		offsets[id] = n
		n += b.value.Dof()
	}
	return offsets, n
}

func (p *Problem) values() map[string]lie.Element {
	out := make(map[string]lie.Element, len(p.params))
	for id, b := range p.params {
		out[id] = b.value
	}
	return out
}

func (p *Problem) restore(values map[string]lie.Element) {
	for id, v := range values {
		p.params[id].value = v
	}
}

func retractAll(values map[string]lie.Element, offsets map[string]int, delta []float64) map[string]lie.Element {
	out := make(map[string]lie.Element, len(values))
	for id, v := range values {
		if off, ok := offsets[id]; ok {
			out[id] = v.Retract(delta[off : off+v.Dof()])
		} else {
			out[id] = v
		}
	}
	return out
}

// blockEval is one residual block's reweighted contribution, with recorded
// global column offsets for assembly.
type blockEval struct {
	res  []float64
	jacs []*mat.Dense
	offs []int
	dofs []int
}

// evaluate runs every residual block at values, applies the robust-loss
// reweighting, and returns the per-block contributions (when withJacobians),
// the total cost and the total residual row count. The row count is rebuilt
// every call because vision costs drop invalid measurements and so change
// dimension as the estimate moves.
func (p *Problem) evaluate(
	values map[string]lie.Element,
	offsets map[string]int,
	withJacobians bool,
) ([]blockEval, float64, int, error) {
	var evals []blockEval
	if withJacobians {
		evals = make([]blockEval, 0, len(p.blocks))
	}
	var total float64
	rows := 0

	for _, rb := range p.blocks {
		nParams := len(rb.ids)
		params := make([]lie.Element, nParams)
		offs := make([]int, nParams)
		dofs := make([]int, nParams)
		var flags []bool
		if withJacobians {
			flags = make([]bool, nParams)
		}
		for i, id := range rb.ids {
			params[i] = values[id]
			dofs[i] = params[i].Dof()
			if off, ok := offsets[id]; ok {
				offs[i] = off
				if withJacobians {
					flags[i] = true
				}
			} else {
				offs[i] = -1
			}
		}

		res, jacs, err := rb.cost.Evaluate(params, flags)
		if err != nil {
			return nil, 0, 0, errors.Wrap(err, "evaluating residual block")
		}
		if len(res) == 0 {
			continue
		}
		rows += len(res)

		for i, r := range res {
			sw := math.Sqrt(rb.loss.Weight(math.Abs(r)))
			res[i] = sw * r
			total += res[i] * res[i]
			if !withJacobians {
				continue
			}
			for k, jac := range jacs {
				if jac == nil {
					continue
				}
				for c := 0; c < dofs[k]; c++ {
					jac.Set(i, c, sw*jac.At(i, c))
				}
			}
		}

		if withJacobians {
			evals = append(evals, blockEval{res: res, jacs: jacs, offs: offs, dofs: dofs})
		}
	}
	return evals, total, rows, nil
}

// solveNormalEquations assembles J^T*J and J^T*r from the per-block
// contributions and solves for the Gauss-Newton update. The sparsity lives in
// the block structure: each block only touches the column ranges of the
// parameters it references.
func (p *Problem) solveNormalEquations(evals []blockEval, n int) ([]float64, error) {
	h := mat.NewDense(n, n, nil)
	g := mat.NewVecDense(n, nil)

	for _, be := range evals {
		m := len(be.res)
		if m == 0 {
			continue
		}
		rv := mat.NewVecDense(m, be.res)
		for i, ji := range be.jacs {
			if ji == nil || be.offs[i] < 0 {
				continue
			}
			oi, di := be.offs[i], be.dofs[i]

			var gi mat.VecDense
			gi.MulVec(ji.T(), rv)
			for a := 0; a < di; a++ {
				g.SetVec(oi+a, g.AtVec(oi+a)+gi.AtVec(a))
			}

			for j, jj := range be.jacs {
				if jj == nil || be.offs[j] < 0 {
					continue
				}
				oj, dj := be.offs[j], be.dofs[j]
				var hij mat.Dense
				hij.Mul(ji.T(), jj)
				for a := 0; a < di; a++ {
					for b := 0; b < dj; b++ {
						h.Set(oi+a, oj+b, h.At(oi+a, oj+b)+hij.At(a, b))
					}
				}
			}
		}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, h.At(i, j))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, ErrIllConditioned
	}
	g.ScaleVec(-1, g)
	var dv mat.VecDense
	if err := chol.SolveVecTo(&dv, g); err != nil {
		return nil, errors.Wrap(ErrIllConditioned, err.Error())
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = dv.AtVec(i)
	}
	return out, nil
}
