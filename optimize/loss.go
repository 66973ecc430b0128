package optimize

import "math"

// Loss maps a residual magnitude to an IRLS weight in (0, 1]. Both the
// residual and its Jacobian rows are scaled by the square root of the weight
// before the normal equations are assembled.
type Loss interface {
	Weight(r float64) float64
}

// L2Loss is the trivial loss: every residual keeps full weight.
type L2Loss struct{}

// Weight always returns 1.
func (L2Loss) Weight(float64) float64 { return 1 }

// HuberLoss downweights residuals beyond the threshold Delta, so outlier
// measurements pull on the solution linearly instead of quadratically.
type HuberLoss struct {
	Delta float64
}

// NewHuberLoss returns a HuberLoss with the given threshold.
func NewHuberLoss(delta float64) HuberLoss {
	return HuberLoss{Delta: delta}
}

// Weight returns 1 for |r| <= Delta and Delta/|r| beyond it. The weight is
// continuous at |r| == Delta.
func (l HuberLoss) Weight(r float64) float64 {
	abs := math.Abs(r)
	if abs <= l.Delta {
		return 1
	}
	return l.Delta / abs
}
