package optimize

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// InvSqrt returns the inverse matrix square root of a symmetric positive
// definite matrix, computed by eigendecomposition. It converts a measurement
// covariance into the stiffness matrix that scales a residual.
func InvSqrt(m *mat.SymDense) (*mat.Dense, error) {
	var eig mat.EigenSym
	if !eig.Factorize(m, true) {
		return nil, errors.New("eigendecomposition failed")
	}
	vals := eig.Values(nil)
	n := len(vals)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		if vals[j] <= 0 {
			return nil, errors.Errorf("matrix is not positive definite (eigenvalue %g)", vals[j])
		}
		s := 1 / math.Sqrt(vals[j])
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vecs.At(i, j)*s)
		}
	}
	var out mat.Dense
	out.Mul(scaled, vecs.T())

	res := mat.NewDense(n, n, nil)
	res.Copy(&out)
	return res, nil
}
