package lie

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Below this angle the trigonometric coefficients of the Rodrigues formulas
// are replaced by their series expansions.
const smallAngle = 1e-6

// Skew returns the 3x3 skew-symmetric matrix such that Skew(a)*b = a x b.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// addScaled accumulates dst += s*m elementwise.
func addScaled(dst *mat.Dense, s float64, m mat.Matrix) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+s*m.At(i, j))
		}
	}
}

// expSO3 is the Rodrigues rotation formula R = I + a*K + b*K^2 with K the
// unnormalized skew of phi, a = sin(t)/t and b = (1-cos(t))/t^2.
func expSO3(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	var a, b float64
	if theta < smallAngle {
		t2 := theta * theta
		a = 1 - t2/6
		b = 0.5 - t2/24
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / (theta * theta)
	}
	k := Skew(phi)
	var k2 mat.Dense
	k2.Mul(k, k)
	r := eye(3)
	addScaled(r, a, k)
	addScaled(r, b, &k2)
	return r
}

// logSO3 inverts expSO3. Rotations within smallAngle of pi radians are
// recovered from the diagonal of R, everywhere else from the antisymmetric
// part.
func logSO3(r *mat.Dense) r3.Vector {
	cosTheta := 0.5 * (mat.Trace(r) - 1)
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	theta := math.Acos(cosTheta)

	if math.Pi-theta < smallAngle {
		// R ~ 2*a*a^T - I: magnitudes from the diagonal, relative signs from
		// the symmetric off-diagonals, and the overall sign from the
		// antisymmetric part, which still carries sign(axis) until exactly pi
		// (where both signs are valid).
		axis := r3.Vector{
			X: math.Sqrt(math.Max(0, (r.At(0, 0)+1)/2)),
			Y: math.Sqrt(math.Max(0, (r.At(1, 1)+1)/2)),
			Z: math.Sqrt(math.Max(0, (r.At(2, 2)+1)/2)),
		}
		var asym float64
		switch {
		case axis.X >= axis.Y && axis.X >= axis.Z:
			axis.Y = math.Copysign(axis.Y, r.At(0, 1)+r.At(1, 0))
			axis.Z = math.Copysign(axis.Z, r.At(0, 2)+r.At(2, 0))
			asym = r.At(2, 1) - r.At(1, 2)
		case axis.Y >= axis.Z:
			axis.X = math.Copysign(axis.X, r.At(0, 1)+r.At(1, 0))
			axis.Z = math.Copysign(axis.Z, r.At(1, 2)+r.At(2, 1))
			asym = r.At(0, 2) - r.At(2, 0)
		default:
			axis.X = math.Copysign(axis.X, r.At(0, 2)+r.At(2, 0))
			axis.Y = math.Copysign(axis.Y, r.At(1, 2)+r.At(2, 1))
			asym = r.At(1, 0) - r.At(0, 1)
		}
		if asym < 0 {
			axis = axis.Mul(-1)
		}
		return axis.Normalize().Mul(theta)
	}

	var f float64
	if theta < smallAngle {
		f = 0.5 * (1 + theta*theta/6)
	} else {
		f = theta / (2 * math.Sin(theta))
	}
	return r3.Vector{
		X: f * (r.At(2, 1) - r.At(1, 2)),
		Y: f * (r.At(0, 2) - r.At(2, 0)),
		Z: f * (r.At(1, 0) - r.At(0, 1)),
	}
}

// leftJacobianSO3 is J = I + b*K + c*K^2 with b = (1-cos(t))/t^2 and
// c = (t-sin(t))/t^3. It relates the translational tangent component to the
// group translation in the SE(3) exponential.
func leftJacobianSO3(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	var b, c float64
	if theta < smallAngle {
		t2 := theta * theta
		b = 0.5 - t2/24
		c = 1.0/6 - t2/120
	} else {
		t2 := theta * theta
		b = (1 - math.Cos(theta)) / t2
		c = (theta - math.Sin(theta)) / (t2 * theta)
	}
	k := Skew(phi)
	var k2 mat.Dense
	k2.Mul(k, k)
	j := eye(3)
	addScaled(j, b, k)
	addScaled(j, c, &k2)
	return j
}

// invLeftJacobianSO3 is the closed-form inverse of leftJacobianSO3:
// J^-1 = I - K/2 + d*K^2 with d = 1/t^2 - (1+cos(t))/(2*t*sin(t)).
func invLeftJacobianSO3(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	var d float64
	if theta < smallAngle {
		t2 := theta * theta
		d = 1.0/12 + t2/720
	} else {
		d = 1/(theta*theta) - (1+math.Cos(theta))/(2*theta*math.Sin(theta))
	}
	k := Skew(phi)
	var k2 mat.Dense
	k2.Mul(k, k)
	j := eye(3)
	addScaled(j, -0.5, k)
	addScaled(j, d, &k2)
	return j
}

func mulVec3(m *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
