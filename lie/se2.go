package lie

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// SE2 is a planar rigid-body transformation, stored as a heading angle and a
// translation. Its tangent vectors are [rho_x rho_y phi].
type SE2 struct {
	theta float64
	trans r2.Point
}

// NewSE2 constructs an SE2 from a heading angle in radians and a translation.
func NewSE2(theta float64, trans r2.Point) *SE2 {
	return &SE2{theta: theta, trans: trans}
}

// IdentitySE2 returns the identity transformation.
func IdentitySE2() *SE2 {
	return &SE2{}
}

// ExpSE2 maps a tangent vector [rho, phi] of length 3 to a group element.
func ExpSE2(xi []float64) *SE2 {
	if len(xi) != 3 {
		panic("lie: SE2 tangent must have length 3")
	}
	rho := r2.Point{X: xi[0], Y: xi[1]}
	phi := xi[2]
	var a, b float64
	if math.Abs(phi) < smallAngle {
		p2 := phi * phi
		a = 1 - p2/6
		b = phi/2 - p2*phi/24
	} else {
		a = math.Sin(phi) / phi
		b = (1 - math.Cos(phi)) / phi
	}
	return &SE2{
		theta: phi,
		trans: r2.Point{X: a*rho.X - b*rho.Y, Y: b*rho.X + a*rho.Y},
	}
}

// Dof returns 3, the dimension of se(2).
func (t *SE2) Dof() int { return 3 }

// Angle returns the heading angle in radians.
func (t *SE2) Angle() float64 { return t.theta }

// Translation returns the translation component.
func (t *SE2) Translation() r2.Point { return t.trans }

// Rotation returns the 2x2 rotation matrix.
func (t *SE2) Rotation() *mat.Dense {
	c, s := math.Cos(t.theta), math.Sin(t.theta)
	return mat.NewDense(2, 2, []float64{c, -s, s, c})
}

// Compose returns the product t * other.
func (t *SE2) Compose(other *SE2) *SE2 {
	return &SE2{
		theta: t.theta + other.theta,
		trans: t.Apply(other.trans),
	}
}

// Inverse returns t^-1.
func (t *SE2) Inverse() *SE2 {
	c, s := math.Cos(t.theta), math.Sin(t.theta)
	return &SE2{
		theta: -t.theta,
		trans: r2.Point{
			X: -(c*t.trans.X + s*t.trans.Y),
			Y: -(-s*t.trans.X + c*t.trans.Y),
		},
	}
}

// Apply transforms the point p into the frame of t.
func (t *SE2) Apply(p r2.Point) r2.Point {
	c, s := math.Cos(t.theta), math.Sin(t.theta)
	return r2.Point{
		X: c*p.X - s*p.Y + t.trans.X,
		Y: s*p.X + c*p.Y + t.trans.Y,
	}
}

// Log returns the tangent vector [rho, phi] inverting ExpSE2.
func (t *SE2) Log() []float64 {
	phi := t.theta
	var a, b float64
	if math.Abs(phi) < smallAngle {
		p2 := phi * phi
		a = 1 - p2/6
		b = phi/2 - p2*phi/24
	} else {
		a = math.Sin(phi) / phi
		b = (1 - math.Cos(phi)) / phi
	}
	det := a*a + b*b
	rho := r2.Point{
		X: (a*t.trans.X + b*t.trans.Y) / det,
		Y: (-b*t.trans.X + a*t.trans.Y) / det,
	}
	return []float64{rho.X, rho.Y, phi}
}

// Adjoint returns the 3x3 matrix satisfying
// Exp(Adjoint(t)*xi) = t * Exp(xi) * t^-1.
func (t *SE2) Adjoint() *mat.Dense {
	c, s := math.Cos(t.theta), math.Sin(t.theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, t.trans.Y,
		s, c, -t.trans.X,
		0, 0, 1,
	})
}

// Retract applies the left-multiplicative update Exp(delta) * t.
func (t *SE2) Retract(delta []float64) Element {
	return ExpSE2(delta).Compose(t)
}
