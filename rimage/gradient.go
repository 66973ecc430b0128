package rimage

// Gradient holds the per-pixel horizontal and vertical intensity derivatives
// of an image.
type Gradient struct {
	X *FloatImage
	Y *FloatImage
}

// sobelX and sobelY are the standard 3x3 Sobel kernels. The 1/8 factor
// normalizes the response so a unit intensity ramp yields a unit derivative,
// which the photometric Jacobian relies on.
var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// Sobel computes the image gradient with replicated borders.
func Sobel(im *FloatImage) *Gradient {
	g := &Gradient{
		X: NewFloatImage(im.Width(), im.Height()),
		Y: NewFloatImage(im.Width(), im.Height()),
	}
	for y := 0; y < im.Height(); y++ {
		for x := 0; x < im.Width(); x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := im.atClamped(x+kx, y+ky)
					gx += sobelX[ky+1][kx+1] * v
					gy += sobelY[ky+1][kx+1] * v
				}
			}
			g.X.Set(x, y, gx/8)
			g.Y.Set(x, y, gy/8)
		}
	}
	return g
}
