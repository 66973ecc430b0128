// Package rimage provides the dense float-valued image utilities behind the
// photometric tracker: intensity grids, bilinear sampling, Sobel gradients,
// Gaussian pyramids and block-matching stereo disparity. Intensities are
// stored as float64 in [0, 1]; invalid samples are NaN.
package rimage

import (
	"image"
	"math"
)

// FloatImage is a dense row-major float64 grid.
type FloatImage struct {
	width  int
	height int
	data   []float64
}

// NewFloatImage returns a zero-filled image of the given size.
func NewFloatImage(width, height int) *FloatImage {
	return &FloatImage{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// FloatImageFromGray converts an 8-bit grayscale image, normalizing
// intensities to [0, 1].
func FloatImageFromGray(img *image.Gray) *FloatImage {
	b := img.Bounds()
	out := NewFloatImage(b.Dx(), b.Dy())
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			out.Set(x, y, float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)/255)
		}
	}
	return out
}

func (im *FloatImage) k(x, y int) int {
	return y*im.width + x
}

// Width returns the number of columns.
func (im *FloatImage) Width() int { return im.width }

// Height returns the number of rows.
func (im *FloatImage) Height() int { return im.height }

// At returns the intensity at (x, y).
func (im *FloatImage) At(x, y int) float64 {
	return im.data[im.k(x, y)]
}

// Set stores v at (x, y).
func (im *FloatImage) Set(x, y int, v float64) {
	im.data[im.k(x, y)] = v
}

// Fill sets every pixel to v.
func (im *FloatImage) Fill(v float64) {
	for i := range im.data {
		im.data[i] = v
	}
}

// Clone returns a deep copy.
func (im *FloatImage) Clone() *FloatImage {
	out := NewFloatImage(im.width, im.height)
	copy(out.data, im.data)
	return out
}

// atClamped samples with replicated borders.
func (im *FloatImage) atClamped(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= im.width {
		x = im.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= im.height {
		y = im.height - 1
	}
	return im.data[im.k(x, y)]
}

// BilinearInterpolate samples im at a continuous coordinate. Coordinates
// outside [0, Width-1] x [0, Height-1] yield NaN, the invalid-sample
// sentinel callers must filter before forming residuals.
func BilinearInterpolate(im *FloatImage, x, y float64) float64 {
	if x < 0 || y < 0 || x > float64(im.width-1) || y > float64(im.height-1) {
		return math.NaN()
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 > im.width-1 {
		x1 = im.width - 1
	}
	if y1 > im.height-1 {
		y1 = im.height - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	top := (1-fx)*im.At(x0, y0) + fx*im.At(x1, y0)
	bottom := (1-fx)*im.At(x0, y1) + fx*im.At(x1, y1)
	return (1-fy)*top + fy*bottom
}
