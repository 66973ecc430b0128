package rimage

// pyrKernel is the 5-tap binomial approximation of a Gaussian used for
// pyramid construction.
var pyrKernel = [5]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// PyrDown blurs im with a separable 5-tap Gaussian and decimates it by two,
// replicating borders. The output is ceil(w/2) x ceil(h/2).
func PyrDown(im *FloatImage) *FloatImage {
	w, h := im.Width(), im.Height()

	// horizontal pass
	tmp := NewFloatImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for k := -2; k <= 2; k++ {
				s += pyrKernel[k+2] * im.atClamped(x+k, y)
			}
			tmp.Set(x, y, s)
		}
	}

	// vertical pass + decimation
	ow, oh := (w+1)/2, (h+1)/2
	out := NewFloatImage(ow, oh)
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			var s float64
			for k := -2; k <= 2; k++ {
				s += pyrKernel[k+2] * tmp.atClamped(2*x, 2*y+k)
			}
			out.Set(x, y, s)
		}
	}
	return out
}

// Pyramid returns levels images with the original at index 0 and each
// subsequent level downsampled by two.
func Pyramid(im *FloatImage, levels int) []*FloatImage {
	out := make([]*FloatImage, 0, levels)
	out = append(out, im)
	for level := 1; level < levels; level++ {
		out = append(out, PyrDown(out[level-1]))
	}
	return out
}
