package rimage

import "math"

// MatchDisparity computes a dense disparity map between a rectified image
// pair by sum-of-absolute-differences block matching along each row, with
// parabolic sub-pixel refinement around the best match. Pixels whose window
// leaves the image, or with no candidate disparity in [minDisp, maxDisp],
// are NaN.
func MatchDisparity(left, right *FloatImage, minDisp, maxDisp, window int) *FloatImage {
	w, h := left.Width(), left.Height()
	half := window / 2

	out := NewFloatImage(w, h)
	out.Fill(math.NaN())

	sad := func(x, y, d int) float64 {
		var s float64
		for ky := -half; ky <= half; ky++ {
			for kx := -half; kx <= half; kx++ {
				s += math.Abs(left.At(x+kx, y+ky) - right.At(x-d+kx, y+ky))
			}
		}
		return s
	}

	for y := half; y < h-half; y++ {
		for x := half; x < w-half; x++ {
			dMax := maxDisp
			if x-half < dMax {
				dMax = x - half
			}
			if dMax < minDisp {
				continue
			}

			bestD := -1
			bestScore := math.Inf(1)
			for d := minDisp; d <= dMax; d++ {
				if score := sad(x, y, d); score < bestScore {
					bestScore = score
					bestD = d
				}
			}
			if bestD < 0 {
				continue
			}

			disp := float64(bestD)
			if bestD > minDisp && bestD < dMax {
				prev := sad(x, y, bestD-1)
				next := sad(x, y, bestD+1)
				denom := prev - 2*bestScore + next
				if denom > 1e-12 {
					offset := 0.5 * (prev - next) / denom
					if math.Abs(offset) <= 0.5 {
						disp += offset
					}
				}
			}
			out.Set(x, y, disp)
		}
	}
	return out
}
