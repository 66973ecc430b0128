// Package vo implements dense stereo visual odometry: a coarse-to-fine
// photometric tracker that estimates frame-to-frame camera motion by running
// one Gauss-Newton problem per pyramid level, warm-starting each level from
// the previous one.
package vo

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/lie"
	"github.com/viam-labs/densevo/rimage"
)

// pyramidLevel holds the dense grids the photometric cost consumes at one
// resolution. Disparity and gradient are computed on the left (reference)
// image only; the gradient is the frozen linearization constant shared by
// all solver iterations at this level.
type pyramidLevel struct {
	image     *rimage.FloatImage
	disparity *rimage.FloatImage
	gradient  *rimage.Gradient
}

// Keyframe is one stereo frame prepared for dense tracking: an image pyramid
// with per-level disparity and gradient, plus the frame's world pose.
type Keyframe struct {
	// Pose is T_c_w, the transformation from the world frame to this
	// camera frame.
	Pose *lie.SE3
	// Covar is the pose covariance carried alongside the estimate.
	Covar *mat.SymDense

	levels []pyramidLevel
}

// NewKeyframe builds the pyramids for a rectified stereo pair. Disparity is
// matched independently at every level, with the search range shrinking at
// coarser levels the way the full-resolution range shrinks under
// downsampling.
func NewKeyframe(left, right *rimage.FloatImage, pose *lie.SE3, cfg TrackerConfig) (*Keyframe, error) {
	if left.Width() != right.Width() || left.Height() != right.Height() {
		return nil, errors.Errorf("stereo pair sizes differ: (%d, %d) vs (%d, %d)",
			left.Width(), left.Height(), right.Width(), right.Height())
	}
	pyrLeft := rimage.Pyramid(left, cfg.PyramidLevels)
	pyrRight := rimage.Pyramid(right, cfg.PyramidLevels)

	kf := &Keyframe{
		Pose:   pose,
		Covar:  scaledCovar(1),
		levels: make([]pyramidLevel, cfg.PyramidLevels),
	}
	for level := 0; level < cfg.PyramidLevels; level++ {
		factor := math.Pow(2, -float64(level))
		maxDisp := int(math.Max(16, 64*factor)) + cfg.MinDisparity
		kf.levels[level] = pyramidLevel{
			image: pyrLeft[level],
			disparity: rimage.MatchDisparity(
				pyrLeft[level], pyrRight[level],
				cfg.MinDisparity, maxDisp, cfg.DisparityWindow),
			gradient: rimage.Sobel(pyrLeft[level]),
		}
	}
	return kf, nil
}

// Levels returns the number of pyramid levels.
func (kf *Keyframe) Levels() int {
	return len(kf.levels)
}

// Image returns the intensity grid at a pyramid level.
func (kf *Keyframe) Image(level int) *rimage.FloatImage {
	return kf.levels[level].image
}

// Disparity returns the disparity grid at a pyramid level.
func (kf *Keyframe) Disparity(level int) *rimage.FloatImage {
	return kf.levels[level].disparity
}

// Gradient returns the reference-image gradient at a pyramid level.
func (kf *Keyframe) Gradient(level int) *rimage.Gradient {
	return kf.levels[level].gradient
}
