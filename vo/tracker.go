package vo

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/densevo/camera"
	"github.com/viam-labs/densevo/cost"
	"github.com/viam-labs/densevo/lie"
	"github.com/viam-labs/densevo/optimize"
	"github.com/viam-labs/densevo/rimage"
)

// TrackerConfig configures the coarse-to-fine tracker. Construct it with
// DefaultTrackerConfig and adjust fields before handing it to NewTracker;
// the tracker never mutates it.
type TrackerConfig struct {
	// PyramidLevels is the number of image pyramid levels, finest at 0.
	PyramidLevels int
	// MinDisparity and DisparityWindow configure block matching; the maximum
	// disparity is derived per level from the downsampling factor.
	MinDisparity    int
	DisparityWindow int
	// HuberDelta is the robust-loss threshold on photometric residuals, in
	// normalized intensity units.
	HuberDelta float64
	// Stiffness scales photometric residuals (inverse intensity noise).
	Stiffness float64
	// Solver is passed to every per-level problem.
	Solver optimize.Options
	// FirstPose is the world pose of the first keyframe; nil means identity.
	FirstPose *lie.SE3
}

// DefaultTrackerConfig mirrors the tracking configuration the pipeline was
// tuned with.
func DefaultTrackerConfig() TrackerConfig {
	solver := optimize.DefaultOptions()
	solver.AllowNondecreasingSteps = true
	solver.MaxNondecreasingSteps = 3
	solver.MinCostDecrease = 0.99
	return TrackerConfig{
		PyramidLevels:   4,
		MinDisparity:    1,
		DisparityWindow: 5,
		HuberDelta:      0.1,
		Stiffness:       1,
		Solver:          solver,
	}
}

// Tracker estimates camera motion from a stream of rectified stereo pairs.
// It is single-threaded: Track blocks until the frame is processed.
type Tracker struct {
	cam       *camera.Stereo
	cfg       TrackerConfig
	logger    golog.Logger
	keyframes []*Keyframe
}

// NewTracker validates the configuration and returns a tracker.
func NewTracker(cam *camera.Stereo, cfg TrackerConfig, logger golog.Logger) (*Tracker, error) {
	if cfg.PyramidLevels < 1 {
		return nil, errors.Errorf("need at least one pyramid level, got %d", cfg.PyramidLevels)
	}
	if cfg.DisparityWindow < 1 || cfg.DisparityWindow%2 == 0 {
		return nil, errors.Errorf("disparity window must be odd and positive, got %d", cfg.DisparityWindow)
	}
	if cfg.HuberDelta <= 0 {
		return nil, errors.Errorf("huber delta must be positive, got %g", cfg.HuberDelta)
	}
	if cfg.Stiffness <= 0 {
		return nil, errors.Errorf("stiffness must be positive, got %g", cfg.Stiffness)
	}
	return &Tracker{cam: cam, cfg: cfg, logger: logger}, nil
}

// Keyframes returns the keyframes accumulated so far, oldest first.
func (t *Tracker) Keyframes() []*Keyframe {
	return t.keyframes
}

// Track ingests a stereo pair, estimates its motion relative to the previous
// keyframe and appends the resulting keyframe. Per-level solver failures are
// logged and skipped, carrying that level's warm start forward, so a single
// degenerate level does not abort tracking.
func (t *Tracker) Track(left, right *rimage.FloatImage) (*Keyframe, error) {
	if left.Width() != t.cam.Width || left.Height() != t.cam.Height {
		return nil, errors.Errorf("frame size (%d, %d) does not match camera bounds (%d, %d)",
			left.Width(), left.Height(), t.cam.Width, t.cam.Height)
	}

	pose := t.cfg.FirstPose
	if pose == nil {
		pose = lie.IdentitySE3()
	}
	kf, err := NewKeyframe(left, right, pose, t.cfg)
	if err != nil {
		return nil, err
	}

	if len(t.keyframes) == 0 {
		// nothing to track against yet
		kf.Covar = scaledCovar(1e-6)
		t.keyframes = append(t.keyframes, kf)
		return kf, nil
	}

	ref := t.keyframes[len(t.keyframes)-1]
	relative, trackErr := t.trackMotion(ref, kf)
	if trackErr != nil {
		t.logger.Warnw("some pyramid levels failed; using best available estimate", "error", trackErr)
	}
	kf.Pose = relative.Compose(ref.Pose)
	t.keyframes = append(t.keyframes, kf)
	return kf, nil
}

// trackMotion estimates T_track_ref by solving one photometric problem per
// pyramid level, coarsest first, seeding each level with the previous
// level's solution.
func (t *Tracker) trackMotion(ref, track *Keyframe) (*lie.SE3, error) {
	pose := lie.IdentitySE3()
	var trackErr error

	for level := t.cfg.PyramidLevels - 1; level >= 0; level-- {
		im := ref.Image(level)
		factor := math.Pow(2, -float64(level))
		levelCam := t.cam.Scaled(factor, im.Width(), im.Height())

		photo, err := cost.NewPhotometric(
			levelCam, im, ref.Disparity(level), ref.Gradient(level),
			track.Image(level), t.cfg.Stiffness)
		if err != nil {
			trackErr = multierr.Append(trackErr, errors.Wrapf(err, "pyramid level %d", level))
			continue
		}

		problem := optimize.NewProblem(t.cfg.Solver, t.logger)
		if err := problem.AddParameter("T_1_0", pose); err != nil {
			return nil, err
		}
		if err := problem.AddResidualBlock(photo, optimize.NewHuberLoss(t.cfg.HuberDelta), "T_1_0"); err != nil {
			return nil, err
		}

		res, err := problem.Solve()
		switch {
		case err != nil:
			trackErr = multierr.Append(trackErr, errors.Wrapf(err, "pyramid level %d", level))
			// keep the warm start from the coarser level
		case res.Status == optimize.StatusNoValidMeasurements:
			t.logger.Debugw("no valid measurements; carrying warm start", "level", level)
		default:
			pose = problem.Parameter("T_1_0").(*lie.SE3)
			t.logger.Debugw("tracked pyramid level",
				"level", level,
				"status", res.Status.String(),
				"cost", res.Cost,
				"iterations", res.Iterations)
		}
	}
	return pose, trackErr
}

func scaledCovar(s float64) *mat.SymDense {
	c := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		c.SetSym(i, i, s)
	}
	return c
}
