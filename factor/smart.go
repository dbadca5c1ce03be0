package factor

import (
	"fmt"
	"math"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/noise"
	"github.com/ryandeen31/gtsam/spatialmath"
	"github.com/ryandeen31/gtsam/transform"
)

// DegeneracyMode selects what a smart factor does when triangulation is degenerate.
type DegeneracyMode string

const (
	// IgnoreDegeneracy treats the factor as inactive for the pass: zero error and a
	// zero-contribution linearization. Kept for backward compatibility even though
	// semantically a no-op.
	IgnoreDegeneracy = DegeneracyMode("ignore")
	// RotationOnlyDegeneracy reduces the factor to a constraint relating only the
	// relative orientations of the observing poses.
	RotationOnlyDegeneracy = DegeneracyMode("rotation_only")
	// PropagateDegeneracy attempts full elimination regardless of conditioning.
	// Numerically risky; use only when explicitly configured.
	PropagateDegeneracy = DegeneracyMode("propagate")
)

// LinearizationMode selects the emitted linear factor representation. Only the
// Hessian path is implemented; the Jacobian variants are reserved alternative
// eliminations producing equivalent information with different sparsity.
type LinearizationMode string

const (
	// HessianLinearization emits information-form factors.
	HessianLinearization = LinearizationMode("hessian")
	// JacobianSVDLinearization is reserved.
	JacobianSVDLinearization = LinearizationMode("jacobian_svd")
	// JacobianQLinearization is reserved.
	JacobianQLinearization = LinearizationMode("jacobian_q")
)

// Config holds the construction parameters of a smart projection factor. All fields
// are fixed once the factor is built.
type Config struct {
	// RankTolerance is the triangulation conditioning floor.
	RankTolerance float64 `json:"rank_tolerance"`
	// LinearizationThreshold is the pose-change trigger for relinearization;
	// negative means always relinearize.
	LinearizationThreshold float64 `json:"linearization_threshold"`
	// Degeneracy picks the fallback for degenerate triangulations.
	Degeneracy DegeneracyMode `json:"degeneracy_mode"`
	// EnableRefinement turns on iterative refinement of the linear triangulation.
	EnableRefinement bool `json:"enable_refinement"`
	// Mode is the emitted linear factor representation.
	Mode LinearizationMode `json:"linearization_mode"`
	// LandmarkDistanceThreshold is the sanity bound on landmark distance from any
	// observing camera.
	LandmarkDistanceThreshold float64 `json:"landmark_distance_threshold"`
	// DynamicOutlierRejectionThreshold gates observations whose whitened residual
	// norm exceeds it; negative disables the gate.
	DynamicOutlierRejectionThreshold float64 `json:"dynamic_outlier_rejection_threshold"`
}

// DefaultConfig mirrors the conventional smart factor defaults: always
// relinearize, ignore degenerate triangulations, no outlier gate.
func DefaultConfig() Config {
	return Config{
		RankTolerance:                    1e-9,
		LinearizationThreshold:           -1,
		Degeneracy:                       IgnoreDegeneracy,
		EnableRefinement:                 false,
		Mode:                             HessianLinearization,
		LandmarkDistanceThreshold:        1e10,
		DynamicOutlierRejectionThreshold: -1,
	}
}

// relative singular-value cutoff when inverting a well-conditioned landmark block.
const pointInversionTol = 1e-12

// linearizationCache holds the state of the last linearization so it can be reused
// when poses have barely moved. Owned and mutated by a single factor; this is what
// makes concurrent Linearize calls on one factor unsafe.
type linearizationCache struct {
	valid  bool
	poses  []*spatialmath.Pose
	result TriangulationResult
	factor *HessianFactor
}

// SmartProjectionFactor constrains the poses observing a single landmark through
// pixel measurements, eliminating the landmark itself by Schur complement at every
// linearization. Calibration handles and the extrinsic are shared and read-only;
// distinct factors may be linearized concurrently, one factor may not.
type SmartProjectionFactor struct {
	config         Config
	keys           []Key
	measured       []r2.Point
	calibrations   []*transform.PinholeCameraModel
	noiseModels    []noise.Model
	bodyPoseSensor *spatialmath.Pose // nil means identity
	logger         golog.Logger

	cache            linearizationCache
	relinearizations int
}

var _ NonlinearFactor = (*SmartProjectionFactor)(nil)

// NewSmartProjectionFactor builds a factor over the given observations. The
// parallel lists must agree in length or construction fails with
// ErrDimensionMismatch. bodyPoseSensor may be nil for a sensor mounted at the body
// origin; logger may be nil to silence debug events.
func NewSmartProjectionFactor(
	config Config,
	keys []Key,
	measurements []r2.Point,
	calibrations []*transform.PinholeCameraModel,
	noiseModels []noise.Model,
	bodyPoseSensor *spatialmath.Pose,
	logger golog.Logger,
) (*SmartProjectionFactor, error) {
	if len(keys) != len(measurements) || len(keys) != len(calibrations) || len(keys) != len(noiseModels) {
		return nil, errors.Wrapf(ErrDimensionMismatch,
			"%d keys, %d measurements, %d calibrations, %d noise models",
			len(keys), len(measurements), len(calibrations), len(noiseModels))
	}
	for i, calibration := range calibrations {
		if err := calibration.CheckValid(); err != nil {
			return nil, errors.Wrapf(err, "calibration %d", i)
		}
	}
	if config.Mode == "" {
		config.Mode = HessianLinearization
	}
	if config.Degeneracy == "" {
		config.Degeneracy = IgnoreDegeneracy
	}
	f := &SmartProjectionFactor{
		config:         config,
		bodyPoseSensor: bodyPoseSensor,
		logger:         logger,
	}
	f.keys = append(f.keys, keys...)
	f.measured = append(f.measured, measurements...)
	f.calibrations = append(f.calibrations, calibrations...)
	f.noiseModels = append(f.noiseModels, noiseModels...)
	return f, nil
}

// Add appends one observation: a pixel measurement of the landmark from the pose
// with the given key, taken with the given calibration and noise model.
func (f *SmartProjectionFactor) Add(
	measurement r2.Point,
	key Key,
	calibration *transform.PinholeCameraModel,
	noiseModel noise.Model,
) error {
	if err := calibration.CheckValid(); err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	f.measured = append(f.measured, measurement)
	f.calibrations = append(f.calibrations, calibration)
	f.noiseModels = append(f.noiseModels, noiseModel)
	f.cache.valid = false
	return nil
}

// Keys returns the observing pose keys in observation order.
func (f *SmartProjectionFactor) Keys() []Key {
	out := make([]Key, len(f.keys))
	copy(out, f.keys)
	return out
}

// Dim returns the total residual dimension, two per observation.
func (f *SmartProjectionFactor) Dim() int {
	return 2 * len(f.measured)
}

// Measurements returns the pixel measurements in observation order.
func (f *SmartProjectionFactor) Measurements() []r2.Point {
	out := make([]r2.Point, len(f.measured))
	copy(out, f.measured)
	return out
}

// Calibration returns the shared calibration handles in observation order.
func (f *SmartProjectionFactor) Calibration() []*transform.PinholeCameraModel {
	out := make([]*transform.PinholeCameraModel, len(f.calibrations))
	copy(out, f.calibrations)
	return out
}

// BodyPoseSensor returns the sensor-to-body extrinsic, identity if unset.
func (f *SmartProjectionFactor) BodyPoseSensor() *spatialmath.Pose {
	if f.bodyPoseSensor == nil {
		return spatialmath.NewZeroPose()
	}
	return f.bodyPoseSensor
}

// SetLogger installs a logger for debug events. Not safe to call concurrently with
// Linearize.
func (f *SmartProjectionFactor) SetLogger(logger golog.Logger) {
	f.logger = logger
}

// Cameras assembles one camera per observation from the current pose values,
// composing each pose with the extrinsic. Fails with ErrMissingVariable when a
// referenced key is absent.
func (f *SmartProjectionFactor) Cameras(values Values) ([]*transform.PinholeCamera, error) {
	cameras := make([]*transform.PinholeCamera, len(f.keys))
	for i, key := range f.keys {
		pose, err := values.PoseAt(key)
		if err != nil {
			return nil, err
		}
		if f.bodyPoseSensor != nil {
			pose = spatialmath.Compose(pose, f.bodyPoseSensor)
		}
		cameras[i] = transform.NewPinholeCamera(pose, f.calibrations[i])
	}
	return cameras, nil
}

// triangulateSafe triangulates from the assembled cameras and applies the factor's
// distance bound on top of the triangulator's own classification.
func (f *SmartProjectionFactor) triangulateSafe(cameras []*transform.PinholeCamera) (TriangulationResult, error) {
	result, err := TriangulatePoint(cameras, f.measured, f.config.RankTolerance, f.config.EnableRefinement)
	if err != nil {
		return result, err
	}
	if result.Status == TriangulationValid {
		for _, cam := range cameras {
			if cam.DistanceTo(result.Point) > f.config.LandmarkDistanceThreshold {
				result.Status = TriangulationFarPoint
				break
			}
		}
	}
	return result, nil
}

// triangulateGated interleaves the outlier gate with triangulation: gated
// observations are removed and the remainder retriangulated until the gate mask is
// stable, so the resulting estimate, and everything linearized from it, is
// independent of the gated pixels. When gating at the current estimate would leave
// fewer than two observations, only the worst-residual observation is dropped that
// round. With the gate disabled this is a single triangulation over all
// observations.
func (f *SmartProjectionFactor) triangulateGated(cameras []*transform.PinholeCamera) (TriangulationResult, []bool, error) {
	mask := make([]bool, len(cameras))
	for i := range mask {
		mask[i] = true
	}
	result, err := f.triangulateSafe(cameras)
	if err != nil || f.config.DynamicOutlierRejectionThreshold < 0 {
		return result, mask, err
	}

	for round := 0; round < len(cameras)+2 && result.Status == TriangulationValid; round++ {
		newMask := f.outlierMask(cameras, result.Point)
		if countMask(newMask) < 2 {
			newMask = f.dropWorst(cameras, result.Point, mask)
		}
		if equalMask(newMask, mask) {
			break
		}
		mask = newMask

		keptCameras := make([]*transform.PinholeCamera, 0, len(cameras))
		keptMeasurements := make([]r2.Point, 0, len(cameras))
		for i, keep := range mask {
			if keep {
				keptCameras = append(keptCameras, cameras[i])
				keptMeasurements = append(keptMeasurements, f.measured[i])
			}
		}
		if len(keptCameras) < 2 {
			break
		}
		result, err = TriangulatePoint(keptCameras, keptMeasurements, f.config.RankTolerance, f.config.EnableRefinement)
		if err != nil {
			return result, mask, err
		}
		if result.Status == TriangulationValid {
			for _, cam := range keptCameras {
				if cam.DistanceTo(result.Point) > f.config.LandmarkDistanceThreshold {
					result.Status = TriangulationFarPoint
					break
				}
			}
		}
	}
	return result, mask, nil
}

// outlierMask marks, per observation, whether it survives the gate at the given
// point. Observations the point falls behind are excluded as well.
func (f *SmartProjectionFactor) outlierMask(cameras []*transform.PinholeCamera, pt r3.Vector) []bool {
	mask := make([]bool, len(cameras))
	for i, cam := range cameras {
		if norm, ok := f.whitenedResidualNorm(cam, i, pt); ok && norm <= f.config.DynamicOutlierRejectionThreshold {
			mask[i] = true
		} else {
			f.debugf("observation %v gated, whitened residual above %g",
				f.keys[i], f.config.DynamicOutlierRejectionThreshold)
		}
	}
	return mask
}

// dropWorst returns a copy of mask with the kept observation of largest whitened
// residual at pt excluded.
func (f *SmartProjectionFactor) dropWorst(cameras []*transform.PinholeCamera, pt r3.Vector, mask []bool) []bool {
	worst, worstNorm := -1, -1.0
	for i, keep := range mask {
		if !keep {
			continue
		}
		norm, ok := f.whitenedResidualNorm(cameras[i], i, pt)
		if !ok {
			norm = math.Inf(1)
		}
		if norm > worstNorm {
			worst, worstNorm = i, norm
		}
	}
	out := make([]bool, len(mask))
	copy(out, mask)
	if worst >= 0 {
		out[worst] = false
	}
	return out
}

// whitenedResidualNorm returns the whitened residual norm of observation i at pt,
// and false when the point is behind that camera.
func (f *SmartProjectionFactor) whitenedResidualNorm(cam *transform.PinholeCamera, i int, pt r3.Vector) (float64, bool) {
	predicted, err := cam.Project(pt)
	if err != nil {
		return 0, false
	}
	residual := f.noiseModels[i].Whiten([]float64{
		f.measured[i].X - predicted.X,
		f.measured[i].Y - predicted.Y,
	})
	return math.Hypot(residual[0], residual[1]), true
}

func countMask(mask []bool) int {
	n := 0
	for _, keep := range mask {
		if keep {
			n++
		}
	}
	return n
}

func equalMask(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Error returns the scalar cost at the given values: the sum of squared whitened
// residuals over non-gated observations, or zero when the factor is inactive.
func (f *SmartProjectionFactor) Error(values Values) (float64, error) {
	cameras, err := f.Cameras(values)
	if err != nil {
		return 0, err
	}
	result, mask, err := f.triangulateGated(cameras)
	if err != nil {
		return 0, err
	}

	switch result.Status {
	case TriangulationFarPoint:
		return 0, nil
	case TriangulationDegenerate, TriangulationBehindCamera:
		switch f.config.Degeneracy {
		case IgnoreDegeneracy:
			return 0, nil
		case RotationOnlyDegeneracy:
			direction := f.meanDirection(cameras)
			residuals := f.whitenedResidualsAtInfinity(cameras, direction)
			return sumGatedSquares(residuals, f.config.DynamicOutlierRejectionThreshold), nil
		}
		fallthrough
	default:
		residuals := f.whitenedResiduals(cameras, result.Point)
		total := 0.0
		for i, r := range residuals {
			if r == nil || !mask[i] {
				continue
			}
			total += r[0]*r[0] + r[1]*r[1]
		}
		return total, nil
	}
}

// whitenedResiduals returns one whitened residual per observation, nil entries for
// observations the point falls behind.
func (f *SmartProjectionFactor) whitenedResiduals(cameras []*transform.PinholeCamera, pt r3.Vector) [][]float64 {
	residuals := make([][]float64, len(cameras))
	for i, cam := range cameras {
		predicted, err := cam.Project(pt)
		if err != nil {
			f.debugf("observation %v: %v", f.keys[i], err)
			continue
		}
		residuals[i] = f.noiseModels[i].Whiten([]float64{
			f.measured[i].X - predicted.X,
			f.measured[i].Y - predicted.Y,
		})
	}
	return residuals
}

func (f *SmartProjectionFactor) whitenedResidualsAtInfinity(cameras []*transform.PinholeCamera, dir r3.Vector) [][]float64 {
	residuals := make([][]float64, len(cameras))
	for i, cam := range cameras {
		predicted, err := cam.ProjectAtInfinity(dir)
		if err != nil {
			f.debugf("observation %v at infinity: %v", f.keys[i], err)
			continue
		}
		residuals[i] = f.noiseModels[i].Whiten([]float64{
			f.measured[i].X - predicted.X,
			f.measured[i].Y - predicted.Y,
		})
	}
	return residuals
}

// sumGatedSquares sums squared residual norms, skipping nil residuals and, when the
// gate threshold is non-negative, residuals whose norm exceeds it.
func sumGatedSquares(residuals [][]float64, gateThreshold float64) float64 {
	total := 0.0
	for _, r := range residuals {
		if r == nil {
			continue
		}
		normSq := r[0]*r[0] + r[1]*r[1]
		if gateThreshold >= 0 && math.Sqrt(normSq) > gateThreshold {
			continue
		}
		total += normSq
	}
	return total
}

// Linearize emits the information-form factor over the observing poses at the given
// values, reusing the cached linearization when no pose has moved beyond the
// relinearization threshold since it was computed. Mutates the cache; a single
// factor must not be linearized concurrently with itself.
func (f *SmartProjectionFactor) Linearize(values Values) (*HessianFactor, error) {
	currentPoses := make([]*spatialmath.Pose, len(f.keys))
	for i, key := range f.keys {
		pose, err := values.PoseAt(key)
		if err != nil {
			return nil, err
		}
		currentPoses[i] = pose
	}

	if f.config.LinearizationThreshold >= 0 && f.cache.valid {
		maxDelta := 0.0
		for i, pose := range currentPoses {
			if d := spatialmath.DeltaNorm(f.cache.poses[i], pose); d > maxDelta {
				maxDelta = d
			}
		}
		if maxDelta < f.config.LinearizationThreshold {
			f.debugf("reusing cached linearization, max pose delta %g", maxDelta)
			return f.cache.factor, nil
		}
	}

	cameras, err := f.Cameras(values)
	if err != nil {
		return nil, err
	}
	result, mask, err := f.triangulateGated(cameras)
	if err != nil {
		return nil, err
	}

	var linear *HessianFactor
	switch result.Status {
	case TriangulationFarPoint:
		f.debugf("landmark beyond distance bound, dropping contribution")
		linear = NewZeroHessianFactor()
	case TriangulationDegenerate, TriangulationBehindCamera:
		switch f.config.Degeneracy {
		case RotationOnlyDegeneracy:
			f.debugf("degenerate triangulation (%s), falling back to rotation-only constraint", result.Status)
			linear = f.linearizeAtInfinity(cameras)
		case PropagateDegeneracy:
			f.debugf("degenerate triangulation (%s), propagating as configured", result.Status)
			linear = f.linearizeAtPoint(cameras, result.Point, mask, math.Max(f.config.RankTolerance, pointInversionTol))
		default:
			f.debugf("degenerate triangulation (%s), ignoring factor this pass", result.Status)
			linear = NewZeroHessianFactor()
		}
	default:
		linear = f.linearizeAtPoint(cameras, result.Point, mask, pointInversionTol)
	}

	f.relinearizations++
	f.cache = linearizationCache{
		valid:  true,
		poses:  clonePoses(currentPoses),
		result: result,
		factor: linear,
	}
	return linear, nil
}

// linearizeAtPoint builds the whitened joint system at the triangulated point and
// eliminates the point block. Observations outside the gate mask, and observations
// the point falls behind, are excluded from this pass; the emitted factor's keys
// are exactly the poses that kept an observation.
func (f *SmartProjectionFactor) linearizeAtPoint(
	cameras []*transform.PinholeCamera,
	pt r3.Vector,
	mask []bool,
	pinvTol float64,
) *HessianFactor {
	keptKeys := make([]Key, 0, len(cameras))
	poseJacs := make([]*mat.Dense, 0, len(cameras))
	pointJacs := make([]*mat.Dense, 0, len(cameras))
	residuals := make([][]float64, 0, len(cameras))

	extrinsicAdj := f.extrinsicAdjoint()
	for i, cam := range cameras {
		if !mask[i] {
			continue
		}
		predicted, dPose, dPoint, err := cam.ProjectWithJacobians(pt)
		if err != nil {
			f.debugf("observation %v excluded: %v", f.keys[i], err)
			continue
		}
		residual := f.noiseModels[i].Whiten([]float64{
			f.measured[i].X - predicted.X,
			f.measured[i].Y - predicted.Y,
		})
		if extrinsicAdj != nil {
			chained := new(mat.Dense)
			chained.Mul(dPose, extrinsicAdj)
			dPose = chained
		}
		f.noiseModels[i].WhitenJacobian(dPose)
		f.noiseModels[i].WhitenJacobian(dPoint)

		keptKeys = append(keptKeys, f.keys[i])
		poseJacs = append(poseJacs, dPose)
		pointJacs = append(pointJacs, dPoint)
		residuals = append(residuals, residual)
	}
	if len(keptKeys) == 0 {
		return NewZeroHessianFactor()
	}
	return schurComplement(keptKeys, poseJacs, pointJacs, residuals, pinvTol)
}

// linearizeAtInfinity builds the rotation-only fallback: the landmark is
// re-parameterized as a unit direction at infinity, so translation columns vanish
// and eliminating the direction block leaves a constraint on relative orientations
// only. The direction block is rank deficient along the ray, hence the
// pseudo-inverse with the factor's rank tolerance.
func (f *SmartProjectionFactor) linearizeAtInfinity(cameras []*transform.PinholeCamera) *HessianFactor {
	direction := f.meanDirection(cameras)

	keptKeys := make([]Key, 0, len(cameras))
	poseJacs := make([]*mat.Dense, 0, len(cameras))
	pointJacs := make([]*mat.Dense, 0, len(cameras))
	residuals := make([][]float64, 0, len(cameras))

	extrinsicAdj := f.extrinsicAdjoint()
	for i, cam := range cameras {
		predicted, dPose, dDir, err := cam.ProjectAtInfinityWithJacobians(direction)
		if err != nil {
			f.debugf("observation %v excluded at infinity: %v", f.keys[i], err)
			continue
		}
		residual := f.noiseModels[i].Whiten([]float64{
			f.measured[i].X - predicted.X,
			f.measured[i].Y - predicted.Y,
		})
		if f.gated(residual, i) {
			continue
		}
		if extrinsicAdj != nil {
			chained := new(mat.Dense)
			chained.Mul(dPose, extrinsicAdj)
			dPose = chained
		}
		f.noiseModels[i].WhitenJacobian(dPose)
		f.noiseModels[i].WhitenJacobian(dDir)

		keptKeys = append(keptKeys, f.keys[i])
		poseJacs = append(poseJacs, dPose)
		pointJacs = append(pointJacs, dDir)
		residuals = append(residuals, residual)
	}
	if len(keptKeys) == 0 {
		return NewZeroHessianFactor()
	}
	return schurComplement(keptKeys, poseJacs, pointJacs, residuals, math.Max(f.config.RankTolerance, 1e-9))
}

// gated reports whether the outlier gate excludes this whitened residual, logging
// the exclusion. The decision is per-pass; it is re-evaluated at every
// relinearization.
func (f *SmartProjectionFactor) gated(residual []float64, i int) bool {
	if f.config.DynamicOutlierRejectionThreshold < 0 {
		return false
	}
	norm := math.Hypot(residual[0], residual[1])
	if norm > f.config.DynamicOutlierRejectionThreshold {
		f.debugf("observation %v gated, whitened residual %g above %g",
			f.keys[i], norm, f.config.DynamicOutlierRejectionThreshold)
		return true
	}
	return false
}

// meanDirection averages the unit back-projected rays of all observations into a
// single world direction for the point-at-infinity parameterization.
func (f *SmartProjectionFactor) meanDirection(cameras []*transform.PinholeCamera) r3.Vector {
	sum := r3.Vector{}
	for i, cam := range cameras {
		sum = sum.Add(cam.BackProject(f.measured[i]))
	}
	if sum.Norm() == 0 {
		return r3.Vector{Z: 1}
	}
	return sum.Normalize()
}

// extrinsicAdjoint returns Ad(bodyPoseSensor⁻¹), mapping a body-pose tangent
// perturbation into the camera frame, or nil when there is no extrinsic.
func (f *SmartProjectionFactor) extrinsicAdjoint() *mat.Dense {
	if f.bodyPoseSensor == nil {
		return nil
	}
	return spatialmath.Invert(f.bodyPoseSensor).Adjoint()
}

func clonePoses(poses []*spatialmath.Pose) []*spatialmath.Pose {
	out := make([]*spatialmath.Pose, len(poses))
	for i, p := range poses {
		out[i] = p.Clone()
	}
	return out
}

// Equals compares type, keys, measurements, calibration handles, noise sigmas,
// extrinsic and configuration within tol.
func (f *SmartProjectionFactor) Equals(other NonlinearFactor, tol float64) bool {
	o, ok := other.(*SmartProjectionFactor)
	if !ok {
		return false
	}
	if len(f.keys) != len(o.keys) {
		return false
	}
	for i := range f.keys {
		if f.keys[i] != o.keys[i] {
			return false
		}
		if f.measured[i].Sub(o.measured[i]).Norm() > tol {
			return false
		}
		if !f.calibrations[i].AlmostEqual(o.calibrations[i], tol) {
			return false
		}
		if !sigmasAlmostEqual(f.noiseModels[i].Sigmas(), o.noiseModels[i].Sigmas(), tol) {
			return false
		}
	}
	if (f.bodyPoseSensor == nil) != (o.bodyPoseSensor == nil) {
		return false
	}
	if f.bodyPoseSensor != nil && !spatialmath.PoseAlmostEqual(f.bodyPoseSensor, o.bodyPoseSensor, tol) {
		return false
	}
	return f.config == o.config
}

func sigmasAlmostEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// String renders the factor's keys, measurements and configuration.
func (f *SmartProjectionFactor) String() string {
	parts := make([]string, 0, len(f.keys)+1)
	for i, k := range f.keys {
		parts = append(parts, fmt.Sprintf("%v: (%.3f, %.3f)", k, f.measured[i].X, f.measured[i].Y))
	}
	return fmt.Sprintf("SmartProjectionFactor{%s} mode=%s degeneracy=%s",
		strings.Join(parts, ", "), f.config.Mode, f.config.Degeneracy)
}

// Print logs the factor through the given logger.
func (f *SmartProjectionFactor) Print(logger golog.Logger) {
	logger.Info(f.String())
	if f.bodyPoseSensor != nil {
		logger.Infof("body_pose_sensor: %v", f.bodyPoseSensor.Point())
	}
}

func (f *SmartProjectionFactor) debugf(format string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debugf(format, args...)
	}
}
