package factor

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/noise"
	"github.com/ryandeen31/gtsam/spatialmath"
	"github.com/ryandeen31/gtsam/transform"
)

// buildSmartFactor sets up a factor over cameras along the x axis observing
// truePt, together with values holding the true poses.
func buildSmartFactor(
	t *testing.T,
	config Config,
	offsets []float64,
	truePt r3.Vector,
) (*SmartProjectionFactor, Values) {
	t.Helper()
	cameras := camerasAlongX(offsets...)
	measurements := projectAll(t, cameras, truePt)

	iso, err := noise.NewIsotropic(2, 1)
	test.That(t, err, test.ShouldBeNil)

	keys := make([]Key, len(cameras))
	models := make([]*transform.PinholeCameraModel, len(cameras))
	noiseModels := make([]noise.Model, len(cameras))
	values := Values{}
	for i, cam := range cameras {
		keys[i] = Key(i + 1)
		models[i] = cam.Model
		noiseModels[i] = iso
		values[keys[i]] = cam.Pose
	}

	f, err := NewSmartProjectionFactor(config, keys, measurements, models, noiseModels, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	return f, values
}

func minEigenvalue(t *testing.T, info *mat.SymDense) float64 {
	t.Helper()
	var eig mat.EigenSym
	ok := eig.Factorize(info, false)
	test.That(t, ok, test.ShouldBeTrue)
	return eig.Values(nil)[0]
}

func TestSmartFactorErrorAtTruth(t *testing.T) {
	f, values := buildSmartFactor(t, DefaultConfig(),
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})
	cost, err := f.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeLessThan, 1e-9)
}

func TestSmartFactorLinearizeAtTruth(t *testing.T) {
	f, values := buildSmartFactor(t, DefaultConfig(),
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})
	linear, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)

	// pose blocks only, the landmark never appears
	test.That(t, linear.Dim(), test.ShouldEqual, 18)
	test.That(t, linear.Keys(), test.ShouldResemble, f.Keys())
	test.That(t, linear.IsZero(), test.ShouldBeFalse)

	// at the truth the gradient and constant vanish
	test.That(t, mat.Norm(linear.Gradient(), 2), test.ShouldBeLessThan, 1e-6)
	test.That(t, linear.Constant(), test.ShouldBeLessThan, 1e-9)

	test.That(t, minEigenvalue(t, linear.Information()), test.ShouldBeGreaterThan, -1e-7)
}

func TestSmartFactorPerturbedPose(t *testing.T) {
	f, values := buildSmartFactor(t, DefaultConfig(),
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})

	perturbed := Values{}
	for k, p := range values {
		perturbed[k] = p
	}
	perturbed[Key(2)] = spatialmath.Compose(values[Key(2)],
		spatialmath.NewPoseFromAxisAngle(r3.Vector{X: 0.02, Y: -0.01}, r3.Vector{Z: 1}, 0.01))

	cost, err := f.Error(perturbed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeGreaterThan, 0)

	linear, err := f.Linearize(perturbed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linear.IsZero(), test.ShouldBeFalse)
	test.That(t, minEigenvalue(t, linear.Information()), test.ShouldBeGreaterThan, -1e-7)
}

func TestSmartFactorCacheReuse(t *testing.T) {
	config := DefaultConfig()
	config.LinearizationThreshold = 10
	f, values := buildSmartFactor(t, config,
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})

	first, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.relinearizations, test.ShouldEqual, 1)

	// small pose changes stay under the threshold and reuse the cache
	nudged := Values{}
	for k, p := range values {
		nudged[k] = spatialmath.Compose(p, spatialmath.NewPoseFromPoint(r3.Vector{X: 1e-3, Y: -1e-3}))
	}
	second, err := f.Linearize(nudged)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second == first, test.ShouldBeTrue)
	test.That(t, f.relinearizations, test.ShouldEqual, 1)

	// a move past the threshold retriangulates
	moved := Values{}
	for k, p := range values {
		moved[k] = spatialmath.Compose(p, spatialmath.NewPoseFromPoint(r3.Vector{X: 20}))
	}
	third, err := f.Linearize(moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, third == first, test.ShouldBeFalse)
	test.That(t, f.relinearizations, test.ShouldEqual, 2)
}

func TestSmartFactorAlwaysRelinearize(t *testing.T) {
	// negative threshold disables the cache entirely
	f, values := buildSmartFactor(t, DefaultConfig(),
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})

	first, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	second, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, f.relinearizations, test.ShouldEqual, 2)
	test.That(t, second == first, test.ShouldBeFalse)
	test.That(t, mat.EqualApprox(first.Information(), second.Information(), 1e-12), test.ShouldBeTrue)
	test.That(t, mat.EqualApprox(first.Gradient(), second.Gradient(), 1e-12), test.ShouldBeTrue)
}

func TestSmartFactorOutlierGate(t *testing.T) {
	buildWithOutlier := func(extraPx float64) (*SmartProjectionFactor, Values) {
		config := DefaultConfig()
		config.DynamicOutlierRejectionThreshold = 10
		f, values := buildSmartFactor(t, config,
			[]float64{-1.5, -0.5, 0.5, 1.5}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})
		f.measured[3].X += extraPx
		return f, values
	}

	fNear, values := buildWithOutlier(60)
	fFar, _ := buildWithOutlier(120)

	near, err := fNear.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	far, err := fFar.Linearize(values)
	test.That(t, err, test.ShouldBeNil)

	// the gated observation drops out of the emitted factor entirely
	test.That(t, near.Keys(), test.ShouldResemble, []Key{1, 2, 3})
	test.That(t, near.Dim(), test.ShouldEqual, 18)

	// and the result does not depend on how wrong the gated pixel was
	test.That(t, mat.EqualApprox(near.Information(), far.Information(), 1e-12), test.ShouldBeTrue)
	test.That(t, mat.EqualApprox(near.Gradient(), far.Gradient(), 1e-12), test.ShouldBeTrue)
	test.That(t, near.Constant(), test.ShouldAlmostEqual, far.Constant(), 1e-12)

	// the surviving observations still agree with the values
	cost, err := fNear.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeLessThan, 1e-6)
}

func TestSmartFactorDegenerateIgnore(t *testing.T) {
	// coincident cameras cannot triangulate anything
	f, values := buildSmartFactor(t, DefaultConfig(),
		[]float64{0, 0}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})

	cost, err := f.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, 0)

	linear, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linear.IsZero(), test.ShouldBeTrue)
}

func TestSmartFactorRotationOnlyFallback(t *testing.T) {
	config := DefaultConfig()
	config.Degeneracy = RotationOnlyDegeneracy
	f, values := buildSmartFactor(t, config,
		[]float64{0, 0}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})

	cost, err := f.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeLessThan, 1e-9)

	linear, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linear.IsZero(), test.ShouldBeFalse)
	test.That(t, linear.Dim(), test.ShouldEqual, 12)

	// the fallback constrains orientation only
	info := linear.Information()
	for r := 0; r < 12; r++ {
		for c := 0; c < 12; c++ {
			if r%transform.PoseDim >= 3 || c%transform.PoseDim >= 3 {
				test.That(t, info.At(r, c), test.ShouldEqual, 0)
			}
		}
	}
	test.That(t, info.At(0, 0), test.ShouldBeGreaterThan, 0)
	test.That(t, minEigenvalue(t, info), test.ShouldBeGreaterThan, -1e-9)

	// translating the whole rig changes nothing
	shifted := Values{}
	for k, p := range values {
		shifted[k] = spatialmath.Compose(spatialmath.NewPoseFromPoint(r3.Vector{X: 5, Y: -2, Z: 1}), p)
	}
	shiftedLinear, err := f.Linearize(shifted)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.EqualApprox(linear.Information(), shiftedLinear.Information(), 1e-9), test.ShouldBeTrue)
}

func TestSmartFactorFarPoint(t *testing.T) {
	config := DefaultConfig()
	config.LandmarkDistanceThreshold = 5
	f, values := buildSmartFactor(t, config,
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})

	cost, err := f.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldEqual, 0)

	linear, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linear.IsZero(), test.ShouldBeTrue)
}

func TestSmartFactorExtrinsic(t *testing.T) {
	truePt := r3.Vector{X: 0.4, Y: -0.3, Z: 8}
	cameras := camerasAlongX(-1, 0, 1)
	measurements := projectAll(t, cameras, truePt)

	bodyPoseSensor := spatialmath.NewPoseFromAxisAngle(
		r3.Vector{X: 0.1, Z: 0.05}, r3.Vector{Y: 1}, 0.3)
	iso, err := noise.NewIsotropic(2, 1)
	test.That(t, err, test.ShouldBeNil)

	keys := make([]Key, len(cameras))
	models := make([]*transform.PinholeCameraModel, len(cameras))
	noiseModels := make([]noise.Model, len(cameras))
	values := Values{}
	for i, cam := range cameras {
		keys[i] = Key(i + 1)
		models[i] = cam.Model
		noiseModels[i] = iso
		// body pose composed with the extrinsic must land on the camera pose
		values[keys[i]] = spatialmath.Compose(cam.Pose, spatialmath.Invert(bodyPoseSensor))
	}

	f, err := NewSmartProjectionFactor(DefaultConfig(), keys, measurements, models, noiseModels, bodyPoseSensor, nil)
	test.That(t, err, test.ShouldBeNil)

	cost, err := f.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeLessThan, 1e-9)

	linear, err := f.Linearize(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, linear.Dim(), test.ShouldEqual, 18)
	test.That(t, mat.Norm(linear.Gradient(), 2), test.ShouldBeLessThan, 1e-6)
	test.That(t, minEigenvalue(t, linear.Information()), test.ShouldBeGreaterThan, -1e-7)
}

func TestSmartFactorAdd(t *testing.T) {
	truePt := r3.Vector{X: 0.4, Y: -0.3, Z: 8}
	f, values := buildSmartFactor(t, DefaultConfig(), []float64{-1, 0}, truePt)

	extra := camerasAlongX(1)[0]
	px, err := extra.Project(truePt)
	test.That(t, err, test.ShouldBeNil)
	iso, err := noise.NewIsotropic(2, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Add(px, Key(3), extra.Model, iso), test.ShouldBeNil)
	values[Key(3)] = extra.Pose

	test.That(t, len(f.Keys()), test.ShouldEqual, 3)
	test.That(t, f.Dim(), test.ShouldEqual, 6)
	cost, err := f.Error(values)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeLessThan, 1e-9)
}

func TestSmartFactorMissingVariable(t *testing.T) {
	f, values := buildSmartFactor(t, DefaultConfig(),
		[]float64{-1, 0, 1}, r3.Vector{X: 0.4, Y: -0.3, Z: 8})
	delete(values, Key(2))

	_, err := f.Error(values)
	test.That(t, errors.Is(err, ErrMissingVariable), test.ShouldBeTrue)
	_, err = f.Linearize(values)
	test.That(t, errors.Is(err, ErrMissingVariable), test.ShouldBeTrue)
}

func TestSmartFactorConstructionMismatch(t *testing.T) {
	model := triangulationModel()
	iso, err := noise.NewIsotropic(2, 1)
	test.That(t, err, test.ShouldBeNil)
	_, err = NewSmartProjectionFactor(DefaultConfig(),
		[]Key{1, 2},
		[]r2.Point{{X: 5, Y: 6}},
		[]*transform.PinholeCameraModel{model, model},
		[]noise.Model{iso, iso},
		nil, nil)
	test.That(t, errors.Is(err, ErrDimensionMismatch), test.ShouldBeTrue)
}

func TestSmartFactorEquals(t *testing.T) {
	truePt := r3.Vector{X: 0.4, Y: -0.3, Z: 8}
	f1, _ := buildSmartFactor(t, DefaultConfig(), []float64{-1, 0, 1}, truePt)
	f2, _ := buildSmartFactor(t, DefaultConfig(), []float64{-1, 0, 1}, truePt)
	test.That(t, f1.Equals(f2, 1e-9), test.ShouldBeTrue)

	// a different measurement breaks equality
	f3, _ := buildSmartFactor(t, DefaultConfig(), []float64{-1, 0, 1}, truePt)
	f3.measured[0].X += 0.5
	test.That(t, f1.Equals(f3, 1e-9), test.ShouldBeFalse)

	// so does a different calibration
	f4, _ := buildSmartFactor(t, DefaultConfig(), []float64{-1, 0, 1}, truePt)
	other := *triangulationModel().PinholeCameraIntrinsics
	other.Fx += 2
	f4.calibrations[1] = &transform.PinholeCameraModel{PinholeCameraIntrinsics: &other}
	test.That(t, f1.Equals(f4, 1e-9), test.ShouldBeFalse)

	// and a different configuration
	altConfig := DefaultConfig()
	altConfig.Degeneracy = RotationOnlyDegeneracy
	f5, _ := buildSmartFactor(t, altConfig, []float64{-1, 0, 1}, truePt)
	test.That(t, f1.Equals(f5, 1e-9), test.ShouldBeFalse)
}

func TestSmartFactorJSONRoundTrip(t *testing.T) {
	distortion, err := transform.NewBrownConrady([]float64{0.01, -0.002, 0.0005, 0.001, -0.0003})
	test.That(t, err, test.ShouldBeNil)
	model := &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: triangulationModel().PinholeCameraIntrinsics,
		Distortion:              distortion,
	}
	diag, err := noise.NewDiagonal([]float64{1.5, 2.0})
	test.That(t, err, test.ShouldBeNil)
	bodyPoseSensor := spatialmath.NewPoseFromAxisAngle(
		r3.Vector{X: 0.1, Z: 0.05}, r3.Vector{Y: 1}, 0.3)

	config := DefaultConfig()
	config.DynamicOutlierRejectionThreshold = 8
	original, err := NewSmartProjectionFactor(config,
		[]Key{4, 9},
		[]r2.Point{{X: 120.5, Y: 310.25}, {X: 333, Y: 12.75}},
		[]*transform.PinholeCameraModel{model, model},
		[]noise.Model{diag, diag},
		bodyPoseSensor, nil)
	test.That(t, err, test.ShouldBeNil)

	data, err := json.Marshal(original)
	test.That(t, err, test.ShouldBeNil)

	var restored SmartProjectionFactor
	test.That(t, json.Unmarshal(data, &restored), test.ShouldBeNil)
	test.That(t, original.Equals(&restored, 1e-12), test.ShouldBeTrue)

	// unknown versions are rejected rather than misread
	stale := bytes.Replace(data, []byte(`"version":1`), []byte(`"version":99`), 1)
	test.That(t, json.Unmarshal(stale, &restored), test.ShouldNotBeNil)
}
