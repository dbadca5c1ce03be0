package factor

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/ryandeen31/gtsam/spatialmath"
	"github.com/ryandeen31/gtsam/transform"
)

func triangulationModel() *transform.PinholeCameraModel {
	return &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{
			Width: 640, Height: 480,
			Fx: 500, Fy: 500, Ppx: 320, Ppy: 240,
		},
	}
}

func camerasAlongX(offsets ...float64) []*transform.PinholeCamera {
	model := triangulationModel()
	cameras := make([]*transform.PinholeCamera, len(offsets))
	for i, x := range offsets {
		cameras[i] = transform.NewPinholeCamera(spatialmath.NewPoseFromPoint(r3.Vector{X: x}), model)
	}
	return cameras
}

func projectAll(t *testing.T, cameras []*transform.PinholeCamera, pt r3.Vector) []r2.Point {
	t.Helper()
	measurements := make([]r2.Point, len(cameras))
	for i, cam := range cameras {
		px, err := cam.Project(pt)
		test.That(t, err, test.ShouldBeNil)
		measurements[i] = px
	}
	return measurements
}

func TestTriangulateRecoversPoint(t *testing.T) {
	cameras := camerasAlongX(-1, 0, 1)
	truePt := r3.Vector{X: 0.4, Y: -0.3, Z: 8}
	measurements := projectAll(t, cameras, truePt)

	result, err := TriangulatePoint(cameras, measurements, 1e-9, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Status, test.ShouldEqual, TriangulationValid)
	test.That(t, result.Point.Sub(truePt).Norm(), test.ShouldBeLessThan, 1e-6)
	test.That(t, result.Condition, test.ShouldBeGreaterThan, 1e-9)
}

func TestTriangulateCoincidentCamerasDegenerate(t *testing.T) {
	cameras := camerasAlongX(0, 0)
	truePt := r3.Vector{X: 0.4, Y: -0.3, Z: 8}
	measurements := projectAll(t, cameras, truePt)

	result, err := TriangulatePoint(cameras, measurements, 1e-9, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Status, test.ShouldEqual, TriangulationDegenerate)
}

func TestTriangulateBehindCamera(t *testing.T) {
	cameras := camerasAlongX(-1, 1)
	behindPt := r3.Vector{X: 0.2, Y: 0.1, Z: -5}

	// build pixels for the point by hand, it cannot be projected directly
	measurements := make([]r2.Point, len(cameras))
	for i, cam := range cameras {
		camPt := cam.Pose.InverseTransformPoint(behindPt)
		u, v := cam.Model.NormalizedToPixel(camPt.X/camPt.Z, camPt.Y/camPt.Z)
		measurements[i] = r2.Point{X: u, Y: v}
	}

	result, err := TriangulatePoint(cameras, measurements, 1e-9, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Status, test.ShouldEqual, TriangulationBehindCamera)
}

func TestTriangulateRefinementImproves(t *testing.T) {
	cameras := camerasAlongX(-1.5, -0.5, 0.5, 1.5)
	truePt := r3.Vector{X: 0.2, Y: 0.5, Z: 10}
	measurements := projectAll(t, cameras, truePt)

	// corrupt the pixels with deterministic noise
	rng := rand.New(rand.NewSource(42))
	for i := range measurements {
		measurements[i].X += rng.NormFloat64() * 0.8
		measurements[i].Y += rng.NormFloat64() * 0.8
	}

	linear, err := TriangulatePoint(cameras, measurements, 1e-9, false)
	test.That(t, err, test.ShouldBeNil)
	refined, err := TriangulatePoint(cameras, measurements, 1e-9, true)
	test.That(t, err, test.ShouldBeNil)

	linearErr := reprojectionErrorSq(cameras, measurements, linear.Point)
	refinedErr := reprojectionErrorSq(cameras, measurements, refined.Point)
	test.That(t, refinedErr, test.ShouldBeLessThanOrEqualTo, linearErr)
}

func TestTriangulateInputValidation(t *testing.T) {
	cameras := camerasAlongX(-1, 1)
	_, err := TriangulatePoint(cameras, []r2.Point{{X: 1, Y: 2}}, 1e-9, false)
	test.That(t, errors.Is(err, ErrDimensionMismatch), test.ShouldBeTrue)

	_, err = TriangulatePoint(cameras[:1], []r2.Point{{X: 1, Y: 2}}, 1e-9, false)
	test.That(t, err, test.ShouldNotBeNil)
}
