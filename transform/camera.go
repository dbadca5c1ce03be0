package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/spatialmath"
)

// ErrPointBehindCamera is returned when a point to be projected has non-positive
// depth in the camera frame.
var ErrPointBehindCamera = errors.New("point is behind the camera")

// PoseDim is the dimension of the tangent space of a camera pose, three rotation
// parameters followed by three translation parameters.
const PoseDim = 6

// PinholeCamera pairs a camera-to-world pose with a shared pinhole model. The model
// is read-only and may be shared across many cameras and goroutines; the pose is
// owned by whoever assembled the camera.
type PinholeCamera struct {
	Pose  *spatialmath.Pose
	Model *PinholeCameraModel
}

// NewPinholeCamera returns a camera at the given pose with the given model.
func NewPinholeCamera(pose *spatialmath.Pose, model *PinholeCameraModel) *PinholeCamera {
	return &PinholeCamera{Pose: pose, Model: model}
}

// Center returns the optical center of the camera in the world frame.
func (c *PinholeCamera) Center() r3.Vector {
	return c.Pose.Point()
}

// Depth returns the depth of a world point along the camera's optical axis.
func (c *PinholeCamera) Depth(pt r3.Vector) float64 {
	return c.Pose.InverseTransformPoint(pt).Z
}

// DistanceTo returns the euclidean distance from the optical center to a world point.
func (c *PinholeCamera) DistanceTo(pt r3.Vector) float64 {
	return pt.Sub(c.Center()).Norm()
}

// Project maps a world point to pixel coordinates, applying the distortion model.
// Fails with ErrPointBehindCamera when the point has non-positive depth.
func (c *PinholeCamera) Project(pt r3.Vector) (r2.Point, error) {
	camPt := c.Pose.InverseTransformPoint(pt)
	if camPt.Z <= 0 {
		return r2.Point{}, errors.Wrapf(ErrPointBehindCamera, "depth %f", camPt.Z)
	}
	u, v := c.Model.NormalizedToPixel(camPt.X/camPt.Z, camPt.Y/camPt.Z)
	return r2.Point{X: u, Y: v}, nil
}

// ProjectWithJacobians projects a world point and returns the 2x6 derivative with
// respect to the camera pose tangent [ω v] (right perturbation) and the 2x3
// derivative with respect to the point.
func (c *PinholeCamera) ProjectWithJacobians(pt r3.Vector) (r2.Point, *mat.Dense, *mat.Dense, error) {
	camPt := c.Pose.InverseTransformPoint(pt)
	if camPt.Z <= 0 {
		return r2.Point{}, nil, nil, errors.Wrapf(ErrPointBehindCamera, "depth %f", camPt.Z)
	}
	x, y := camPt.X/camPt.Z, camPt.Y/camPt.Z
	u, v := c.Model.NormalizedToPixel(x, y)

	dPixel := c.pixelFromCameraPointJacobian(camPt, x, y)

	// camPt = exp(-ξ) * T⁻¹ pt to first order, so the rotation columns are skew(camPt)
	// and the translation columns are -I.
	dPose := new(mat.Dense)
	dCamPose := mat.NewDense(3, 6, nil)
	skew := spatialmath.Skew(camPt)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dCamPose.Set(i, j, skew.At(i, j))
		}
		dCamPose.Set(i, i+3, -1)
	}
	dPose.Mul(dPixel, dCamPose)

	dPoint := new(mat.Dense)
	dPoint.Mul(dPixel, c.rotationTranspose())

	return r2.Point{X: u, Y: v}, dPose, dPoint, nil
}

// ProjectAtInfinity projects a unit direction in the world frame, ignoring the
// camera's translation entirely.
func (c *PinholeCamera) ProjectAtInfinity(dir r3.Vector) (r2.Point, error) {
	camDir := c.Pose.InverseRotateVector(dir)
	if camDir.Z <= 0 {
		return r2.Point{}, errors.Wrapf(ErrPointBehindCamera, "direction depth %f", camDir.Z)
	}
	u, v := c.Model.NormalizedToPixel(camDir.X/camDir.Z, camDir.Y/camDir.Z)
	return r2.Point{X: u, Y: v}, nil
}

// ProjectAtInfinityWithJacobians projects a world direction and returns the 2x6
// derivative with respect to the camera pose tangent, whose translation columns are
// zero, and the 2x3 derivative with respect to the direction.
func (c *PinholeCamera) ProjectAtInfinityWithJacobians(dir r3.Vector) (r2.Point, *mat.Dense, *mat.Dense, error) {
	camDir := c.Pose.InverseRotateVector(dir)
	if camDir.Z <= 0 {
		return r2.Point{}, nil, nil, errors.Wrapf(ErrPointBehindCamera, "direction depth %f", camDir.Z)
	}
	x, y := camDir.X/camDir.Z, camDir.Y/camDir.Z
	u, v := c.Model.NormalizedToPixel(x, y)

	dPixel := c.pixelFromCameraPointJacobian(camDir, x, y)

	dPose := new(mat.Dense)
	dCamPose := mat.NewDense(3, 6, nil)
	skew := spatialmath.Skew(camDir)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dCamPose.Set(i, j, skew.At(i, j))
		}
	}
	dPose.Mul(dPixel, dCamPose)

	dDir := new(mat.Dense)
	dDir.Mul(dPixel, c.rotationTranspose())

	return r2.Point{X: u, Y: v}, dPose, dDir, nil
}

// pixelFromCameraPointJacobian is the 2x3 derivative of the pixel with respect to
// the point in the camera frame, with (x, y) the normalized coordinates.
func (c *PinholeCamera) pixelFromCameraPointJacobian(camPt r3.Vector, x, y float64) *mat.Dense {
	invZ := 1 / camPt.Z
	dNorm := mat.NewDense(2, 3, []float64{
		invZ, 0, -x * invZ,
		0, invZ, -y * invZ,
	})
	dPixel := new(mat.Dense)
	dPixel.Mul(c.Model.NormalizedToPixelJacobian(x, y), dNorm)
	return dPixel
}

func (c *PinholeCamera) rotationTranspose() *mat.Dense {
	r := c.Pose.RotationMatrix()
	rt := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rt.Set(i, j, r.At(j, i))
		}
	}
	return rt
}

// ExtrinsicMatrix returns the 3x4 world-to-camera matrix [Rᵀ | -Rᵀt].
func (c *PinholeCamera) ExtrinsicMatrix() *mat.Dense {
	rt := c.rotationTranspose()
	t := c.Center()
	rtNegT := mat.NewVecDense(3, nil)
	rtNegT.MulVec(rt, mat.NewVecDense(3, []float64{-t.X, -t.Y, -t.Z}))

	extrinsic := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			extrinsic.Set(i, j, rt.At(i, j))
		}
		extrinsic.Set(i, 3, rtNegT.AtVec(i))
	}
	return extrinsic
}

// ProjectionMatrix returns the 3x4 projection matrix K [Rᵀ | -Rᵀt] in pixel
// coordinates, without the distortion model.
func (c *PinholeCamera) ProjectionMatrix() *mat.Dense {
	proj := new(mat.Dense)
	proj.Mul(c.Model.CameraMatrix(), c.ExtrinsicMatrix())
	return proj
}

// BackProject returns the unit ray in the world frame through the given pixel,
// undistorting it first.
func (c *PinholeCamera) BackProject(pixel r2.Point) r3.Vector {
	x, y := c.Model.PixelToNormalized(pixel.X, pixel.Y)
	return c.Pose.RotateVector(r3.Vector{X: x, Y: y, Z: 1}.Normalize())
}
