// Package transform provides camera models and projection geometry for pose cameras.
package transform

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the intrinsic calibration of a pinhole camera.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
	Skew   float64 `json:"skew"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	return nil
}

// CameraMatrix returns the intrinsics as a 3x3 camera matrix.
func (params *PinholeCameraIntrinsics) CameraMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, params.Skew, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// AlmostEqual compares two intrinsics within tol.
func (params *PinholeCameraIntrinsics) AlmostEqual(other *PinholeCameraIntrinsics, tol float64) bool {
	if params == nil || other == nil {
		return params == other
	}
	diffs := []float64{
		params.Fx - other.Fx,
		params.Fy - other.Fy,
		params.Ppx - other.Ppx,
		params.Ppy - other.Ppy,
		params.Skew - other.Skew,
	}
	for _, d := range diffs {
		if d > tol || d < -tol {
			return false
		}
	}
	return params.Width == other.Width && params.Height == other.Height
}

// PinholeCameraModel is the model of a pinhole camera: shared intrinsics plus an
// optional distortion model. A nil Distortion means an undistorted lens.
type PinholeCameraModel struct {
	*PinholeCameraIntrinsics
	Distortion Distorter
}

// CheckValid checks that the model has usable intrinsics and distortion parameters.
func (model *PinholeCameraModel) CheckValid() error {
	if model == nil {
		return NewNoIntrinsicsError("PinholeCameraModel does not exist")
	}
	if err := model.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if model.Distortion != nil {
		return model.Distortion.CheckValid()
	}
	return nil
}

// NormalizedToPixel maps normalized image coordinates to a pixel, applying the
// distortion model before the camera matrix.
func (model *PinholeCameraModel) NormalizedToPixel(x, y float64) (float64, float64) {
	if model.Distortion != nil {
		x, y = model.Distortion.Transform(x, y)
	}
	u := model.Fx*x + model.Skew*y + model.Ppx
	v := model.Fy*y + model.Ppy
	return u, v
}

// PixelToNormalized maps a pixel back to undistorted normalized image coordinates.
func (model *PinholeCameraModel) PixelToNormalized(u, v float64) (float64, float64) {
	y := (v - model.Ppy) / model.Fy
	x := (u - model.Ppx - model.Skew*y) / model.Fx
	if model.Distortion != nil {
		x, y = model.Distortion.Undistort(x, y)
	}
	return x, y
}

// NormalizedToPixelJacobian returns the 2x2 derivative of NormalizedToPixel at the
// given normalized coordinates.
func (model *PinholeCameraModel) NormalizedToPixelJacobian(x, y float64) *mat.Dense {
	k := mat.NewDense(2, 2, []float64{
		model.Fx, model.Skew,
		0, model.Fy,
	})
	if model.Distortion == nil {
		return k
	}
	jac := new(mat.Dense)
	jac.Mul(k, model.Distortion.Jacobian(x, y))
	return jac
}

// AlmostEqual compares two camera models, intrinsics and distortion parameters both,
// within tol.
func (model *PinholeCameraModel) AlmostEqual(other *PinholeCameraModel, tol float64) bool {
	if model == nil || other == nil {
		return model == other
	}
	if !model.PinholeCameraIntrinsics.AlmostEqual(other.PinholeCameraIntrinsics, tol) {
		return false
	}
	if (model.Distortion == nil) != (other.Distortion == nil) {
		return false
	}
	if model.Distortion == nil {
		return true
	}
	if model.Distortion.ModelType() != other.Distortion.ModelType() {
		return false
	}
	p1, p2 := model.Distortion.Parameters(), other.Distortion.Parameters()
	if len(p1) != len(p2) {
		return false
	}
	for i := range p1 {
		if d := p1[i] - p2[i]; d > tol || d < -tol {
			return false
		}
	}
	return true
}

type pinholeCameraModelJSON struct {
	Intrinsics           *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	DistortionType       DistortionType           `json:"distortion_type,omitempty"`
	DistortionParameters []float64                `json:"distortion_parameters,omitempty"`
}

// MarshalJSON serializes the model, flattening the distortion interface into its
// type name and parameter list.
func (model *PinholeCameraModel) MarshalJSON() ([]byte, error) {
	out := pinholeCameraModelJSON{Intrinsics: model.PinholeCameraIntrinsics}
	if model.Distortion != nil {
		out.DistortionType = model.Distortion.ModelType()
		out.DistortionParameters = model.Distortion.Parameters()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a model serialized by MarshalJSON.
func (model *PinholeCameraModel) UnmarshalJSON(data []byte) error {
	var in pinholeCameraModelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	model.PinholeCameraIntrinsics = in.Intrinsics
	model.Distortion = nil
	if in.DistortionType != "" {
		distortion, err := NewDistorter(in.DistortionType, in.DistortionParameters)
		if err != nil {
			return err
		}
		model.Distortion = distortion
	}
	return nil
}
