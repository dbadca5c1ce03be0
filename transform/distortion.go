package transform

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DistortionType is the name of the distortion model.
type DistortionType string

// BrownConradyDistortionType is for simple lenses of narrow field easily modeled as a pinhole camera.
const BrownConradyDistortionType = DistortionType("brown_conrady")

// Distorter defines a distortion model over normalized image coordinates.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	// Transform maps undistorted normalized coordinates to distorted ones.
	Transform(x, y float64) (float64, float64)
	// Jacobian is the 2x2 derivative of Transform at (x, y).
	Jacobian(x, y float64) *mat.Dense
	// Undistort inverts Transform iteratively.
	Undistort(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrapf(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType { //nolint:exhaustive
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

// BrownConrady is the Brown-Conrady model of the distortion of simple lenses:
//
//	x_d = x*(1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y*(1 + k1*r² + k2*r⁴ + k3*r⁶) + p1*(r² + 2*y²) + 2*p2*x*y
//
// where (x, y) are undistorted normalized coordinates and r² = x² + y².
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats that will be passed into the struct in order.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	if len(inp) == 0 {
		return &BrownConrady{}, nil
	}
	for i := len(inp); i < 5; i++ { // fill missing values with 0.0
		inp = append(inp, 0.0)
	}
	return &BrownConrady{inp[0], inp[1], inp[2], inp[3], inp[4]}, nil
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// Transform distorts the input undistorted normalized coordinates.
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	radial := 1 + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
	xd := x*radial + 2*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2*x*x)
	yd := y*radial + bc.TangentialP1*(r2+2*y*y) + 2*bc.TangentialP2*x*y
	return xd, yd
}

// Jacobian returns the 2x2 derivative of Transform at (x, y).
func (bc *BrownConrady) Jacobian(x, y float64) *mat.Dense {
	r2 := x*x + y*y
	radial := 1 + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
	dRadial := bc.RadialK1 + 2*bc.RadialK2*r2 + 3*bc.RadialK3*r2*r2

	j00 := radial + 2*x*x*dRadial + 2*bc.TangentialP1*y + 6*bc.TangentialP2*x
	j01 := 2*x*y*dRadial + 2*bc.TangentialP1*x + 2*bc.TangentialP2*y
	j10 := 2*x*y*dRadial + 2*bc.TangentialP1*x + 2*bc.TangentialP2*y
	j11 := radial + 2*y*y*dRadial + 6*bc.TangentialP1*y + 2*bc.TangentialP2*x
	return mat.NewDense(2, 2, []float64{j00, j01, j10, j11})
}

// maximum Newton iterations for inverting the distortion model.
const undistortIterations = 10

// Undistort inverts Transform with a few Newton iterations, seeded at the distorted
// coordinates.
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64) {
	x, y := xd, yd
	for i := 0; i < undistortIterations; i++ {
		fx, fy := bc.Transform(x, y)
		rx, ry := fx-xd, fy-yd
		if rx*rx+ry*ry < 1e-24 {
			break
		}
		jac := bc.Jacobian(x, y)
		det := jac.At(0, 0)*jac.At(1, 1) - jac.At(0, 1)*jac.At(1, 0)
		if det == 0 {
			break
		}
		x -= (jac.At(1, 1)*rx - jac.At(0, 1)*ry) / det
		y -= (jac.At(0, 0)*ry - jac.At(1, 0)*rx) / det
	}
	return x, y
}
