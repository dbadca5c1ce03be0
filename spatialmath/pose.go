// Package spatialmath defines spatial mathematical operations for rigid body poses.
package spatialmath

import (
	"encoding/json"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transformation in 3D space, stored as a unit dual quaternion.
// The zero value is not usable; since the real part of a unit dual quaternion must be
// a unit quaternion, use NewZeroPose instead of &Pose{}.
type Pose struct {
	q dualquat.Number
}

// NewZeroPose returns the identity transformation.
func NewZeroPose() *Pose {
	return &Pose{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{},
	}}
}

// NewPose returns a pose with the given translation and rotation quaternion.
// The rotation is normalized before use.
func NewPose(translation r3.Vector, rotation quat.Number) *Pose {
	if vecLen := quat.Abs(rotation); vecLen != 1 {
		rotation = quat.Scale(1/vecLen, rotation)
	}
	p := &Pose{dualquat.Number{Real: rotation}}
	p.setTranslation(translation)
	return p
}

// NewPoseFromPoint returns a pure translation.
func NewPoseFromPoint(pt r3.Vector) *Pose {
	return NewPose(pt, quat.Number{Real: 1})
}

// NewPoseFromAxisAngle returns a pose rotating by theta radians about the given axis.
func NewPoseFromAxisAngle(translation, axis r3.Vector, theta float64) *Pose {
	if theta == 0 {
		return NewPoseFromPoint(translation)
	}
	axis = axis.Normalize()
	s := math.Sin(theta / 2)
	return NewPose(translation, quat.Number{
		Real: math.Cos(theta / 2),
		Imag: s * axis.X,
		Jmag: s * axis.Y,
		Kmag: s * axis.Z,
	})
}

// NewPoseFromRotationMatrix builds a pose from a translation and a 3x3 rotation matrix.
func NewPoseFromRotationMatrix(translation r3.Vector, m mgl64.Mat3) *Pose {
	qRot := mgl64.Mat4ToQuat(m.Mat4())
	return NewPose(translation, quat.Number{Real: qRot.W, Imag: qRot.V[0], Jmag: qRot.V[1], Kmag: qRot.V[2]})
}

// setTranslation sets the dual part against the rotation so that Point returns the
// given translation.
func (p *Pose) setTranslation(pt r3.Vector) {
	p.q.Dual = quat.Mul(quat.Number{Imag: pt.X / 2, Jmag: pt.Y / 2, Kmag: pt.Z / 2}, p.q.Real)
}

// Clone returns a Pose identical to this one.
// No deep copies needed, dual quaternions are primitives all the way down.
func (p *Pose) Clone() *Pose {
	return &Pose{p.q}
}

// Point returns the translation component.
func (p *Pose) Point() r3.Vector {
	t := dualquat.Mul(p.q, dualquat.Conj(p.q))
	return r3.Vector{X: t.Dual.Imag, Y: t.Dual.Jmag, Z: t.Dual.Kmag}
}

// Rotation returns the rotation quaternion.
func (p *Pose) Rotation() quat.Number {
	return p.q.Real
}

// RotationMatrix returns the rotation component as a 3x3 matrix.
func (p *Pose) RotationMatrix() mgl64.Mat3 {
	q := p.q.Real
	mq := mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}}
	return mq.Mat4().Mat3()
}

// Compose returns the pose equivalent to applying b in the frame of a.
func Compose(a, b *Pose) *Pose {
	result := &Pose{dualquat.Mul(a.q, b.q)}
	if vecLen := quat.Abs(result.q.Real); vecLen != 1 {
		result.q.Real = quat.Scale(1/vecLen, result.q.Real)
	}
	return result
}

// Invert returns the inverse transformation.
func Invert(p *Pose) *Pose {
	return &Pose{dualquat.ConjQuat(p.q)}
}

// TransformPoint applies the pose to a point in its local frame, returning the point
// in the parent frame.
func (p *Pose) TransformPoint(pt r3.Vector) r3.Vector {
	addMe := dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{Imag: pt.X, Jmag: pt.Y, Kmag: pt.Z},
	}
	qq := dualquat.Mul(dualquat.Mul(p.q, addMe), dualquat.Conj(p.q))
	return r3.Vector{X: qq.Dual.Imag, Y: qq.Dual.Jmag, Z: qq.Dual.Kmag}
}

// InverseTransformPoint maps a point in the parent frame into the pose's local frame.
func (p *Pose) InverseTransformPoint(pt r3.Vector) r3.Vector {
	return Invert(p).TransformPoint(pt)
}

// RotateVector applies only the rotation component to a vector.
func (p *Pose) RotateVector(v r3.Vector) r3.Vector {
	return rotateByQuat(p.q.Real, v)
}

// InverseRotateVector applies the inverse of the rotation component to a vector.
func (p *Pose) InverseRotateVector(v r3.Vector) r3.Vector {
	return rotateByQuat(quat.Conj(p.q.Real), v)
}

func rotateByQuat(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// Adjoint returns the 6x6 matrix mapping a twist [ω v] expressed in this pose's frame
// into the parent frame: [[R, 0], [skew(t)R, R]].
func (p *Pose) Adjoint() *mat.Dense {
	r := p.RotationMatrix()
	t := p.Point()
	tR := new(mat.Dense)
	rDense := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rDense.Set(i, j, r.At(i, j))
		}
	}
	tR.Mul(Skew(t), rDense)
	adj := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			adj.Set(i, j, rDense.At(i, j))
			adj.Set(i+3, j, tR.At(i, j))
			adj.Set(i+3, j+3, rDense.At(i, j))
		}
	}
	return adj
}

// Skew returns the 3x3 cross-product matrix of v.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// Delta returns the difference between two poses as a six-element slice: the
// translation difference followed by an R3 axis angle of the relative rotation.
// We use quaternion/axis angle for this because distances are well-defined.
func Delta(a, b *Pose) []float64 {
	ret := make([]float64, 6)

	quatBetween := quat.Mul(b.q.Real, quat.Conj(a.q.Real))
	aa := QuatToR3AA(quatBetween)

	bTrans := b.Point()
	aTrans := a.Point()
	ret[0] = bTrans.X - aTrans.X
	ret[1] = bTrans.Y - aTrans.Y
	ret[2] = bTrans.Z - aTrans.Z
	ret[3] = aa.RX
	ret[4] = aa.RY
	ret[5] = aa.RZ
	return ret
}

// DeltaNorm returns a scalar distance between two poses, the root sum of squares of
// the translation difference and the relative rotation angle vector.
func DeltaNorm(a, b *Pose) float64 {
	d := Delta(a, b)
	sum := 0.0
	for _, v := range d {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// R3AA represents an R3 axis angle, an axis of rotation scaled by the rotation angle
// in radians.
type R3AA struct {
	RX float64
	RY float64
	RZ float64
}

// QuatToR3AA converts a quat to an R3 axis angle in the same way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR3AA(q quat.Number) R3AA {
	denom := Norm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return R3AA{angle, 0, 0}
	}
	return R3AA{angle * q.Imag / denom, angle * q.Jmag / denom, angle * q.Kmag / denom}
}

// Norm returns the norm of the imaginary part of the quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// QuaternionAlmostEqual checks whether two quaternions represent the same rotation
// within tol, accounting for the double cover.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	if quatClose(a, b, tol) {
		return true
	}
	return quatClose(a, quat.Scale(-1, b), tol)
}

func quatClose(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) < tol &&
		math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol &&
		math.Abs(a.Kmag-b.Kmag) < tol
}

// PoseAlmostEqual checks whether two poses represent the same transformation within tol.
func PoseAlmostEqual(a, b *Pose, tol float64) bool {
	aPt, bPt := a.Point(), b.Point()
	return aPt.Sub(bPt).Norm() < tol && QuaternionAlmostEqual(a.q.Real, b.q.Real, tol)
}

type poseJSON struct {
	Translation r3.Vector  `json:"translation"`
	Rotation    [4]float64 `json:"rotation"` // w, x, y, z
}

// MarshalJSON serializes the pose as a translation and a rotation quaternion.
func (p *Pose) MarshalJSON() ([]byte, error) {
	q := p.q.Real
	return json.Marshal(poseJSON{
		Translation: p.Point(),
		Rotation:    [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
	})
}

// UnmarshalJSON restores a pose serialized by MarshalJSON.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var pj poseJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	restored := NewPose(pj.Translation, quat.Number{
		Real: pj.Rotation[0],
		Imag: pj.Rotation[1],
		Jmag: pj.Rotation[2],
		Kmag: pj.Rotation[3],
	})
	p.q = restored.q
	return nil
}
