package spatialmath

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestZeroPose(t *testing.T) {
	p := NewZeroPose()
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{})
	test.That(t, p.Rotation(), test.ShouldResemble, quat.Number{Real: 1})

	pt := r3.Vector{X: 1, Y: -2, Z: 3}
	test.That(t, p.TransformPoint(pt), test.ShouldResemble, pt)
}

func TestComposeInvert(t *testing.T) {
	a := NewPoseFromAxisAngle(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{Z: 1}, math.Pi/3)
	b := NewPoseFromAxisAngle(r3.Vector{X: -2, Y: 0.5, Z: 1}, r3.Vector{X: 1, Y: 1}, math.Pi/7)

	ab := Compose(a, b)
	pt := r3.Vector{X: 0.3, Y: -1.1, Z: 2.2}
	expected := a.TransformPoint(b.TransformPoint(pt))
	got := ab.TransformPoint(pt)
	test.That(t, got.Sub(expected).Norm(), test.ShouldBeLessThan, 1e-12)

	// composing with the inverse should give the identity
	ident := Compose(a, Invert(a))
	test.That(t, PoseAlmostEqual(ident, NewZeroPose(), 1e-12), test.ShouldBeTrue)

	roundTrip := a.InverseTransformPoint(a.TransformPoint(pt))
	test.That(t, roundTrip.Sub(pt).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestRotationMatrix(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{}, r3.Vector{Z: 1}, math.Pi/2)
	m := p.RotationMatrix()

	// rotating +X about Z by 90 degrees should give +Y
	v := p.RotateVector(r3.Vector{X: 1})
	test.That(t, v.Sub(r3.Vector{Y: 1}).Norm(), test.ShouldBeLessThan, 1e-12)

	// the matrix should agree with the quaternion rotation
	mv := r3.Vector{
		X: m.At(0, 0),
		Y: m.At(1, 0),
		Z: m.At(2, 0),
	}
	test.That(t, mv.Sub(v).Norm(), test.ShouldBeLessThan, 1e-12)

	restored := NewPoseFromRotationMatrix(r3.Vector{}, m)
	test.That(t, PoseAlmostEqual(restored, p, 1e-9), test.ShouldBeTrue)
}

func TestDelta(t *testing.T) {
	a := NewPoseFromPoint(r3.Vector{X: 1})
	b := NewPoseFromAxisAngle(r3.Vector{X: 1, Y: 2}, r3.Vector{Z: 1}, 0.1)

	d := Delta(a, b)
	test.That(t, d[0], test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, d[1], test.ShouldAlmostEqual, 2, 1e-12)
	test.That(t, d[2], test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, d[5], test.ShouldAlmostEqual, 0.1, 1e-12)

	test.That(t, DeltaNorm(a, a), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, DeltaNorm(a, b), test.ShouldAlmostEqual, math.Sqrt(4+0.1*0.1), 1e-9)
}

func TestAdjoint(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{X: 0.5, Y: -1, Z: 2}, r3.Vector{X: 1, Z: 1}, 0.3)
	adj := p.Adjoint()
	r, c := adj.Dims()
	test.That(t, r, test.ShouldEqual, 6)
	test.That(t, c, test.ShouldEqual, 6)

	// identity pose has identity adjoint
	identAdj := NewZeroPose().Adjoint()
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			expected := 0.0
			if i == j {
				expected = 1.0
			}
			test.That(t, identAdj.At(i, j), test.ShouldAlmostEqual, expected, 1e-12)
		}
	}
}

func TestPoseJSONRoundTrip(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{X: 1.5, Y: -0.25, Z: 3}, r3.Vector{Y: 1}, 0.7)
	data, err := json.Marshal(p)
	test.That(t, err, test.ShouldBeNil)

	restored := NewZeroPose()
	test.That(t, json.Unmarshal(data, restored), test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(restored, p, 1e-9), test.ShouldBeTrue)
}
