package noise

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestDiagonal(t *testing.T) {
	model, err := NewDiagonal([]float64{2, 4})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Dim(), test.ShouldEqual, 2)

	whitened := model.Whiten([]float64{2, 8})
	test.That(t, whitened[0], test.ShouldAlmostEqual, 1)
	test.That(t, whitened[1], test.ShouldAlmostEqual, 2)

	j := mat.NewDense(2, 3, []float64{
		2, 4, 6,
		4, 8, 12,
	})
	model.WhitenJacobian(j)
	test.That(t, j.At(0, 0), test.ShouldAlmostEqual, 1)
	test.That(t, j.At(0, 2), test.ShouldAlmostEqual, 3)
	test.That(t, j.At(1, 1), test.ShouldAlmostEqual, 2)

	_, err = NewDiagonal([]float64{1, 0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIsotropicAndUnit(t *testing.T) {
	iso, err := NewIsotropic(2, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, iso.Sigmas(), test.ShouldResemble, []float64{0.5, 0.5})

	unit := Unit(3)
	in := []float64{1, -2, 3}
	test.That(t, unit.Whiten(in), test.ShouldResemble, in)
}
