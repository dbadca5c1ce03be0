// Package noise provides measurement noise models that whiten residuals before they
// enter a least-squares system.
package noise

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model whitens residual vectors and Jacobian rows by the inverse square root of the
// measurement covariance. Models are immutable and safe to share.
type Model interface {
	Dim() int
	Sigmas() []float64
	// Whiten returns a new slice with each element divided by its sigma.
	Whiten(v []float64) []float64
	// WhitenJacobian scales the rows of j in place.
	WhitenJacobian(j *mat.Dense)
}

// Diagonal is a noise model with independent per-element standard deviations.
type Diagonal struct {
	sigmas    []float64
	invSigmas []float64
}

// NewDiagonal returns a model with the given standard deviations.
func NewDiagonal(sigmas []float64) (*Diagonal, error) {
	invSigmas := make([]float64, len(sigmas))
	for i, s := range sigmas {
		if s <= 0 {
			return nil, errors.Errorf("sigma must be positive, got %f at index %d", s, i)
		}
		invSigmas[i] = 1 / s
	}
	return &Diagonal{sigmas: sigmas, invSigmas: invSigmas}, nil
}

// NewIsotropic returns a model with the same standard deviation in every dimension.
func NewIsotropic(dim int, sigma float64) (*Diagonal, error) {
	sigmas := make([]float64, dim)
	for i := range sigmas {
		sigmas[i] = sigma
	}
	return NewDiagonal(sigmas)
}

// Unit returns a model that leaves residuals unchanged.
func Unit(dim int) *Diagonal {
	model, _ := NewIsotropic(dim, 1)
	return model
}

// Dim returns the dimension of residuals this model whitens.
func (d *Diagonal) Dim() int {
	return len(d.sigmas)
}

// Sigmas returns the standard deviations.
func (d *Diagonal) Sigmas() []float64 {
	out := make([]float64, len(d.sigmas))
	copy(out, d.sigmas)
	return out
}

// Whiten returns a new slice with each element divided by its sigma.
func (d *Diagonal) Whiten(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * d.invSigmas[i]
	}
	return out
}

// WhitenJacobian scales the rows of j in place.
func (d *Diagonal) WhitenJacobian(j *mat.Dense) {
	rows, cols := j.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			j.Set(r, c, j.At(r, c)*d.invSigmas[r])
		}
	}
}
