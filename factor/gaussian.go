package factor

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/transform"
)

// HessianFactor is a symmetric information-form (quadratic) constraint over a set of
// pose variables: cost(Δ) = Δᵀ H Δ - 2 gᵀ Δ + f, where Δ stacks the 6-dimensional
// tangent updates of the keys in order.
type HessianFactor struct {
	keys     []Key
	info     *mat.SymDense
	grad     *mat.VecDense
	constant float64
}

// NewZeroHessianFactor returns a factor contributing nothing to the system.
func NewZeroHessianFactor() *HessianFactor {
	return &HessianFactor{}
}

func newHessianFactor(keys []Key, info *mat.SymDense, grad *mat.VecDense, constant float64) *HessianFactor {
	return &HessianFactor{keys: keys, info: info, grad: grad, constant: constant}
}

// Keys returns the pose keys this factor constrains, in block order.
func (h *HessianFactor) Keys() []Key {
	out := make([]Key, len(h.keys))
	copy(out, h.keys)
	return out
}

// Dim returns the total dimension of the factor, six per constrained pose.
func (h *HessianFactor) Dim() int {
	return len(h.keys) * transform.PoseDim
}

// IsZero reports whether the factor contributes nothing.
func (h *HessianFactor) IsZero() bool {
	return len(h.keys) == 0
}

// Information returns the Hessian block matrix. The returned matrix is owned by the
// factor and must not be modified.
func (h *HessianFactor) Information() *mat.SymDense {
	return h.info
}

// Gradient returns the linear term g. Owned by the factor, must not be modified.
func (h *HessianFactor) Gradient() *mat.VecDense {
	return h.grad
}

// Constant returns the constant term f, the whitened squared residual at the
// linearization point after elimination.
func (h *HessianFactor) Constant() float64 {
	return h.constant
}

// Block returns the 6x6 information block coupling the i-th and j-th keys.
func (h *HessianFactor) Block(i, j int) *mat.Dense {
	d := transform.PoseDim
	block := mat.NewDense(d, d, nil)
	for r := 0; r < d; r++ {
		for c := 0; c < d; c++ {
			block.Set(r, c, h.info.At(i*d+r, j*d+c))
		}
	}
	return block
}

// Error evaluates the quadratic cost at a stacked tangent update delta.
func (h *HessianFactor) Error(delta *mat.VecDense) float64 {
	if h.IsZero() {
		return h.constant
	}
	tmp := mat.NewVecDense(h.Dim(), nil)
	tmp.MulVec(h.info, delta)
	return mat.Dot(delta, tmp) - 2*mat.Dot(h.grad, delta) + h.constant
}

// String renders the factor's keys and dimension.
func (h *HessianFactor) String() string {
	keyNames := make([]string, len(h.keys))
	for i, k := range h.keys {
		keyNames[i] = k.String()
	}
	return fmt.Sprintf("HessianFactor [%s] dim %d", strings.Join(keyNames, " "), h.Dim())
}
