package factor

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/transform"
)

// pointDim is the dimension of the eliminated landmark block.
const pointDim = 3

// schurComplement accumulates the joint normal equations over poses and the landmark
// from whitened per-observation Jacobians and residuals, then eliminates the landmark
// block, returning the marginal information factor over poses only. Each observation
// i couples exactly its own pose key and the landmark, so pose-pose coupling appears
// only through the elimination. pinvTol is the relative singular-value cutoff used
// when inverting the landmark information block; rank lost below it is dropped
// rather than inverted, which is what makes the rotation-only fallback well posed.
func schurComplement(
	keys []Key,
	poseJacs []*mat.Dense,
	pointJacs []*mat.Dense,
	residuals [][]float64,
	pinvTol float64,
) *HessianFactor {
	n := len(keys)
	dim := n * transform.PoseDim

	// landmark block C = Σ EᵢᵀEᵢ and its gradient
	pointInfo := mat.NewDense(pointDim, pointDim, nil)
	pointGrad := mat.NewVecDense(pointDim, nil)
	constant := 0.0
	for i := 0; i < n; i++ {
		var cTerm mat.Dense
		cTerm.Mul(pointJacs[i].T(), pointJacs[i])
		pointInfo.Add(pointInfo, &cTerm)

		r := mat.NewVecDense(2, residuals[i])
		var gTerm mat.VecDense
		gTerm.MulVec(pointJacs[i].T(), r)
		pointGrad.AddVec(pointGrad, &gTerm)

		constant += r.AtVec(0)*r.AtVec(0) + r.AtVec(1)*r.AtVec(1)
	}

	pointCovariance := pseudoInverse(pointInfo, pinvTol)

	// Mᵢ = FᵢᵀEᵢ couples pose i to the landmark
	couplings := make([]*mat.Dense, n)
	for i := 0; i < n; i++ {
		couplings[i] = new(mat.Dense)
		couplings[i].Mul(poseJacs[i].T(), pointJacs[i])
	}

	info := mat.NewSymDense(dim, nil)
	grad := mat.NewVecDense(dim, nil)
	d := transform.PoseDim
	for i := 0; i < n; i++ {
		// diagonal block FᵢᵀFᵢ
		var diag mat.Dense
		diag.Mul(poseJacs[i].T(), poseJacs[i])

		r := mat.NewVecDense(2, residuals[i])
		var gi mat.VecDense
		gi.MulVec(poseJacs[i].T(), r)

		var correction mat.VecDense
		var mc mat.Dense
		mc.Mul(couplings[i], pointCovariance)
		correction.MulVec(&mc, pointGrad)
		for r0 := 0; r0 < d; r0++ {
			grad.SetVec(i*d+r0, gi.AtVec(r0)-correction.AtVec(r0))
		}

		for j := i; j < n; j++ {
			var cross mat.Dense
			cross.Mul(&mc, couplings[j].T())
			for r0 := 0; r0 < d; r0++ {
				c0 := 0
				if j == i {
					c0 = r0
				}
				for ; c0 < d; c0++ {
					v := -cross.At(r0, c0)
					if j == i {
						v += diag.At(r0, c0)
					}
					info.SetSym(i*d+r0, j*d+c0, v)
				}
			}
		}
	}

	// marginal constant after eliminating the landmark
	var cg mat.VecDense
	cg.MulVec(pointCovariance, pointGrad)
	constant -= mat.Dot(pointGrad, &cg)

	keysCopy := make([]Key, n)
	copy(keysCopy, keys)
	return newHessianFactor(keysCopy, info, grad, constant)
}

// pseudoInverse inverts a symmetric positive semi-definite matrix through its SVD,
// zeroing the reciprocal of any singular value below tol relative to the largest.
func pseudoInverse(m *mat.Dense, tol float64) *mat.Dense {
	r, _ := m.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return mat.NewDense(r, r, nil)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	sInv := mat.NewDense(r, r, nil)
	for i, s := range values {
		if values[0] > 0 && s > tol*values[0] {
			sInv.Set(i, i, 1/s)
		}
	}
	var vs, out mat.Dense
	vs.Mul(&v, sInv)
	out.Mul(&vs, u.T())
	return &out
}
