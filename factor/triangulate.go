package factor

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/transform"
)

// TriangulationStatus classifies a triangulated landmark estimate.
type TriangulationStatus string

const (
	// TriangulationValid means the point is well conditioned and in front of every camera.
	TriangulationValid = TriangulationStatus("valid")
	// TriangulationDegenerate means the ray geometry is too ill-conditioned to pin
	// down a point, e.g. near-parallel or coincident rays.
	TriangulationDegenerate = TriangulationStatus("degenerate")
	// TriangulationBehindCamera means the estimate has non-positive depth in at
	// least one observing camera.
	TriangulationBehindCamera = TriangulationStatus("behind_camera")
	// TriangulationFarPoint means the estimate lies beyond the landmark distance
	// bound of the factor that requested it.
	TriangulationFarPoint = TriangulationStatus("far_point")
)

// TriangulationResult is an ephemeral landmark estimate: a point, the conditioning
// of the linear system that produced it, and a status classification.
type TriangulationResult struct {
	Point     r3.Vector
	Condition float64
	Status    TriangulationStatus
}

// iteration cap and tolerances for the optional nonlinear refinement.
const (
	triangulationMaxIterations  = 10
	triangulationConvergenceTol = 1e-10
	triangulationInitialDamping = 1e-10
)

// TriangulatePoint estimates a 3D point from two or more cameras and pixel
// measurements by homogeneous linear least squares over all observing rays,
// optionally followed by damped Gauss-Newton refinement of the total reprojection
// error. The conditioning score is the ratio of the third-largest to largest
// singular value of the design matrix; below rankTol the estimate is degenerate.
func TriangulatePoint(
	cameras []*transform.PinholeCamera,
	measurements []r2.Point,
	rankTol float64,
	refine bool,
) (TriangulationResult, error) {
	if len(cameras) != len(measurements) {
		return TriangulationResult{}, errors.Wrapf(ErrDimensionMismatch,
			"%d cameras, %d measurements", len(cameras), len(measurements))
	}
	if len(cameras) < 2 {
		return TriangulationResult{}, errors.Errorf("triangulation needs at least 2 cameras, got %d", len(cameras))
	}

	// each view contributes two rows of x*P₂-P₀ and y*P₂-P₁ in undistorted
	// normalized coordinates
	design := mat.NewDense(2*len(cameras), 4, nil)
	for i, cam := range cameras {
		x, y := cam.Model.PixelToNormalized(measurements[i].X, measurements[i].Y)
		proj := cam.ExtrinsicMatrix()
		for c := 0; c < 4; c++ {
			design.Set(2*i, c, x*proj.At(2, c)-proj.At(0, c))
			design.Set(2*i+1, c, y*proj.At(2, c)-proj.At(1, c))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return TriangulationResult{Status: TriangulationDegenerate}, nil
	}
	values := svd.Values(nil)
	condition := 0.0
	if values[0] > 0 {
		condition = values[2] / values[0]
	}

	var v mat.Dense
	svd.VTo(&v)
	w := v.At(3, 3)
	if w == 0 {
		return TriangulationResult{Condition: condition, Status: TriangulationDegenerate}, nil
	}
	pt := r3.Vector{
		X: v.At(0, 3) / w,
		Y: v.At(1, 3) / w,
		Z: v.At(2, 3) / w,
	}

	if refine {
		pt = refineTriangulation(cameras, measurements, pt)
	}

	result := TriangulationResult{Point: pt, Condition: condition, Status: TriangulationValid}
	if condition < rankTol {
		result.Status = TriangulationDegenerate
		return result, nil
	}
	for _, cam := range cameras {
		if cam.Depth(pt) <= 0 {
			result.Status = TriangulationBehindCamera
			return result, nil
		}
	}
	return result, nil
}

// refineTriangulation runs a bounded number of damped Gauss-Newton steps on the
// total reprojection error. It never fails; if no step improves, the best point
// seen so far is returned.
func refineTriangulation(
	cameras []*transform.PinholeCamera,
	measurements []r2.Point,
	initial r3.Vector,
) r3.Vector {
	pt := initial
	damping := triangulationInitialDamping
	currentErr := reprojectionErrorSq(cameras, measurements, pt)

	for iter := 0; iter < triangulationMaxIterations; iter++ {
		hessian := mat.NewSymDense(3, nil)
		grad := mat.NewVecDense(3, nil)
		usable := 0
		for i, cam := range cameras {
			predicted, _, dPoint, err := cam.ProjectWithJacobians(pt)
			if err != nil {
				continue
			}
			usable++
			resid := mat.NewVecDense(2, []float64{
				measurements[i].X - predicted.X,
				measurements[i].Y - predicted.Y,
			})
			for r := 0; r < 3; r++ {
				for c := r; c < 3; c++ {
					sum := hessian.At(r, c)
					for k := 0; k < 2; k++ {
						sum += dPoint.At(k, r) * dPoint.At(k, c)
					}
					hessian.SetSym(r, c, sum)
				}
				g := grad.AtVec(r)
				for k := 0; k < 2; k++ {
					g += dPoint.At(k, r) * resid.AtVec(k)
				}
				grad.SetVec(r, g)
			}
		}
		if usable < 2 {
			return pt
		}

		damped := mat.NewDense(3, 3, nil)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				damped.Set(r, c, hessian.At(r, c))
			}
			damped.Set(r, r, damped.At(r, r)+damping)
		}
		var delta mat.VecDense
		if err := delta.SolveVec(damped, grad); err != nil {
			return pt
		}

		candidate := pt.Add(r3.Vector{X: delta.AtVec(0), Y: delta.AtVec(1), Z: delta.AtVec(2)})
		candidateErr := reprojectionErrorSq(cameras, measurements, candidate)
		if candidateErr < currentErr {
			improvement := currentErr - candidateErr
			pt = candidate
			currentErr = candidateErr
			damping /= 10
			if improvement < triangulationConvergenceTol {
				break
			}
		} else {
			damping *= 10
		}
	}
	return pt
}

// reprojectionErrorSq sums the squared pixel residuals over all views, counting
// views the point falls behind as unusable.
func reprojectionErrorSq(cameras []*transform.PinholeCamera, measurements []r2.Point, pt r3.Vector) float64 {
	total := 0.0
	for i, cam := range cameras {
		predicted, err := cam.Project(pt)
		if err != nil {
			continue
		}
		dx := measurements[i].X - predicted.X
		dy := measurements[i].Y - predicted.Y
		total += dx*dx + dy*dy
	}
	return total
}
