// Package main demonstrates smart projection factors on a synthetic trajectory: a
// camera rig sweeps past a small landmark field, each landmark becomes one smart
// factor over the poses that saw it, and the program reports the cost and the
// eliminated pose-only linear system at the true and at perturbed poses.
package main

import (
	"context"
	"flag"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/ryandeen31/gtsam/factor"
	"github.com/ryandeen31/gtsam/noise"
	"github.com/ryandeen31/gtsam/spatialmath"
	"github.com/ryandeen31/gtsam/transform"
)

var logger = golog.NewDevelopmentLogger("smartfactor")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	pixelSigma := flag.Float64("pixel-sigma", 1.0, "pixel measurement noise sigma")
	outlierPx := flag.Float64("outlier-px", 0, "inject one outlier of this many pixels per landmark")
	gate := flag.Float64("gate", -1, "whitened residual gate threshold, negative disables")
	seed := flag.Int64("seed", 1, "rng seed for measurement noise")
	flag.Parse()

	model := &transform.PinholeCameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{
			Width: 640, Height: 480,
			Fx: 500, Fy: 500, Ppx: 320, Ppy: 240,
		},
	}

	// five poses sweeping along x, looking down +z
	truePoses := make([]*spatialmath.Pose, 5)
	values := factor.Values{}
	keys := make([]factor.Key, len(truePoses))
	for i := range truePoses {
		truePoses[i] = spatialmath.NewPoseFromPoint(r3.Vector{X: float64(i) - 2})
		keys[i] = factor.Key(i + 1)
		values[keys[i]] = truePoses[i]
	}

	landmarks := []r3.Vector{
		{X: -0.5, Y: 0.3, Z: 8},
		{X: 0.4, Y: -0.2, Z: 10},
		{X: 1.2, Y: 0.1, Z: 7},
	}

	noiseModel, err := noise.NewIsotropic(2, *pixelSigma)
	if err != nil {
		return err
	}
	config := factor.DefaultConfig()
	config.DynamicOutlierRejectionThreshold = *gate

	rng := rand.New(rand.NewSource(*seed))
	factors := make([]*factor.SmartProjectionFactor, 0, len(landmarks))
	for li, landmark := range landmarks {
		smart, err := factor.NewSmartProjectionFactor(config, nil, nil, nil, nil, nil, logger)
		if err != nil {
			return err
		}
		for i, pose := range truePoses {
			cam := transform.NewPinholeCamera(pose, model)
			px, err := cam.Project(landmark)
			if err != nil {
				logger.Debugw("landmark not visible", "landmark", li, "pose", keys[i])
				continue
			}
			px.X += rng.NormFloat64() * *pixelSigma
			px.Y += rng.NormFloat64() * *pixelSigma
			if *outlierPx > 0 && i == len(truePoses)-1 {
				px.X += *outlierPx
			}
			if err := smart.Add(px, keys[i], model, noiseModel); err != nil {
				return err
			}
		}
		factors = append(factors, smart)
	}

	logger.Infow("evaluating at the true poses")
	if err := report(factors, values, logger); err != nil {
		return err
	}

	// perturb every pose and look again
	perturbed := factor.Values{}
	for i, key := range keys {
		perturbed[key] = spatialmath.Compose(truePoses[i],
			spatialmath.NewPoseFromAxisAngle(
				r3.Vector{X: 0.05 * float64(i%2), Y: -0.03},
				r3.Vector{Z: 1}, 0.02))
	}
	logger.Infow("evaluating at perturbed poses")
	return report(factors, perturbed, logger)
}

func report(factors []*factor.SmartProjectionFactor, values factor.Values, logger golog.Logger) error {
	for i, smart := range factors {
		cost, err := smart.Error(values)
		if err != nil {
			return err
		}
		linear, err := smart.Linearize(values)
		if err != nil {
			return err
		}
		if linear.IsZero() {
			logger.Infow("landmark inactive this pass", "landmark", i, "cost", cost)
			continue
		}
		var eig mat.EigenSym
		minEig := 0.0
		if ok := eig.Factorize(linear.Information(), false); ok {
			minEig = eig.Values(nil)[0]
		}
		logger.Infow("landmark eliminated",
			"landmark", i,
			"cost", cost,
			"poses", len(linear.Keys()),
			"dim", linear.Dim(),
			"gradient_norm", mat.Norm(linear.Gradient(), 2),
			"min_eigenvalue", minEig,
		)
	}
	return nil
}
