package factor

import (
	"encoding/json"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/ryandeen31/gtsam/noise"
	"github.com/ryandeen31/gtsam/spatialmath"
	"github.com/ryandeen31/gtsam/transform"
)

// smartFactorFormatVersion identifies the serialized structure. Round-trip
// correctness is guaranteed within a version; unknown versions are rejected.
const smartFactorFormatVersion = 1

type smartFactorJSON struct {
	Version        int                             `json:"version"`
	Config         Config                          `json:"config"`
	Keys           []Key                           `json:"keys"`
	Measurements   []r2.Point                      `json:"measurements"`
	Calibrations   []*transform.PinholeCameraModel `json:"calibrations"`
	NoiseSigmas    [][]float64                     `json:"noise_sigmas"`
	BodyPoseSensor *spatialmath.Pose               `json:"body_pose_sensor,omitempty"`
}

// MarshalJSON serializes the factor's base state and calibration-handle list in a
// versioned structured format. The relinearization cache and logger are transient
// and not serialized.
func (f *SmartProjectionFactor) MarshalJSON() ([]byte, error) {
	sigmas := make([][]float64, len(f.noiseModels))
	for i, m := range f.noiseModels {
		sigmas[i] = m.Sigmas()
	}
	return json.Marshal(smartFactorJSON{
		Version:        smartFactorFormatVersion,
		Config:         f.config,
		Keys:           f.Keys(),
		Measurements:   f.Measurements(),
		Calibrations:   f.calibrations,
		NoiseSigmas:    sigmas,
		BodyPoseSensor: f.bodyPoseSensor,
	})
}

// UnmarshalJSON restores a factor serialized by MarshalJSON. The logger is left
// unset; use SetLogger afterwards if debug events are wanted.
func (f *SmartProjectionFactor) UnmarshalJSON(data []byte) error {
	var in smartFactorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Version != smartFactorFormatVersion {
		return errors.Errorf("unsupported smart factor format version %d", in.Version)
	}
	noiseModels := make([]noise.Model, len(in.NoiseSigmas))
	for i, sigmas := range in.NoiseSigmas {
		model, err := noise.NewDiagonal(sigmas)
		if err != nil {
			return errors.Wrapf(err, "noise model %d", i)
		}
		noiseModels[i] = model
	}
	restored, err := NewSmartProjectionFactor(
		in.Config, in.Keys, in.Measurements, in.Calibrations, noiseModels, in.BodyPoseSensor, nil)
	if err != nil {
		return err
	}
	*f = *restored
	return nil
}
