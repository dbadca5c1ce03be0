// Package factor implements smart projection factors: multi-view constraints on
// camera poses from repeated sightings of a single landmark, with the landmark
// triangulated and eliminated rather than optimized as a variable.
package factor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ryandeen31/gtsam/spatialmath"
)

// Key identifies a pose variable in the optimizer's variable store.
type Key uint64

// String formats a key for printing.
func (k Key) String() string {
	return fmt.Sprintf("x%d", uint64(k))
}

// ErrMissingVariable is returned when a factor references a key absent from the
// variable store. Graph construction is responsible for ensuring all referenced
// keys exist before optimization.
var ErrMissingVariable = errors.New("missing variable")

// ErrDimensionMismatch is returned at construction when parallel per-observation
// lists disagree in length.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Values is a pose variable store. Factors only read from it; the optimizer owns
// and mutates the poses.
type Values map[Key]*spatialmath.Pose

// PoseAt looks up the pose for a key, failing with ErrMissingVariable if absent.
func (v Values) PoseAt(k Key) (*spatialmath.Pose, error) {
	pose, ok := v[k]
	if !ok {
		return nil, errors.Wrapf(ErrMissingVariable, "key %v", k)
	}
	return pose, nil
}
