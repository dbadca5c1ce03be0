package factor

// NonlinearFactor is the contract an optimizer drives every iteration: evaluate the
// scalar error at the current values and linearize into a Gaussian factor. Both must
// be deterministic for fixed inputs.
type NonlinearFactor interface {
	// Keys returns the variable keys this factor constrains, in observation order.
	Keys() []Key
	// Error returns the scalar cost at the given values, zero when inactive.
	Error(values Values) (float64, error)
	// Linearize returns an information-form factor over this factor's active keys.
	Linearize(values Values) (*HessianFactor, error)
	// Equals compares structure and parameters within tol.
	Equals(other NonlinearFactor, tol float64) bool
	// String renders the factor for printing.
	String() string
}
