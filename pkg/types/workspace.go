package types

import "fmt"

// Workspace status values written to the Status column.
const (
	StatusReady      = "Ready"
	StatusIncomplete = "Incomplete"
)

// Lattice holds the unit cell parameters of a workspace sample. Lengths are
// in angstroms, angles in degrees.
type Lattice struct {
	A     float64 `json:"a" yaml:"a"`
	B     float64 `json:"b" yaml:"b"`
	C     float64 `json:"c" yaml:"c"`
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`
}

// Valid reports whether every length is positive and finite and every angle
// lies in the open interval (0, 180).
func (l Lattice) Valid() bool {
	if !l.Finite() {
		return false
	}
	for _, length := range []float64{l.A, l.B, l.C} {
		if !(length > 0) {
			return false
		}
	}
	for _, angle := range []float64{l.Alpha, l.Beta, l.Gamma} {
		if !(angle > 0 && angle < 180) {
			return false
		}
	}
	return true
}

// Finite reports whether no parameter is NaN or infinite. A lattice that is
// not finite cannot be stored.
func (l Lattice) Finite() bool {
	for _, p := range []float64{l.A, l.B, l.C, l.Alpha, l.Beta, l.Gamma} {
		if !Finite(p) {
			return false
		}
	}
	return true
}

// Status returns StatusReady for a valid lattice and StatusIncomplete otherwise.
func (l Lattice) Status() string {
	if l.Valid() {
		return StatusReady
	}
	return StatusIncomplete
}

// Workspace is the source entity registered into a memento collection.
// Only its metadata is recorded; the data itself lives elsewhere.
type Workspace struct {
	Name       string  `json:"name" yaml:"name"`
	RunNumber  int64   `json:"run_number" yaml:"run_number"`
	Instrument string  `json:"instrument" yaml:"instrument"`
	Lattice    Lattice `json:"lattice" yaml:"lattice"`
}

// Validate checks the fields required for registration.
func (w Workspace) Validate() error {
	if w.Name == "" {
		return ErrInvalidName
	}
	if w.RunNumber < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRunNumber, w.RunNumber)
	}
	if !w.Lattice.Finite() {
		return fmt.Errorf("%w: parameters must be finite", ErrInvalidLattice)
	}
	return nil
}
