// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// TargetIon is an ion to search for in every scan.
type TargetIon struct {
	// Name identifies the ion within its compound group. The resolver
	// derives it from the expected mass.
	Name string `json:"name" yaml:"name" validate:"required"`

	// ExpectedMass is the theoretical m/z of the ion.
	ExpectedMass float64 `json:"expected_mass" yaml:"expected_mass" validate:"finite,gt=0"`

	// Label is an opaque annotation such as an adduct ("[M-H]-").
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// CompoundGroup groups the ions that belong to one analyte, e.g. several
// adducts or isotopes of the same compound.
type CompoundGroup struct {
	// Name is the compound name and the grouping key of the ion list.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Ions lists the target ions in declared order.
	Ions []TargetIon `json:"ions" yaml:"ions" validate:"min=1,dive"`

	// Info is descriptive metadata propagated unchanged into the
	// measurement's ion_info.
	Info []string `json:"info,omitempty" yaml:"info,omitempty"`

	// Formula is the optional molecular formula of the compound.
	Formula string `json:"formula,omitempty" yaml:"formula,omitempty"`

	// Sequence is the optional peptide sequence of the compound.
	Sequence string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

// IonList is a resolved target-ion panel. It is immutable once loaded and
// shared read-only by every file task of a batch.
type IonList struct {
	// Name is the list name (the library key for named lists).
	Name string `json:"name" yaml:"name" validate:"required"`

	// Source records where the list was loaded from ("builtin", a path, or a URL).
	Source string `json:"source" yaml:"source"`

	// Compounds lists the compound groups in declared order.
	Compounds []CompoundGroup `json:"compounds" yaml:"compounds" validate:"min=1,dive"`
}

// IonCount returns the number of target ions across all compound groups.
func (l *IonList) IonCount() int {
	n := 0
	for _, c := range l.Compounds {
		n += len(c.Ions)
	}
	return n
}
