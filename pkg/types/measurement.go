// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// Attribute names used in encoded ion attribute mappings.
const (
	AttrIntensity     = "intensity"
	AttrRetentionTime = "retention_time"
	AttrObservedMass  = "observed_mass"
)

// IonAttributes holds the measured values for one target ion. Every field
// is absent when no scan produced a match.
type IonAttributes struct {
	// Intensity is the apex intensity.
	Intensity Optional[float64] `json:"intensity,omitzero" yaml:"intensity,omitempty"`

	// RetentionTime is the retention time (minutes) of the apex scan.
	RetentionTime Optional[float64] `json:"retention_time,omitzero" yaml:"retention_time,omitempty"`

	// ObservedMass is the observed m/z of the apex peak.
	ObservedMass Optional[float64] `json:"observed_mass,omitzero" yaml:"observed_mass,omitempty"`
}

// Matched reports whether any attribute is present.
func (a IonAttributes) Matched() bool {
	return a.Intensity.Valid() || a.RetentionTime.Valid() || a.ObservedMass.Valid()
}

// Values returns the present attributes keyed by their encoded names.
func (a IonAttributes) Values() map[string]float64 {
	out := make(map[string]float64, 3)
	if v, ok := a.Intensity.Get(); ok {
		out[AttrIntensity] = v
	}
	if v, ok := a.RetentionTime.Get(); ok {
		out[AttrRetentionTime] = v
	}
	if v, ok := a.ObservedMass.Get(); ok {
		out[AttrObservedMass] = v
	}
	return out
}

// IonEntry pairs an ion name with its measured attributes.
type IonEntry struct {
	Name       string
	Attributes IonAttributes
}

// IonSet is an ordered mapping from ion name to attributes. It encodes as a
// JSON object / YAML mapping whose keys keep the ion list's declared order.
type IonSet []IonEntry

// Get returns the attributes of the named ion.
func (s IonSet) Get(name string) (IonAttributes, bool) {
	for _, e := range s {
		if e.Name == name {
			return e.Attributes, true
		}
	}
	return IonAttributes{}, false
}

// Names returns the ion names in order.
func (s IonSet) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}

func (s IonSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Attributes)
		if err != nil {
			return nil, fmt.Errorf("encoding ion %q: %w", e.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *IonSet) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ion set: expected object, got %v", tok)
	}
	var out IonSet
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ion set: expected ion name, got %v", tok)
		}
		var attrs IonAttributes
		if err := dec.Decode(&attrs); err != nil {
			return fmt.Errorf("decoding ion %q: %w", name, err)
		}
		out = append(out, IonEntry{Name: name, Attributes: attrs})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s IonSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range s {
		var val yaml.Node
		if err := val.Encode(e.Attributes); err != nil {
			return nil, fmt.Errorf("encoding ion %q: %w", e.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Name},
			&val,
		)
	}
	return node, nil
}

func (s *IonSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("ion set: expected mapping at line %d", node.Line)
	}
	out := make(IonSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var attrs IonAttributes
		if err := node.Content[i+1].Decode(&attrs); err != nil {
			return fmt.Errorf("decoding ion %q: %w", node.Content[i].Value, err)
		}
		out = append(out, IonEntry{Name: node.Content[i].Value, Attributes: attrs})
	}
	*s = out
	return nil
}

// Compound is the measured result for one compound group.
type Compound struct {
	// Name matches the compound group name of the ion list.
	Name string `json:"name" yaml:"name"`

	// Ions holds one entry per target ion of the group, in declared order.
	Ions IonSet `json:"ions" yaml:"ions"`

	// IonInfo is the group's descriptive metadata, copied unchanged.
	IonInfo []string `json:"ion_info" yaml:"ion_info"`
}

// Measurement is the per-file result of the measurement engine.
type Measurement struct {
	// MassAccuracy echoes the tolerance supplied for this file.
	MassAccuracy float32 `json:"mass_accuracy" yaml:"mass_accuracy"`

	// Xics holds one Compound per compound group of the ion list, in list order.
	Xics []Compound `json:"xics" yaml:"xics"`

	// SpectraData is reserved for raw spectral data. It is always an empty
	// list so the output format stays stable.
	SpectraData []any `json:"spectra_data" yaml:"spectra_data"`
}

// Compound returns the compound with the given name.
func (m *Measurement) Compound(name string) (Compound, bool) {
	for _, c := range m.Xics {
		if c.Name == name {
			return c, true
		}
	}
	return Compound{}, false
}

// Chromatogram is the extracted ion chromatogram of one target ion: the
// selected intensity in every scan (0 where nothing matched).
type Chromatogram struct {
	Compound       string    `json:"compound" yaml:"compound"`
	Ion            string    `json:"ion" yaml:"ion"`
	RetentionTimes []float64 `json:"retention_times" yaml:"retention_times"`
	Intensities    []float64 `json:"intensities" yaml:"intensities"`
}
