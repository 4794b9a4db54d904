// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export converts measurements into host-native records and writes
// batch results as JSON, JSON Lines or YAML. Conversion runs after all
// parallel work has finished and is single-threaded.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// Record is a measurement as nested native values:
//
//	{"mass_accuracy": float32,
//	 "xics": [{"name": string, "ions": {ion: {attr: float64}}, "ion_info": []string}],
//	 "spectra_data": []}
//
// Absent ion attributes are omitted, so an unmatched ion maps to an empty
// mapping.
type Record map[string]any

// ToRecord converts one measurement.
func ToRecord(m types.Measurement) Record {
	xics := make([]map[string]any, len(m.Xics))
	for i, c := range m.Xics {
		ions := make(map[string]map[string]float64, len(c.Ions))
		for _, e := range c.Ions {
			ions[e.Name] = e.Attributes.Values()
		}
		info := make([]string, len(c.IonInfo))
		copy(info, c.IonInfo)
		xics[i] = map[string]any{
			"name":     c.Name,
			"ions":     ions,
			"ion_info": info,
		}
	}
	return Record{
		"mass_accuracy": m.MassAccuracy,
		"xics":          xics,
		"spectra_data":  []any{},
	}
}

// ToRecords converts measurements in order.
func ToRecords(ms []types.Measurement) []Record {
	out := make([]Record, len(ms))
	for i, m := range ms {
		out[i] = ToRecord(m)
	}
	return out
}

// ParseFormat validates an output format name. The empty string selects JSON.
func ParseFormat(s string) (types.OutputFormat, error) {
	switch f := types.OutputFormat(s); f {
	case "":
		return types.OutputJSON, nil
	case types.OutputJSON, types.OutputJSONL, types.OutputYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q: use json, jsonl or yaml", s)
}

// Write encodes one document per file result, in slot order. Successful
// files carry their measurement; failed files carry their stage and error.
func Write(w io.Writer, format types.OutputFormat, files []types.FileResult) error {
	if files == nil {
		files = []types.FileResult{}
	}
	switch format {
	case types.OutputJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(files); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
	case types.OutputJSONL:
		enc := json.NewEncoder(w)
		for _, f := range files {
			if err := enc.Encode(f); err != nil {
				return fmt.Errorf("encoding %s: %w", f.Path, err)
			}
		}
	case types.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(files); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}
