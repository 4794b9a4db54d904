// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ionlist

import (
	"fmt"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// rawCompound is the on-disk form of one compound group.
type rawCompound struct {
	Ions     []float64 `yaml:"ions"`
	Info     []string  `yaml:"info"`
	Formula  string    `yaml:"formula"`
	Sequence string    `yaml:"sequence"`
}

// IonName returns the name under which an ion of the given expected mass
// appears in a Measurement: the shortest decimal form that round-trips.
func IonName(mass float64) string {
	return strconv.FormatFloat(mass, 'f', -1, 64)
}

// parseDocument decodes a JSON or YAML ion-list document into its root
// mapping node.
func parseDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing ion-list document: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty ion-list document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: ion-list document must be a mapping", root.Line)
	}
	return root, nil
}

// decodeLibrary decodes every list of a library document in declared order.
func decodeLibrary(root *yaml.Node, source string) ([]*types.IonList, error) {
	lists := make([]*types.IonList, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		list, err := decodeList(root.Content[i].Value, root.Content[i+1], source)
		if err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// libraryNames returns the list names of a library document without
// decoding the lists.
func libraryNames(root *yaml.Node) []string {
	names := make([]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		names = append(names, root.Content[i].Value)
	}
	return names
}

// findList returns the node of the named list, or nil.
func findList(root *yaml.Node, name string) *yaml.Node {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == name {
			return root.Content[i+1]
		}
	}
	return nil
}

// isCompoundMapping reports whether node maps compound names directly to
// compound bodies, i.e. is a single list rather than a library.
func isCompoundMapping(node *yaml.Node) bool {
	if node.Kind != yaml.MappingNode || len(node.Content) < 2 {
		return false
	}
	body := node.Content[1]
	if body.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		if body.Content[i].Value == "ions" {
			return true
		}
	}
	return false
}

// decodeList decodes a mapping of compound name to compound body.
func decodeList(name string, node *yaml.Node, source string) (*types.IonList, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("list %q (line %d): expected a mapping of compounds", name, node.Line)
	}
	list := &types.IonList{
		Name:      name,
		Source:    source,
		Compounds: make([]types.CompoundGroup, 0, len(node.Content)/2),
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, body := node.Content[i], node.Content[i+1]
		group, err := decodeCompound(key.Value, body)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", name, err)
		}
		list.Compounds = append(list.Compounds, group)
	}
	return list, nil
}

func decodeCompound(name string, node *yaml.Node) (types.CompoundGroup, error) {
	if node.Kind != yaml.MappingNode {
		return types.CompoundGroup{}, fmt.Errorf("compound %q (line %d): expected a mapping", name, node.Line)
	}
	var raw rawCompound
	if err := node.Decode(&raw); err != nil {
		return types.CompoundGroup{}, fmt.Errorf("compound %q: %w", name, err)
	}

	group := types.CompoundGroup{
		Name:     name,
		Ions:     make([]types.TargetIon, len(raw.Ions)),
		Info:     raw.Info,
		Formula:  raw.Formula,
		Sequence: raw.Sequence,
	}
	for i, mz := range raw.Ions {
		ion := types.TargetIon{Name: IonName(mz), ExpectedMass: mz}
		if i < len(raw.Info) {
			ion.Label = raw.Info[i]
		}
		group.Ions[i] = ion
	}
	return group, nil
}
