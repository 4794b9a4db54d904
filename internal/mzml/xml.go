// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mzml

// XML shapes for the parts of an mzML document the reader consumes.

type xmlCVParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
	UnitName      string `xml:"unitName,attr"`
}

type xmlGroupRef struct {
	Ref string `xml:"ref,attr"`
}

type xmlParamGroup struct {
	ID       string       `xml:"id,attr"`
	CVParams []xmlCVParam `xml:"cvParam"`
}

type xmlScan struct {
	CVParams  []xmlCVParam  `xml:"cvParam"`
	GroupRefs []xmlGroupRef `xml:"referenceableParamGroupRef"`
}

type xmlBinaryArray struct {
	CVParams  []xmlCVParam  `xml:"cvParam"`
	GroupRefs []xmlGroupRef `xml:"referenceableParamGroupRef"`
	Binary    string        `xml:"binary"`
}

type xmlSpectrum struct {
	ID                 string        `xml:"id,attr"`
	DefaultArrayLength int           `xml:"defaultArrayLength,attr"`
	CVParams           []xmlCVParam  `xml:"cvParam"`
	GroupRefs          []xmlGroupRef `xml:"referenceableParamGroupRef"`
	ScanList           struct {
		Scans []xmlScan `xml:"scan"`
	} `xml:"scanList"`
	BinaryArrays []xmlBinaryArray `xml:"binaryDataArrayList>binaryDataArray"`
}

// paramGroups maps referenceableParamGroup ids to their parameters.
type paramGroups map[string][]xmlCVParam

// expand returns params followed by the parameters of every referenced group.
func (g paramGroups) expand(params []xmlCVParam, refs []xmlGroupRef) []xmlCVParam {
	if len(refs) == 0 {
		return params
	}
	out := append([]xmlCVParam(nil), params...)
	for _, ref := range refs {
		out = append(out, g[ref.Ref]...)
	}
	return out
}
