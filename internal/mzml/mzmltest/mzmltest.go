// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mzmltest builds small mzML documents for tests.
package mzmltest

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// Options controls how scans are encoded.
type Options struct {
	// Float32 stores arrays as 32-bit floats instead of 64-bit.
	Float32 bool

	// Zlib compresses the binary arrays.
	Zlib bool

	// Seconds reports scan start times in seconds instead of minutes.
	Seconds bool

	// MS2 inserts an MS2 spectrum after every MS1 spectrum.
	MS2 bool

	// Gzip compresses the whole file; Write appends ".gz" to the name.
	Gzip bool

	// ParamGroups moves the array data type into referenceableParamGroups.
	ParamGroups bool
}

// Build returns an mzML document holding scans.
func Build(scans []types.Scan, opts Options) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">` + "\n")
	b.WriteString(`<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">` + "\n")

	dtype := `<cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>`
	if opts.Float32 {
		dtype = `<cvParam cvRef="MS" accession="MS:1000521" name="32-bit float"/>`
	}
	if opts.ParamGroups {
		fmt.Fprintf(&b, "<referenceableParamGroupList count=\"1\">\n<referenceableParamGroup id=\"dtype\">%s</referenceableParamGroup>\n</referenceableParamGroupList>\n", dtype)
		dtype = `<referenceableParamGroupRef ref="dtype"/>`
	}

	b.WriteString("<run id=\"run\">\n<spectrumList>\n")
	n := 0
	for _, s := range scans {
		writeSpectrum(&b, n, s, 1, dtype, opts)
		n++
		if opts.MS2 {
			ms2 := types.Scan{ID: s.ID + "-ms2", RetentionTime: s.RetentionTime, Peaks: []types.Peak{{Mass: 50, Intensity: 1e9}}}
			for _, p := range s.Peaks {
				ms2.Peaks = append(ms2.Peaks, types.Peak{Mass: p.Mass, Intensity: p.Intensity * 1000})
			}
			writeSpectrum(&b, n, ms2, 2, dtype, opts)
			n++
		}
	}
	b.WriteString("</spectrumList>\n</run>\n</mzML>\n</indexedmzML>\n")
	return []byte(b.String())
}

// Write stores the document built from scans in dir and returns its path.
func Write(t *testing.T, dir, name string, scans []types.Scan, opts Options) string {
	t.Helper()
	data := Build(scans, opts)
	if opts.Gzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		data = buf.Bytes()
		name += ".gz"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeSpectrum(b *strings.Builder, index int, s types.Scan, level int, dtype string, opts Options) {
	id := s.ID
	if id == "" {
		id = fmt.Sprintf("scan=%d", index+1)
	}
	rt, unit := s.RetentionTime, `unitAccession="UO:0000031" unitName="minute"`
	if opts.Seconds {
		rt, unit = rt*60, `unitAccession="UO:0000010" unitName="second"`
	}

	mz := make([]float64, len(s.Peaks))
	in := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		mz[i], in[i] = p.Mass, p.Intensity
	}

	fmt.Fprintf(b, "<spectrum index=\"%d\" id=\"%s\" defaultArrayLength=\"%d\">\n", index, id, len(s.Peaks))
	fmt.Fprintf(b, "<cvParam cvRef=\"MS\" accession=\"MS:1000511\" name=\"ms level\" value=\"%d\"/>\n", level)
	fmt.Fprintf(b, "<scanList count=\"1\"><scan><cvParam cvRef=\"MS\" accession=\"MS:1000016\" name=\"scan start time\" value=\"%v\" %s/></scan></scanList>\n", rt, unit)
	b.WriteString("<binaryDataArrayList count=\"2\">\n")
	writeArray(b, mz, "MS:1000514", "m/z array", dtype, opts)
	writeArray(b, in, "MS:1000515", "intensity array", dtype, opts)
	b.WriteString("</binaryDataArrayList>\n</spectrum>\n")
}

func writeArray(b *strings.Builder, values []float64, accession, name, dtype string, opts Options) {
	var raw bytes.Buffer
	for _, v := range values {
		if opts.Float32 {
			binary.Write(&raw, binary.LittleEndian, math.Float32bits(float32(v)))
		} else {
			binary.Write(&raw, binary.LittleEndian, math.Float64bits(v))
		}
	}
	compression := `<cvParam cvRef="MS" accession="MS:1000576" name="no compression"/>`
	data := raw.Bytes()
	if opts.Zlib {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		zw.Write(data)
		zw.Close()
		data = z.Bytes()
		compression = `<cvParam cvRef="MS" accession="MS:1000574" name="zlib compression"/>`
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	fmt.Fprintf(b, "<binaryDataArray encodedLength=\"%d\">\n%s\n%s\n", len(encoded), dtype, compression)
	fmt.Fprintf(b, "<cvParam cvRef=\"MS\" accession=\"%s\" name=\"%s\"/>\n", accession, name)
	fmt.Fprintf(b, "<binary>%s</binary>\n</binaryDataArray>\n", encoded)
}
