// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// maxArrayBytes bounds an inflated array whose spectrum declares no length.
const maxArrayBytes = 1 << 30

// decodeArray decodes one base64 binary data array into float64 values.
// mzML arrays are little-endian.
func decodeArray(encoded string, params []xmlCVParam, defaultLength int) ([]float64, error) {
	for _, p := range params {
		if name, ok := unsupportedCompression[p.Accession]; ok {
			return nil, fmt.Errorf("%w: %s compression", ErrUnsupported, name)
		}
	}

	width, isFloat := 8, true
	switch {
	case has(params, accFloat64):
	case has(params, accFloat32):
		width = 4
	case has(params, accInt64):
		isFloat = false
	case has(params, accInt32):
		width, isFloat = 4, false
	default:
		return nil, fmt.Errorf("%w: binary array without a data type", ErrUnsupported)
	}

	encoded = strings.Join(strings.Fields(encoded), "")
	if encoded == "" {
		if defaultLength > 0 {
			return nil, fmt.Errorf("binary array is empty, spectrum declares %d values", defaultLength)
		}
		return []float64{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}

	if has(params, accZlib) {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening zlib stream: %w", err)
		}
		limit := int64(maxArrayBytes)
		if defaultLength > 0 {
			limit = int64(defaultLength) * int64(width)
		}
		raw, err = io.ReadAll(io.LimitReader(zr, limit+1))
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("inflating zlib stream: %w", err)
		}
		if int64(len(raw)) > limit {
			return nil, fmt.Errorf("inflated binary array exceeds %d bytes", limit)
		}
	}

	if len(raw)%width != 0 {
		return nil, fmt.Errorf("binary array of %d bytes is not a multiple of %d", len(raw), width)
	}
	n := len(raw) / width
	if defaultLength > 0 && n != defaultLength {
		return nil, fmt.Errorf("binary array has %d values, spectrum declares %d", n, defaultLength)
	}

	out := make([]float64, n)
	for i := range out {
		chunk := raw[i*width : (i+1)*width]
		switch {
		case width == 8 && isFloat:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		case width == 4 && isFloat:
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case width == 8:
			out[i] = float64(int64(binary.LittleEndian.Uint64(chunk)))
		default:
			out[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		}
	}
	return out, nil
}

// has reports whether params contain the accession.
func has(params []xmlCVParam, accession string) bool {
	for _, p := range params {
		if p.Accession == accession {
			return true
		}
	}
	return false
}
