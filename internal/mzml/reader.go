// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mzml reads MS1 scans from mzML files. Spectra are streamed one at
// a time, so memory use is bounded by the MS1 scans kept, not by the file.
// Plain and gzip-compressed (.gz) files are supported, as are zlib-compressed
// 32/64-bit binary arrays and referenceable parameter groups.
package mzml

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// PSI-MS and unit ontology accessions.
const (
	accMSLevel        = "MS:1000511"
	accMS1Spectrum    = "MS:1000579"
	accMSnSpectrum    = "MS:1000580"
	accScanStartTime  = "MS:1000016"
	accMZArray        = "MS:1000514"
	accIntensityArray = "MS:1000515"
	accFloat32        = "MS:1000521"
	accFloat64        = "MS:1000523"
	accInt32          = "MS:1000519"
	accInt64          = "MS:1000522"
	accZlib           = "MS:1000574"
	accNoCompression  = "MS:1000576"
	accUnitSecond     = "UO:0000010"
	accUnitMinute     = "UO:0000031"
	accUnitHour       = "UO:0000032"
)

// unsupportedCompression names compression schemes that are recognized but
// not decoded.
var unsupportedCompression = map[string]string{
	"MS:1002312": "MS-Numpress linear",
	"MS:1002313": "MS-Numpress positive integer",
	"MS:1002314": "MS-Numpress short logged float",
	"MS:1002746": "MS-Numpress linear + zlib",
	"MS:1002747": "MS-Numpress positive integer + zlib",
	"MS:1002748": "MS-Numpress short logged float + zlib",
}

// ErrUnsupported marks data the reader recognizes but cannot decode.
var ErrUnsupported = errors.New("unsupported mzML encoding")

// ScanLoadError reports that a file's scans could not be obtained.
type ScanLoadError struct {
	Path string
	Err  error
}

func (e *ScanLoadError) Error() string {
	return fmt.Sprintf("loading scans from %s: %v", e.Path, e.Err)
}

func (e *ScanLoadError) Unwrap() error { return e.Err }

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the reader's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// Reader loads MS1 scans from mzML files. It holds no per-file state and
// may be shared by concurrent tasks.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a Reader.
func NewReader(opts ...Option) *Reader {
	r := &Reader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadScans returns the MS1 scans of the mzML file at path in acquisition
// order. Failures are reported as *ScanLoadError.
func (r *Reader) LoadScans(ctx context.Context, path string) ([]types.Scan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ScanLoadError{Path: path, Err: err}
	}
	defer f.Close()

	var src io.Reader = bufio.NewReaderSize(f, 1<<16)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, &ScanLoadError{Path: path, Err: fmt.Errorf("opening gzip stream: %w", err)}
		}
		defer gz.Close()
		src = gz
	}

	scans, err := r.Decode(ctx, src)
	if err != nil {
		return nil, &ScanLoadError{Path: path, Err: err}
	}
	r.logger.Debug("loaded scans", zap.String("file", path), zap.Int("ms1_scans", len(scans)))
	return scans, nil
}

// Decode reads mzML from src and returns its MS1 scans. It checks ctx
// between spectra.
func (r *Reader) Decode(ctx context.Context, src io.Reader) ([]types.Scan, error) {
	dec := xml.NewDecoder(src)
	groups := make(paramGroups)
	var (
		scans   []types.Scan
		sawRoot bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "mzML":
			sawRoot = true
		case "referenceableParamGroup":
			var g xmlParamGroup
			if err := dec.DecodeElement(&g, &start); err != nil {
				return nil, fmt.Errorf("reading referenceableParamGroup: %w", err)
			}
			groups[g.ID] = g.CVParams
		case "spectrum":
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var s xmlSpectrum
			if err := dec.DecodeElement(&s, &start); err != nil {
				return nil, fmt.Errorf("reading spectrum: %w", err)
			}
			scan, keep, err := convertSpectrum(&s, groups)
			if err != nil {
				return nil, fmt.Errorf("spectrum %q: %w", s.ID, err)
			}
			if !keep {
				continue
			}
			scan.Index = len(scans)
			scans = append(scans, scan)
		}
	}

	if !sawRoot {
		return nil, errors.New("not an mzML document: no <mzML> element")
	}
	return scans, nil
}

// convertSpectrum turns a decoded spectrum into a Scan. keep is false for
// spectra that are not MS1.
func convertSpectrum(s *xmlSpectrum, groups paramGroups) (types.Scan, bool, error) {
	params := groups.expand(s.CVParams, s.GroupRefs)
	if level := msLevel(params); level != 1 {
		return types.Scan{}, false, nil
	}

	rt, err := retentionTime(s, groups)
	if err != nil {
		return types.Scan{}, false, err
	}

	var mz, intensity []float64
	haveMZ, haveIntensity := false, false
	for i := range s.BinaryArrays {
		arr := &s.BinaryArrays[i]
		arrParams := groups.expand(arr.CVParams, arr.GroupRefs)
		switch {
		case has(arrParams, accMZArray):
			mz, err = decodeArray(arr.Binary, arrParams, s.DefaultArrayLength)
			haveMZ = true
		case has(arrParams, accIntensityArray):
			intensity, err = decodeArray(arr.Binary, arrParams, s.DefaultArrayLength)
			haveIntensity = true
		default:
			continue
		}
		if err != nil {
			return types.Scan{}, false, err
		}
	}

	if s.DefaultArrayLength > 0 && (!haveMZ || !haveIntensity) {
		return types.Scan{}, false, errors.New("missing m/z or intensity array")
	}
	if len(mz) != len(intensity) {
		return types.Scan{}, false, fmt.Errorf("m/z array has %d values but intensity array has %d", len(mz), len(intensity))
	}

	peaks := make([]types.Peak, len(mz))
	for i := range mz {
		peaks[i] = types.Peak{Mass: mz[i], Intensity: intensity[i]}
	}
	return types.Scan{ID: s.ID, RetentionTime: rt, Peaks: peaks}, true, nil
}

// msLevel returns the spectrum's MS level, defaulting to 1 when the
// spectrum does not state one.
func msLevel(params []xmlCVParam) int {
	for _, p := range params {
		switch p.Accession {
		case accMSLevel:
			if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
				return n
			}
		case accMS1Spectrum:
			return 1
		case accMSnSpectrum:
			return 0
		}
	}
	return 1
}

// retentionTime returns the scan start time in minutes.
func retentionTime(s *xmlSpectrum, groups paramGroups) (float64, error) {
	candidates := [][]xmlCVParam{groups.expand(s.CVParams, s.GroupRefs)}
	for _, sc := range s.ScanList.Scans {
		candidates = append(candidates, groups.expand(sc.CVParams, sc.GroupRefs))
	}
	for _, params := range candidates {
		for _, p := range params {
			if p.Accession != accScanStartTime {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
			if err != nil {
				return 0, fmt.Errorf("parsing scan start time %q: %w", p.Value, err)
			}
			switch {
			case p.UnitAccession == accUnitSecond || strings.EqualFold(p.UnitName, "second"):
				return v / 60, nil
			case p.UnitAccession == accUnitHour || strings.EqualFold(p.UnitName, "hour"):
				return v * 60, nil
			default:
				return v, nil
			}
		}
	}
	return 0, errors.New("missing scan start time")
}
