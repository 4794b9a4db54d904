// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ionlist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/xic-engine/internal/httputil"
	"github.com/pdiddy/xic-engine/pkg/types"
)

// --- test helpers ---

func newTestResolver(t *testing.T, cfg types.IonListConfig, opts ...Option) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func compoundNames(list *types.IonList) []string {
	names := make([]string, len(list.Compounds))
	for i, c := range list.Compounds {
		names[i] = c.Name
	}
	return names
}

func requireResolutionError(t *testing.T, err error) *ResolutionError {
	t.Helper()
	require.Error(t, err)
	var rerr *ResolutionError
	require.True(t, errors.As(err, &rerr), "expected *ResolutionError, got %T: %v", err, err)
	return rerr
}

const pfasJSON = `{
  "PFAS": {
    "PFOA": {"ions": [413.0, 369.0], "info": ["[M-H]-", "[M-COOH]-"], "formula": "C8HF15O2"},
    "PFOS": {"ions": [498.93022], "info": ["[M-H]-"]},
    "GenX": {"ions": [328.9685]}
  }
}`

// --- tests ---

func TestResolve_DefaultIsBuiltinSCFAs(t *testing.T) {
	r := newTestResolver(t, types.IonListConfig{})

	list, err := r.Resolve(context.Background(), Ref{})
	require.NoError(t, err)

	assert.Equal(t, "scfas", list.Name)
	assert.Equal(t, BuiltinSource, list.Source)
	names := compoundNames(list)
	assert.Equal(t, "Formic acid", names[0])
	assert.Contains(t, names, "Butyric acid")

	acetic := list.Compounds[1]
	assert.Equal(t, "Acetic acid", acetic.Name)
	require.Len(t, acetic.Ions, 1)
	assert.Equal(t, "59.01385", acetic.Ions[0].Name)
	assert.Equal(t, 59.01385, acetic.Ions[0].ExpectedMass)
	assert.Equal(t, "[M-H]-", acetic.Ions[0].Label)
	assert.Equal(t, []string{"[M-H]-"}, acetic.Info)
}

func TestResolve_ConfiguredDefaultName(t *testing.T) {
	r := newTestResolver(t, types.IonListConfig{DefaultName: "pfas"})
	list, err := r.Resolve(context.Background(), Ref{})
	require.NoError(t, err)
	assert.Equal(t, "pfas", list.Name)
	assert.Equal(t, "pfas", r.DefaultName())
}

func TestResolve_BothSetIsAmbiguous(t *testing.T) {
	r := newTestResolver(t, types.IonListConfig{})
	_, err := r.Resolve(context.Background(), Ref{Name: "scfas", Path: "x.json"})
	rerr := requireResolutionError(t, err)
	assert.ErrorIs(t, rerr, ErrAmbiguous)
}

func TestLoadNamed_Unknown(t *testing.T) {
	r := newTestResolver(t, types.IonListConfig{})
	_, err := r.LoadNamed(context.Background(), "nope")
	rerr := requireResolutionError(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "nope", rerr.Ref.Name)
	assert.Contains(t, err.Error(), "scfas")
}

func TestLoadNamed_CachesResult(t *testing.T) {
	r := newTestResolver(t, types.IonListConfig{})
	a, err := r.LoadNamed(context.Background(), "pfas")
	require.NoError(t, err)
	b, err := r.LoadNamed(context.Background(), "pfas")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestLoadNamed_UserLibrary(t *testing.T) {
	dir := t.TempDir()
	lib := writeFile(t, dir, "lib.yaml", `
first:
  A: {ions: [100.5]}
second:
  B: {ions: [200.25, 201.25], info: [M, M+1]}
`)
	r := newTestResolver(t, types.IonListConfig{Library: lib})

	names, err := r.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, names)

	list, err := r.LoadNamed(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, lib, list.Source)
	assert.Equal(t, []string{"200.25", "201.25"}, []string{list.Compounds[0].Ions[0].Name, list.Compounds[0].Ions[1].Name})
	assert.Equal(t, "M+1", list.Compounds[0].Ions[1].Label)

	_, err = r.LoadNamed(context.Background(), "scfas")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFromPath_JSONLibraryPreservesOrder(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pfas.json", pfasJSON)
	r := newTestResolver(t, types.IonListConfig{})

	list, err := r.Resolve(context.Background(), Ref{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "PFAS", list.Name)
	assert.Equal(t, path, list.Source)
	assert.Equal(t, []string{"PFOA", "PFOS", "GenX"}, compoundNames(list))
	assert.Equal(t, "413", list.Compounds[0].Ions[0].Name)
	assert.Equal(t, "C8HF15O2", list.Compounds[0].Formula)
	assert.Empty(t, list.Compounds[2].Ions[0].Label)
	assert.Equal(t, 4, list.IonCount())
}

func TestLoadFromPath_BareCompoundMapping(t *testing.T) {
	path := writeFile(t, t.TempDir(), "panel.yaml", `
Zeta: {ions: [300]}
Alpha: {ions: [150.125]}
`)
	r := newTestResolver(t, types.IonListConfig{})

	list, err := r.LoadFromPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "panel", list.Name)
	assert.Equal(t, []string{"Zeta", "Alpha"}, compoundNames(list))
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantMsg string
	}{
		{"missing file", "absent.json", "", "reading ion list"},
		{"unsupported extension", "list.txt", "x", "unsupported ion-list file type"},
		{"malformed", "bad.json", `{"L": {"A": {"ions": [1,}}}`, "parsing"},
		{"empty", "empty.yaml", "", "empty ion-list document"},
		{"not a mapping", "seq.yaml", "- 1\n- 2\n", "must be a mapping"},
		{"no ions", "noions.yaml", "L:\n  A: {ions: []}\n", "at least 1"},
		{"zero mass", "zero.yaml", "L:\n  A: {ions: [0]}\n", "greater than 0"},
		{"nan mass", "nan.yaml", "L:\n  A: {ions: [.nan]}\n", "finite"},
		{"duplicate mass", "dup.yaml", "L:\n  A: {ions: [100, 100.0]}\n", "more than once"},
		{"info too long", "info.yaml", "L:\n  A: {ions: [100], info: [a, b]}\n", "more entries than ions"},
		{"two lists", "two.yaml", "L1:\n  A: {ions: [1]}\nL2:\n  B: {ions: [2]}\n", "holds 2 lists"},
		{"non-numeric ion", "str.yaml", "L:\n  A: {ions: [abc]}\n", "compound \"A\""},
		{"no compounds", "nocomp.yaml", "L: {}\n", "at least 1"},
		{"duplicate compound", "dupcomp.json", `{"PFOA": {"ions": [413.0]}, "PFOA": {"ions": [369.0]}}`, `compound "PFOA" more than once`},
		{"duplicate compound in library", "dupcomp.yaml", "L:\n  A: {ions: [1]}\n  A: {ions: [2]}\n", `compound "A" more than once`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			if tt.content != "" || tt.name == "empty" {
				writeFile(t, dir, tt.file, tt.content)
			}
			r := newTestResolver(t, types.IonListConfig{})

			_, err := r.LoadFromPath(context.Background(), path)
			rerr := requireResolutionError(t, err)
			assert.Equal(t, path, rerr.Ref.Path)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFromPath_ValidationNamesCompound(t *testing.T) {
	path := writeFile(t, t.TempDir(), "l.yaml", "L:\n  Good: {ions: [1]}\n  Bad: {ions: [-5]}\n")
	r := newTestResolver(t, types.IonListConfig{})
	_, err := r.LoadFromPath(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `compound "Bad"`)
}

func TestLoadFromPath_HTTP(t *testing.T) {
	httputil.RetryBaseDelay = 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pfas.json":
			w.Write([]byte(pfasJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := httputil.NewClient(0, "test", 1)
	client.HTTP = ts.Client()
	r := newTestResolver(t, types.IonListConfig{}, WithHTTPClient(client))

	list, err := r.LoadFromPath(context.Background(), ts.URL+"/pfas.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"PFOA", "PFOS", "GenX"}, compoundNames(list))

	_, err = r.LoadFromPath(context.Background(), ts.URL+"/missing.json")
	requireResolutionError(t, err)
}

func TestListNameFromLocation(t *testing.T) {
	assert.Equal(t, "panel", listNameFromLocation("/data/panel.yaml"))
	assert.Equal(t, "pfas", listNameFromLocation("https://example.org/lists/pfas.json?v=2"))
}

func TestIonName(t *testing.T) {
	assert.Equal(t, "413", IonName(413.0))
	assert.Equal(t, "59.01385", IonName(59.01385))
	assert.Equal(t, "0.1", IonName(0.1))
}

func TestBuiltinLibraryIsValid(t *testing.T) {
	r := newTestResolver(t, types.IonListConfig{})
	names, err := r.Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	for _, name := range names {
		_, err := r.LoadNamed(context.Background(), name)
		assert.NoError(t, err, name)
	}
}
