// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ionlist resolves target-ion panels. A list is addressed either by
// name, looked up in a library document (the embedded built-in library or a
// user-supplied one), or by location, a local JSON/YAML file or an http(s)
// URL. Every resolved list is validated before it is returned, and every
// failure is reported as a *ResolutionError before any file is processed.
package ionlist

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/maypok86/otter"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/xic-engine/internal/httputil"
	"github.com/pdiddy/xic-engine/pkg/types"
)

//go:embed builtin.yaml
var builtinLibrary []byte

// BuiltinSource is the Source recorded on lists from the embedded library.
const BuiltinSource = "builtin"

const defaultCacheSize = 64

// Sentinel errors wrapped by ResolutionError.
var (
	ErrNotFound  = errors.New("ion list not found")
	ErrAmbiguous = errors.New("both a list name and a location were given")
)

// Ref addresses an ion list by name or by location. At most one field may
// be set; when both are empty the resolver's default name is used.
type Ref struct {
	Name string
	Path string
}

func (r Ref) String() string {
	switch {
	case r.Name != "" && r.Path != "":
		return fmt.Sprintf("%s|%s", r.Name, r.Path)
	case r.Path != "":
		return r.Path
	default:
		return r.Name
	}
}

// ResolutionError reports that an ion list could not be produced.
type ResolutionError struct {
	Ref Ref
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving ion list %q: %v", e.Ref.String(), e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithHTTPClient replaces the client used for http(s) locations.
func WithHTTPClient(c *httputil.Client) Option {
	return func(r *Resolver) { r.http = c }
}

// Resolver loads, validates and caches ion lists. It is safe for
// concurrent use.
type Resolver struct {
	cfg      types.IonListConfig
	http     *httputil.Client
	logger   *zap.Logger
	validate *validator.Validate
	cache    otter.Cache[string, *types.IonList]
}

// NewResolver creates a resolver for the given configuration.
func NewResolver(cfg types.IonListConfig, opts ...Option) (*Resolver, error) {
	if cfg.DefaultName == "" {
		cfg.DefaultName = types.DefaultIonListName
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	cache, err := otter.MustBuilder[string, *types.IonList](cfg.CacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("creating ion-list cache: %w", err)
	}

	r := &Resolver{
		cfg:      cfg,
		logger:   zap.NewNop(),
		validate: newValidator(),
		cache:    cache,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.http == nil {
		r.http = httputil.NewClient(cfg.Timeout, cfg.UserAgent, cfg.MaxRetries)
		r.http.Logger = r.logger
	}
	return r, nil
}

// Close releases the resolver's cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

// DefaultName returns the list name used for an empty Ref.
func (r *Resolver) DefaultName() string { return r.cfg.DefaultName }

// Resolve produces the list addressed by ref.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (*types.IonList, error) {
	switch {
	case ref.Name != "" && ref.Path != "":
		return nil, &ResolutionError{Ref: ref, Err: ErrAmbiguous}
	case ref.Path != "":
		return r.LoadFromPath(ctx, ref.Path)
	case ref.Name != "":
		return r.LoadNamed(ctx, ref.Name)
	default:
		return r.LoadNamed(ctx, r.cfg.DefaultName)
	}
}

// LoadNamed returns the named list from the configured library.
func (r *Resolver) LoadNamed(ctx context.Context, name string) (*types.IonList, error) {
	ref := Ref{Name: name}
	key := r.librarySource() + "#" + name
	if list, ok := r.cache.Get(key); ok {
		return list, nil
	}

	root, err := r.libraryRoot()
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}
	node := findList(root, name)
	if node == nil {
		return nil, &ResolutionError{Ref: ref, Err: fmt.Errorf("%w: %q (available: %s)",
			ErrNotFound, name, strings.Join(libraryNames(root), ", "))}
	}
	list, err := decodeList(name, node, r.librarySource())
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}
	if err := validateList(r.validate, list); err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}

	r.cache.Set(key, list)
	r.logger.Debug("resolved ion list",
		zap.String("name", name),
		zap.String("source", list.Source),
		zap.Int("compounds", len(list.Compounds)),
		zap.Int("ions", list.IonCount()),
	)
	return list, nil
}

// LoadFromPath reads a list from a local file or an http(s) URL. The
// document may hold the compound mapping directly, in which case the list
// is named after the file, or a library with exactly one list.
func (r *Resolver) LoadFromPath(ctx context.Context, location string) (*types.IonList, error) {
	ref := Ref{Path: location}
	data, err := r.read(ctx, location)
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}
	root, err := parseDocument(data)
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}

	var list *types.IonList
	if isCompoundMapping(root) {
		list, err = decodeList(listNameFromLocation(location), root, location)
	} else {
		var lists []*types.IonList
		lists, err = decodeLibrary(root, location)
		if err == nil && len(lists) != 1 {
			err = fmt.Errorf("document holds %d lists (%s); use a named list from a library instead",
				len(lists), strings.Join(libraryNames(root), ", "))
		}
		if err == nil {
			list = lists[0]
		}
	}
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}
	if err := validateList(r.validate, list); err != nil {
		return nil, &ResolutionError{Ref: ref, Err: err}
	}

	r.logger.Debug("loaded ion list",
		zap.String("location", location),
		zap.String("name", list.Name),
		zap.Int("compounds", len(list.Compounds)),
	)
	return list, nil
}

// Names lists the named lists of the configured library in declared order.
func (r *Resolver) Names() ([]string, error) {
	root, err := r.libraryRoot()
	if err != nil {
		return nil, err
	}
	return libraryNames(root), nil
}

func (r *Resolver) librarySource() string {
	if r.cfg.Library != "" {
		return r.cfg.Library
	}
	return BuiltinSource
}

func (r *Resolver) libraryRoot() (*yaml.Node, error) {
	data := builtinLibrary
	if r.cfg.Library != "" {
		var err error
		data, err = os.ReadFile(r.cfg.Library)
		if err != nil {
			return nil, fmt.Errorf("reading library: %w", err)
		}
	}
	root, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", r.librarySource(), err)
	}
	return root, nil
}

func (r *Resolver) read(ctx context.Context, location string) ([]byte, error) {
	if isURL(location) {
		return r.http.Get(ctx, location)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("unsupported ion-list file type %q: use .json, .yaml or .yml", filepath.Ext(location))
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("reading ion list: %w", err)
	}
	return data, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func listNameFromLocation(location string) string {
	base := filepath.Base(location)
	if isURL(location) {
		base = location[strings.LastIndex(location, "/")+1:]
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
