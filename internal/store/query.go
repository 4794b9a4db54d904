// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// QueryOptions filters stored ion measurements. Empty fields match all.
type QueryOptions struct {
	RunID    string
	File     string
	Compound string
	Ion      string

	// MatchedOnly drops ions without a match.
	MatchedOnly bool

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IonRow is one stored ion measurement.
type IonRow struct {
	RunID         string                  `json:"run_id" yaml:"run_id"`
	File          string                  `json:"file" yaml:"file"`
	FileIndex     int                     `json:"file_index" yaml:"file_index"`
	Compound      string                  `json:"compound" yaml:"compound"`
	Ion           string                  `json:"ion" yaml:"ion"`
	Intensity     types.Optional[float64] `json:"intensity,omitzero" yaml:"intensity,omitempty"`
	RetentionTime types.Optional[float64] `json:"retention_time,omitzero" yaml:"retention_time,omitempty"`
	ObservedMass  types.Optional[float64] `json:"observed_mass,omitzero" yaml:"observed_mass,omitempty"`
}

// buildQuery assembles the ion query for opts.
func (s *Store) buildQuery(opts QueryOptions) (string, []any, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}

	q := sq.Select(
		"i.run_id", "f.path", "i.file_idx", "i.compound", "i.ion",
		"i.intensity", "i.retention_time", "i.observed_mass",
	).
		From("ions i").
		Join("files f ON f.run_id = i.run_id AND f.idx = i.file_idx")

	if opts.RunID != "" {
		q = q.Where(sq.Eq{"i.run_id": opts.RunID})
	}
	if opts.File != "" {
		q = q.Where(sq.Eq{"f.path": opts.File})
	}
	if opts.Compound != "" {
		q = q.Where(sq.Eq{"i.compound": opts.Compound})
	}
	if opts.Ion != "" {
		q = q.Where(sq.Eq{"i.ion": opts.Ion})
	}
	if opts.MatchedOnly {
		q = q.Where(sq.NotEq{"i.intensity": nil})
	}

	return q.
		OrderBy("i.run_id", "i.file_idx", "i.compound_idx", "i.ion_idx").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Question).
		ToSql()
}

// Query returns stored ion measurements matching opts, ordered by run,
// file position, then declared compound and ion order.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]IonRow, error) {
	query, args, err := s.buildQuery(opts)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ions: %w", err)
	}
	defer rows.Close()

	var out []IonRow
	for rows.Next() {
		var (
			r                       IonRow
			intensity, rt, observed sql.NullFloat64
		)
		if err := rows.Scan(&r.RunID, &r.File, &r.FileIndex, &r.Compound, &r.Ion, &intensity, &rt, &observed); err != nil {
			return nil, fmt.Errorf("scanning ion row: %w", err)
		}
		r.Intensity = optional(intensity)
		r.RetentionTime = optional(rt)
		r.ObservedMass = optional(observed)
		out = append(out, r)
	}
	return out, rows.Err()
}

func optional(v sql.NullFloat64) types.Optional[float64] {
	if !v.Valid {
		return types.None[float64]()
	}
	return types.Some(v.Float64)
}
