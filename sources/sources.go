// Package sources produces scholarship candidates for ingestion.
package sources

import (
	"context"

	"github.com/scholarscout/scraper/models"
)

// Source yields candidates from one origin per call
type Source interface {
	Name() string
	Platform() models.Platform
	Fetch(ctx context.Context) ([]models.Candidate, error)
}

// Static replays a fixed candidate list
type Static struct {
	name       string
	platform   models.Platform
	candidates []models.Candidate
}

// NewStatic creates a Static source. Candidates without a platform get
// platform.
func NewStatic(name string, platform models.Platform, candidates []models.Candidate) *Static {
	out := make([]models.Candidate, len(candidates))
	for i, c := range candidates {
		if c.Platform == "" {
			c.Platform = platform
		}
		out[i] = c
	}
	return &Static{name: name, platform: platform, candidates: out}
}

// Name returns the source name
func (s *Static) Name() string { return s.name }

// Platform returns the platform candidates default to
func (s *Static) Platform() models.Platform { return s.platform }

// Fetch returns a copy of the candidate list
func (s *Static) Fetch(ctx context.Context) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out, nil
}
