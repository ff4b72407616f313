// Package scan runs the detector set over a page and merges the findings.
package scan

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/svgscout/internal/asset"
	"github.com/hyperifyio/svgscout/internal/detect"
)

// PhaseComplete is the phase of the final progress report.
const PhaseComplete = "Complete"

// Progress is reported before each detector runs and once at the end.
type Progress struct {
	Phase string `json:"phase"`
	// Found counts assets collected so far, before the final dedup.
	Found int `json:"found"`
	// Total is the number of detectors; zero in the final report.
	Total int `json:"total,omitempty"`
}

// Scanner runs detectors strictly in order. A failing detector is logged and
// skipped; it never aborts the scan.
type Scanner struct {
	Env       *detect.Env
	Detectors []detect.Detector
	// Progress, when set, receives phase updates synchronously.
	Progress func(Progress)
}

// New returns a Scanner with the full detector set.
func New(env *detect.Env) *Scanner {
	return &Scanner{Env: env, Detectors: detect.All()}
}

// Scan returns the deduplicated assets in discovery order. The only error is
// context cancellation, checked between detectors.
func (s *Scanner) Scan(ctx context.Context) ([]asset.Asset, error) {
	id := uuid.NewString()
	logger := log.With().Str("scan", id).Logger()
	if s.Env != nil && s.Env.Page != nil {
		logger = logger.With().Str("url", s.Env.Page.URL).Logger()
	}
	start := time.Now()
	var all []asset.Asset
	for _, d := range s.Detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.report(Progress{Phase: d.Name(), Found: len(all), Total: len(s.Detectors)})
		found, err := s.runOne(ctx, d)
		if err != nil {
			logger.Warn().Err(err).Str("detector", d.Name()).Msg("detector failed")
		}
		logger.Debug().Str("detector", d.Name()).Int("found", len(found)).Msg("detector done")
		all = append(all, found...)
	}
	out := asset.Dedup(all)
	s.report(Progress{Phase: PhaseComplete, Found: len(out)})
	logger.Info().Int("found", len(all)).Int("unique", len(out)).Dur("elapsed", time.Since(start)).Msg("scan complete")
	return out, nil
}

// runOne isolates a detector so a panic surfaces as an error. Results
// gathered before a failure are discarded.
func (s *Scanner) runOne(ctx context.Context, d detect.Detector) (found []asset.Asset, err error) {
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	found, err = d.Detect(ctx, s.Env)
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Scanner) report(p Progress) {
	if s.Progress != nil {
		s.Progress(p)
	}
}
