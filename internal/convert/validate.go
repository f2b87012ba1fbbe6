package convert

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/talefetch/talefetch/internal/probe"
)

const (
	// sampleWindowSec is the decode length at each sample point.
	sampleWindowSec = 10
	// sampleAbortThreshold stops sampling early: one window this corrupt
	// settles the verdict without decoding the remaining points.
	sampleAbortThreshold = 50
)

// errorLinePattern matches decoder log lines that indicate corruption.
var errorLinePattern = regexp.MustCompile(`(?i)(error|invalid data)`)

// SampleReport records the outcome of one decode window.
type SampleReport struct {
	Timestamp  float64
	ErrorCount int
	Passed     bool
}

// ValidationResult is the outcome of multi-point integrity sampling.
// ErrorCount is -1 when the file could not be assessed at all, which is
// distinct from "assessed and corrupt".
type ValidationResult struct {
	Valid        bool
	ErrorCount   int
	ErrorMessage string
	Duration     time.Duration
	Samples      []SampleReport
}

// Report renders a human-readable per-sample summary for diagnostics.
func (r *ValidationResult) Report() string {
	var b strings.Builder
	for _, s := range r.Samples {
		verdict := "pass"
		if !s.Passed {
			verdict = fmt.Sprintf("fail (%d errors)", s.ErrorCount)
		}
		fmt.Fprintf(&b, "%s %s\n", formatTimestamp(s.Timestamp), verdict)
	}
	return b.String()
}

// samplePoints chooses the timestamps to probe: 30s in, the quarter
// points, and a near-end point, deduplicated and sorted ascending.
func samplePoints(duration float64) []float64 {
	nearEnd := duration - 30
	if nearEnd < 60 {
		nearEnd = 60
	}
	points := []float64{
		30,
		duration * 0.25,
		duration * 0.50,
		duration * 0.75,
		nearEnd,
	}

	sort.Float64s(points)
	deduped := points[:0]
	for i, p := range points {
		if i == 0 || p != deduped[len(deduped)-1] {
			deduped = append(deduped, p)
		}
	}
	return deduped
}

// Validate runs the sampling-based integrity check against a produced
// file. The file is valid iff the accumulated error count across all
// sampled windows is exactly zero.
func Validate(ctx context.Context, prober probe.Prober, path string) (*ValidationResult, error) {
	start := time.Now()

	duration, err := prober.Duration(ctx, path)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil || duration <= 0 {
		msg := "could not determine duration"
		if err != nil {
			msg = fmt.Sprintf("could not determine duration: %v", err)
		}
		return &ValidationResult{
			Valid:        false,
			ErrorCount:   -1,
			ErrorMessage: msg,
			Duration:     time.Since(start),
		}, nil
	}

	result := &ValidationResult{Duration: time.Since(start)}
	total := 0

	for _, point := range samplePoints(duration) {
		log, err := prober.DecodeWindow(ctx, path, point, sampleWindowSec)
		if err != nil {
			return nil, fmt.Errorf("decode window at %s: %w", formatTimestamp(point), err)
		}

		count := countErrorLines(log)
		total += count
		result.Samples = append(result.Samples, SampleReport{
			Timestamp:  point,
			ErrorCount: count,
			Passed:     count == 0,
		})

		if count > sampleAbortThreshold {
			// Conclusively corrupt; skip the remaining points.
			break
		}
	}

	result.ErrorCount = total
	result.Valid = total == 0
	result.Duration = time.Since(start)
	if !result.Valid {
		result.ErrorMessage = fmt.Sprintf("%d decode errors across %d samples", total, len(result.Samples))
	}
	return result, nil
}

func countErrorLines(log string) int {
	count := 0
	for _, line := range strings.Split(log, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if errorLinePattern.MatchString(line) {
			count++
		}
	}
	return count
}

// formatTimestamp renders seconds as HH:MM:SS.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
