// Package probe wraps ffprobe and ffmpeg for media inspection: container
// duration and short decode windows used by integrity validation.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Prober inspects media files.
type Prober interface {
	// Duration returns the container duration in seconds, or an error
	// when the file cannot be assessed.
	Duration(ctx context.Context, path string) (float64, error)
	// DecodeWindow decodes lengthSec seconds starting at startSec and
	// returns the decoder's error log.
	DecodeWindow(ctx context.Context, path string, startSec, lengthSec float64) (string, error)
}

// FFmpegProber implements Prober with the ffprobe and ffmpeg binaries.
type FFmpegProber struct {
	ffprobeBin string
	ffmpegBin  string
}

// NewFFmpegProber creates a prober. Empty binary paths fall back to PATH lookup.
func NewFFmpegProber(ffprobeBin, ffmpegBin string) *FFmpegProber {
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = "ffprobe"
	}
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	return &FFmpegProber{ffprobeBin: ffprobeBin, ffmpegBin: ffmpegBin}
}

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration executes ffprobe against the provided path and decodes the JSON response.
func (p *FFmpegProber) Duration(ctx context.Context, path string) (float64, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("probe duration: empty path")
	}

	cmd := exec.CommandContext(ctx, p.ffprobeBin,
		"-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result probeFormat
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("probe parse: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("probe parse duration %q: %w", result.Format.Duration, err)
	}
	return duration, nil
}

// DecodeWindow decodes a fixed window to the null muxer and captures the
// decoder log. A nonzero ffmpeg exit is not an error here; the log is what
// the caller inspects.
func (p *FFmpegProber) DecodeWindow(ctx context.Context, path string, startSec, lengthSec float64) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("decode window: empty path")
	}

	args := []string{
		"-v", "error",
		"-ss", formatSeconds(startSec),
		"-t", formatSeconds(lengthSec),
		"-i", path,
		"-f", "null", "-",
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.ffmpegBin, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("decode window: %w", err)
		}
	}
	return stderr.String(), nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
