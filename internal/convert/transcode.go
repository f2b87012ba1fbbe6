package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// TranscodeRequest describes one deterministic decrypt-and-tag invocation.
// The audio stream is stream-copied; cover art, when present, becomes a
// single attached-picture stream re-encoded as a still image.
type TranscodeRequest struct {
	InputPath    string
	OutputPath   string
	Key          string
	IV           string
	CoverArtPath string // optional
	Tags         []Tag
}

// Args renders the ffmpeg argument list for the request.
func (r *TranscodeRequest) Args() []string {
	args := []string{
		"-y",
		"-v", "error",
		"-audible_key", r.Key,
		"-audible_iv", r.IV,
		"-i", r.InputPath,
	}
	if r.CoverArtPath != "" {
		args = append(args, "-i", r.CoverArtPath)
	}

	args = append(args, "-map", "0:a", "-c:a", "copy")
	if r.CoverArtPath != "" {
		args = append(args,
			"-map", "1:0",
			"-c:v", "mjpeg",
			"-disposition:v:0", "attached_pic",
		)
	}

	for _, tag := range r.Tags {
		args = append(args, "-metadata", tag.Key+"="+tag.Value)
	}

	args = append(args, r.OutputPath)
	return args
}

// Transcoder invokes the external transcoding engine.
type Transcoder interface {
	Transcode(ctx context.Context, req *TranscodeRequest) error
}

// FFmpegTranscoder runs the ffmpeg binary.
type FFmpegTranscoder struct {
	bin string
}

// NewFFmpegTranscoder creates a transcoder. An empty binary path falls
// back to PATH lookup.
func NewFFmpegTranscoder(bin string) *FFmpegTranscoder {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	return &FFmpegTranscoder{bin: bin}
}

// Transcode runs ffmpeg and returns its error log on failure.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, req *TranscodeRequest) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.bin, req.Args()...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("ffmpeg exit %d: %s", exitErr.ExitCode(), tailLines(stderr.String(), 5))
		}
		return fmt.Errorf("run ffmpeg: %w", err)
	}
	return nil
}

// tailLines returns the last n non-empty lines of s.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
