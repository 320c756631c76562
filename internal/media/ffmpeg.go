package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes ffmpeg/ffprobe with context-based cancellation.
// Killing the context kills the process, so an aborted job never
// leaves an encode running.
type Runner struct {
	ffmpegPath  string
	ffprobePath string
}

// NewRunner creates a runner for the given ffmpeg binary. ffprobe is
// resolved next to it by name convention.
func NewRunner(ffmpegPath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)
	return &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Run invokes ffmpeg with the given arguments. On failure the tail of
// stderr is included in the error, which is where ffmpeg reports its
// actual cause.
func (r *Runner) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

// ProbeDuration returns the duration of a media file in seconds.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration for %s: %w", path, err)
	}
	return dur, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
