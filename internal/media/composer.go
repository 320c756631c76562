package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fanreel/api/internal/config"
	"github.com/fanreel/api/internal/model"
)

// Composer concatenates fetched clips in submission order, attaches
// the mixed audio and encodes the final MP4. Encoding is the
// pipeline's CPU bottleneck, so all jobs share a worker-pool
// semaphore sized to available cores, independent of the fetcher's
// I/O cap.
type Composer struct {
	run        *Runner
	sem        chan struct{}
	jobTimeout time.Duration
}

func NewComposer(run *Runner, cfg config.EncodeConfig) *Composer {
	timeout := time.Duration(cfg.JobTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Composer{
		run:        run,
		sem:        make(chan struct{}, cfg.WorkerCount()),
		jobTimeout: timeout,
	}
}

// Compose renders the final video. It blocks until a worker slot is
// free, then encodes under the job-level timeout; a deadline hit
// surfaces as context.DeadlineExceeded so the orchestrator can
// report a timeout cause.
func (c *Composer) Compose(ctx context.Context, clipPaths []string, audioPath string, quality model.QualityPreset, outPath string) error {
	res, ok := model.ResolutionFor(quality)
	if !ok {
		return fmt.Errorf("unrecognized quality preset %q", quality)
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	encodeCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	return c.run.Run(encodeCtx, ComposeArgs(clipPaths, audioPath, quality, res, outPath))
}

// ComposeArgs builds the ffmpeg invocation for the encode stage.
// Every clip is scaled and padded to the preset's frame before the
// concat filter, so mixed source resolutions join cleanly; the
// +faststart flag keeps the MP4 progressive and seekable.
func ComposeArgs(clipPaths []string, audioPath string, quality model.QualityPreset, res model.Resolution, outPath string) []string {
	args := []string{"-y", "-nostdin"}
	for _, p := range clipPaths {
		args = append(args, "-i", p)
	}
	args = append(args, "-i", audioPath)
	audioIdx := len(clipPaths)

	var filter strings.Builder
	for i := range clipPaths {
		fmt.Fprintf(&filter,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[v%d];",
			i, res.Width, res.Height, res.Width, res.Height, i)
	}
	for i := range clipPaths {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[vout]", len(clipPaths))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a", audioIdx),
		"-c:v", "libx264",
		"-preset", encoderPreset(quality),
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		outPath,
	)
	return args
}

// encoderPreset trades encode speed for compression in line with the
// quality tier.
func encoderPreset(q model.QualityPreset) string {
	switch q {
	case model.QualityFast:
		return "veryfast"
	case model.QualityHigh:
		return "slow"
	default:
		return "medium"
	}
}
