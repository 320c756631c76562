package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanreel/api/internal/model"
)

// Mixer combines the clips' original audio with an optional
// background track into a single stream spanning the concatenated
// duration.
type Mixer struct {
	run *Runner
}

func NewMixer(run *Runner) *Mixer {
	return &Mixer{run: run}
}

// NormalizeGains scales a gain pair so the combined peak cannot
// exceed the representable range. When the sum is above 1 both
// channels shrink by the same factor, preserving the requested
// balance; a pair summing to 1 or less passes through untouched.
func NormalizeGains(mix model.VolumeMix) (original, music float64) {
	original, music = mix.Original, mix.Music
	if sum := original + music; sum > 1 {
		original /= sum
		music /= sum
	}
	return original, music
}

// Mix renders the combined audio stream for the given clips into
// outPath. trackPath may be empty (no background music), in which
// case no mixing occurs and the concatenated original audio passes
// through, untouched at unit gain. Output duration always equals the
// sum of clip durations: a short track loops, a long one is
// truncated.
func (m *Mixer) Mix(ctx context.Context, clipPaths []string, trackPath string, mix model.VolumeMix, outPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to mix")
	}
	// A fetched clip the demuxer cannot read would otherwise fail
	// deep inside the filtergraph with an opaque error.
	for _, p := range clipPaths {
		if _, err := m.run.ProbeDuration(ctx, p); err != nil {
			return fmt.Errorf("clip not decodable: %w", err)
		}
	}
	return m.run.Run(ctx, MixArgs(clipPaths, trackPath, mix, outPath))
}

// MixArgs builds the ffmpeg invocation for the mix stage. Split out
// so the filtergraph is testable without executing ffmpeg.
func MixArgs(clipPaths []string, trackPath string, mix model.VolumeMix, outPath string) []string {
	args := []string{"-y", "-nostdin"}
	for _, p := range clipPaths {
		args = append(args, "-i", p)
	}

	original, music := NormalizeGains(mix)
	withTrack := trackPath != "" && music > 0

	if withTrack {
		// The track loops indefinitely; amix duration=first pins the
		// output to the concatenated clip duration.
		args = append(args, "-stream_loop", "-1", "-i", trackPath)
	}

	var filter strings.Builder
	for i := range clipPaths {
		fmt.Fprintf(&filter, "[%d:a]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=0:a=1[orig]", len(clipPaths))

	out := "[orig]"
	if withTrack {
		trackIdx := len(clipPaths)
		fmt.Fprintf(&filter, ";[orig]volume=%.6f[a0]", original)
		fmt.Fprintf(&filter, ";[%d:a]volume=%.6f[a1]", trackIdx, music)
		filter.WriteString(";[a0][a1]amix=inputs=2:duration=first:normalize=0[mix]")
		out = "[mix]"
	} else if original != 1 {
		fmt.Fprintf(&filter, ";[orig]volume=%.6f[lvl]", original)
		out = "[lvl]"
	}

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", out,
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	)
	return args
}
