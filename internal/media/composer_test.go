package media

import (
	"strings"
	"testing"

	"github.com/fanreel/api/internal/model"
)

func TestComposeArgs_ScalesEveryClipToPresetFrame(t *testing.T) {
	clips := []string{"/tmp/clip_000.mp4", "/tmp/clip_001.mp4", "/tmp/clip_002.mp4"}
	res, ok := model.ResolutionFor(model.QualityStandard)
	if !ok {
		t.Fatal("standard preset must resolve")
	}

	args := ComposeArgs(clips, "/tmp/mixed.m4a", model.QualityStandard, res, "/tmp/reel.mp4")
	joined := strings.Join(args, " ")

	if got := strings.Count(joined, "scale=1280:720:force_original_aspect_ratio=decrease"); got != 3 {
		t.Errorf("expected 3 scale stages, got %d in: %s", got, joined)
	}
	if got := strings.Count(joined, "pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1"); got != 3 {
		t.Errorf("expected 3 pad stages, got %d in: %s", got, joined)
	}
	if !strings.Contains(joined, "concat=n=3:v=1:a=0[vout]") {
		t.Errorf("expected 3-clip video concat, got: %s", joined)
	}
	// The mixed audio is the last input and is attached verbatim.
	if !strings.Contains(joined, "-map 3:a") {
		t.Errorf("expected mixed audio mapped from input 3, got: %s", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Errorf("expected audio stream copied, got: %s", joined)
	}
	if !strings.Contains(joined, "-movflags +faststart") {
		t.Errorf("expected progressive MP4, got: %s", joined)
	}
}

func TestComposeArgs_EncoderPresetPerQuality(t *testing.T) {
	tests := []struct {
		quality model.QualityPreset
		preset  string
		scale   string
	}{
		{model.QualityFast, "veryfast", "scale=854:480"},
		{model.QualityStandard, "medium", "scale=1280:720"},
		{model.QualityHigh, "slow", "scale=1920:1080"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quality), func(t *testing.T) {
			res, ok := model.ResolutionFor(tt.quality)
			if !ok {
				t.Fatalf("preset %s must resolve", tt.quality)
			}
			args := ComposeArgs([]string{"/tmp/clip_000.mp4"}, "/tmp/mixed.m4a", tt.quality, res, "/tmp/reel.mp4")
			joined := strings.Join(args, " ")

			if !strings.Contains(joined, "-preset "+tt.preset) {
				t.Errorf("expected encoder preset %q, got: %s", tt.preset, joined)
			}
			if !strings.Contains(joined, tt.scale) {
				t.Errorf("expected %q, got: %s", tt.scale, joined)
			}
			if !strings.Contains(joined, "-crf 23") {
				t.Errorf("expected constant quality factor, got: %s", joined)
			}
		})
	}
}
