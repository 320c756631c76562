package model

// Job status
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusFetching  JobStatus = "fetching"
	JobStatusMixing    JobStatus = "mixing"
	JobStatusEncoding  JobStatus = "encoding"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether a job in this status is immutable.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Pipeline stages, used in failure reports
type Stage string

const (
	StageSubmit Stage = "submit"
	StageFetch  Stage = "fetch"
	StageMix    Stage = "mix"
	StageEncode Stage = "encode"
	StageStore  Stage = "store"
)

// Quality presets
type QualityPreset string

const (
	QualityFast     QualityPreset = "fast"
	QualityStandard QualityPreset = "standard"
	QualityHigh     QualityPreset = "high"
)

var ValidQualityPresets = []QualityPreset{
	QualityFast, QualityStandard, QualityHigh,
}

// Resolution is an output frame size tied to a quality preset.
type Resolution struct {
	Width  int
	Height int
}

var qualityResolutions = map[QualityPreset]Resolution{
	QualityFast:     {Width: 854, Height: 480},
	QualityStandard: {Width: 1280, Height: 720},
	QualityHigh:     {Width: 1920, Height: 1080},
}

// ResolutionFor maps a quality preset to its output resolution.
// The bool is false for unrecognized presets; callers must reject
// those before any job is created.
func ResolutionFor(q QualityPreset) (Resolution, bool) {
	r, ok := qualityResolutions[q]
	return r, ok
}

// Failure codes carried on failed jobs
type FailureCode string

const (
	FailureInputUnavailable FailureCode = "input-unavailable"
	FailureInvalidQuality   FailureCode = "invalid-quality"
	FailureUnsupportedMedia FailureCode = "unsupported-media-type"
	FailurePayloadTooLarge  FailureCode = "payload-too-large"
	FailureTimeout          FailureCode = "timeout"
	FailureCancelled        FailureCode = "cancelled"
	FailureInternal         FailureCode = "internal"
)

// Audio track kinds
type TrackKind string

const (
	TrackKindBuiltIn TrackKind = "builtin"
	TrackKindCustom  TrackKind = "custom"
)

// Default volume mix applied when the client omits gains. Kept
// server-side so every client variant gets the same balance.
const (
	DefaultOriginalGain = 0.7
	DefaultMusicGain    = 0.3
)

// Accepted MIME types for custom track uploads
var AcceptedAudioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/aac":   true,
	"audio/x-aac": true,
}

// MaxTrackSizeBytes is the upload ceiling for custom audio tracks.
const MaxTrackSizeBytes = 16 << 20 // 16 MiB
