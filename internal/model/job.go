package model

import "time"

// CompilationJob represents one highlight reel compilation from
// submission to terminal state. Jobs are mutated only by the
// orchestrator as stages advance; once terminal they are immutable.
type CompilationJob struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"ownerId"`
	InputClips  []string       `json:"inputClips"`
	AudioTrack  *AudioTrackRef `json:"audioTrack,omitempty"`
	VolumeMix   VolumeMix      `json:"volumeMix"`
	Quality     QualityPreset  `json:"quality"`
	Status      JobStatus      `json:"status"`
	OutputURI   string         `json:"outputUri,omitempty"`
	Error       *JobError      `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// AudioTrackRef is a tagged reference to a background track:
// either a built-in library track or a user-uploaded one.
type AudioTrackRef struct {
	Kind TrackKind `json:"kind" validate:"required,oneof=builtin custom"`
	ID   string    `json:"id" validate:"required"`
}

// VolumeMix holds the two independent gain factors applied when
// mixing clip audio with the background track.
type VolumeMix struct {
	Original float64 `json:"original" validate:"min=0,max=1"`
	Music    float64 `json:"music" validate:"min=0,max=1"`
}

// JobError identifies the failing stage and cause of a failed job.
type JobError struct {
	Stage   Stage       `json:"stage"`
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
}

// CompileJobPayload is the task payload carried through the queue.
type CompileJobPayload struct {
	OwnerID    string         `json:"ownerId"`
	InputClips []string       `json:"inputClips"`
	AudioTrack *AudioTrackRef `json:"audioTrack,omitempty"`
	VolumeMix  VolumeMix      `json:"volumeMix"`
	Quality    QualityPreset  `json:"quality"`
}

// CompileStartRequest is the submission body for a new compilation.
// Volume gains are pointers so omitted values pick up server defaults.
type CompileStartRequest struct {
	VideoURLs      []string       `json:"videoUrls" validate:"required,min=1,dive,url"`
	AudioTrack     *AudioTrackRef `json:"audioTrack" validate:"omitempty"`
	Quality        QualityPreset  `json:"quality" validate:"required,oneof=fast standard high"`
	OriginalVolume *float64       `json:"originalVolume" validate:"omitempty,min=0,max=1"`
	MusicVolume    *float64       `json:"musicVolume" validate:"omitempty,min=0,max=1"`
}

// CompileStartResponse is returned on job acceptance.
type CompileStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// CompileStatusResponse is the polling view of a job.
type CompileStatusResponse struct {
	JobID       string        `json:"jobId"`
	Status      JobStatus     `json:"status"`
	Quality     QualityPreset `json:"quality"`
	OutputURI   string        `json:"outputUri,omitempty"`
	Error       *JobError     `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// ShareLinkResponse carries a time-limited public link to a reel.
type ShareLinkResponse struct {
	Success   bool      `json:"success"`
	JobID     string    `json:"jobId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CompileCancelResponse is returned when a job is cancelled.
type CompileCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}
