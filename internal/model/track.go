package model

import "time"

// CustomAudioTrack is a user-uploaded background track. Tracks are
// immutable once stored and visible only to the uploading user.
type CustomAudioTrack struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	OriginalName string    `json:"originalName"`
	StoragePath  string    `json:"storagePath"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TrackUploadResponse wraps a stored track for the upload endpoint.
type TrackUploadResponse struct {
	Success bool             `json:"success"`
	Track   CustomAudioTrack `json:"track"`
}

// TrackListResponse lists the caller's tracks, newest first.
type TrackListResponse struct {
	Success bool               `json:"success"`
	Tracks  []CustomAudioTrack `json:"tracks"`
}
