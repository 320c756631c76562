package service

import "errors"

// Sentinel errors surfaced to handlers. Ownership violations map to
// ErrJobNotFound / ErrTrackNotFound so a foreign caller cannot learn
// that the resource exists.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobTerminal     = errors.New("job already terminal")
	ErrInvalidQuality  = errors.New("invalid quality preset")
	ErrEmptyClipList   = errors.New("clip list must not be empty")
	ErrTrackNotFound   = errors.New("track not found")
	ErrTrackInUse      = errors.New("track referenced by an active job")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrNoArtifact      = errors.New("artifact not available")
)
