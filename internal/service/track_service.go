package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fanreel/api/internal/client"
	"github.com/fanreel/api/internal/model"
)

// TrackService is the custom track store: validated uploads into
// object storage, metadata and per-owner index in Redis. Tracks are
// immutable once stored, which is what lets concurrent jobs read
// them without coordination.
type TrackService struct {
	redis   *redis.Client
	storage client.StorageClient
}

func NewTrackService(redisClient *redis.Client, storage client.StorageClient) *TrackService {
	return &TrackService{
		redis:   redisClient,
		storage: storage,
	}
}

// ValidateUpload rejects unsupported types and oversized payloads
// before any bytes are stored.
func ValidateUpload(contentType string, sizeBytes int64) error {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = contentType
	}
	if !model.AcceptedAudioTypes[base] {
		return ErrUnsupportedType
	}
	if sizeBytes > model.MaxTrackSizeBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

// Upload validates and persists a user's audio track.
func (s *TrackService) Upload(ctx context.Context, ownerID, originalName, contentType string, sizeBytes int64, file io.Reader) (*model.CustomAudioTrack, error) {
	if err := ValidateUpload(contentType, sizeBytes); err != nil {
		return nil, err
	}

	trackID := uuid.New().String()
	key := fmt.Sprintf("tracks/%s/%s%s", ownerID, trackID, extensionFor(contentType))

	if s.storage != nil {
		if _, err := s.storage.Upload(ctx, key, file, contentType); err != nil {
			return nil, fmt.Errorf("failed to store track: %w", err)
		}
	}

	track := &model.CustomAudioTrack{
		ID:           trackID,
		OwnerID:      ownerID,
		OriginalName: originalName,
		StoragePath:  key,
		MimeType:     contentType,
		SizeBytes:    sizeBytes,
		CreatedAt:    time.Now(),
	}

	data, err := json.Marshal(track)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, trackKey(trackID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to save track metadata: %w", err)
	}
	if err := s.redis.ZAdd(ctx, trackOwnerKey(ownerID), redis.Z{
		Score:  float64(track.CreatedAt.UnixNano()),
		Member: trackID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("failed to index track: %w", err)
	}

	return track, nil
}

// List returns the owner's tracks, newest first.
func (s *TrackService) List(ctx context.Context, ownerID string) ([]model.CustomAudioTrack, error) {
	ids, err := s.redis.ZRevRange(ctx, trackOwnerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	tracks := make([]model.CustomAudioTrack, 0, len(ids))
	for _, id := range ids {
		track, err := s.Get(ctx, id)
		if err != nil {
			continue // index entry without metadata, skip
		}
		tracks = append(tracks, *track)
	}
	return tracks, nil
}

// Get loads a track by id, without ownership scoping. Callers that
// act on behalf of a user must check OwnerID themselves.
func (s *TrackService) Get(ctx context.Context, trackID string) (*model.CustomAudioTrack, error) {
	data, err := s.redis.Get(ctx, trackKey(trackID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}

	var track model.CustomAudioTrack
	if err := json.Unmarshal(data, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Delete removes an owner's track. Refused while any non-terminal
// job references it.
func (s *TrackService) Delete(ctx context.Context, ownerID, trackID string) error {
	track, err := s.Get(ctx, trackID)
	if err != nil {
		return err
	}
	if track.OwnerID != ownerID {
		return ErrTrackNotFound
	}

	refs, err := s.redis.Get(ctx, trackRefsKey(trackID)).Int64()
	if err != nil && err != redis.Nil {
		return err
	}
	if refs > 0 {
		return ErrTrackInUse
	}

	if s.storage != nil {
		if err := s.storage.Delete(ctx, track.StoragePath); err != nil {
			return fmt.Errorf("failed to delete track object: %w", err)
		}
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, trackKey(trackID))
	pipe.ZRem(ctx, trackOwnerKey(ownerID), trackID)
	pipe.Del(ctx, trackRefsKey(trackID))
	_, err = pipe.Exec(ctx)
	return err
}

// BuiltInTrackKey locates a library track in object storage.
func BuiltInTrackKey(trackID string) string {
	return fmt.Sprintf("tracks/builtin/%s.mp3", trackID)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/aac", "audio/x-aac":
		return ".aac"
	default:
		return ""
	}
}
