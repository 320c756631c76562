package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fanreel/api/internal/client"
)

// ArtifactService persists finished reels keyed by owner and job,
// and serves them back for download. The key shape is the ownership
// boundary: nothing outside reels/<owner>/ is reachable for a
// caller.
type ArtifactService struct {
	storage client.StorageClient
}

func NewArtifactService(storage client.StorageClient) *ArtifactService {
	return &ArtifactService{storage: storage}
}

// Store uploads a rendered reel and returns its durable URI.
func (s *ArtifactService) Store(ctx context.Context, ownerID, jobID, filePath string) (string, error) {
	if s.storage == nil {
		// No storage configured (dev/test): hand back a mock URI.
		return fmt.Sprintf("https://cdn.fanreel.app/%s", artifactKey(ownerID, jobID)), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	uri, err := s.storage.Upload(ctx, artifactKey(ownerID, jobID), file, "video/mp4")
	if err != nil {
		return "", fmt.Errorf("failed to persist artifact: %w", err)
	}
	return uri, nil
}

// Open streams a stored reel back. The caller must have already
// verified that the job is completed and owned by the requester.
func (s *ArtifactService) Open(ctx context.Context, ownerID, jobID string) (io.ReadCloser, int64, error) {
	if s.storage == nil {
		return nil, 0, ErrNoArtifact
	}

	body, size, err := s.storage.Download(ctx, artifactKey(ownerID, jobID))
	if err != nil {
		return nil, 0, ErrNoArtifact
	}
	return body, size, nil
}

// ShareLinkTTL bounds how long a shared reel link stays valid.
const ShareLinkTTL = 24 * time.Hour

// ShareLink issues a time-limited presigned URL for a stored reel.
// Unlike Download it hands out a URL anyone can fetch, so the expiry
// is the only thing bounding exposure.
func (s *ArtifactService) ShareLink(ctx context.Context, ownerID, jobID string) (string, time.Time, error) {
	if s.storage == nil {
		return "", time.Time{}, ErrNoArtifact
	}

	url, err := s.storage.GetSignedURL(ctx, artifactKey(ownerID, jobID), ShareLinkTTL)
	if err != nil {
		return "", time.Time{}, ErrNoArtifact
	}
	return url, time.Now().Add(ShareLinkTTL), nil
}

func artifactKey(ownerID, jobID string) string {
	return fmt.Sprintf("reels/%s/%s.mp4", ownerID, jobID)
}
