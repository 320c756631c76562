package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fanreel/api/internal/model"
)

const TaskTypeCompile = "reel:compile"

// CompileService is the job registry for highlight reel
// compilations: it accepts submissions, queues the pipeline work and
// owns every state transition. Jobs live in Redis keyed by id;
// terminal jobs are never mutated again.
type CompileService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewCompileService(redisClient *redis.Client, asynqClient *asynq.Client) *CompileService {
	return &CompileService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartCompile validates a submission and queues a new job. All
// validation failures happen here, before any media work begins.
func (s *CompileService) StartCompile(ctx context.Context, ownerID string, req *model.CompileStartRequest) (*model.CompileStartResponse, error) {
	if len(req.VideoURLs) == 0 {
		return nil, ErrEmptyClipList
	}
	if _, ok := model.ResolutionFor(req.Quality); !ok {
		return nil, ErrInvalidQuality
	}

	// A referenced custom track must exist and belong to the caller.
	if req.AudioTrack != nil && req.AudioTrack.Kind == model.TrackKindCustom {
		track, err := s.loadTrack(ctx, req.AudioTrack.ID)
		if err != nil {
			return nil, err
		}
		if track.OwnerID != ownerID {
			return nil, ErrTrackNotFound
		}
	}

	mix := model.VolumeMix{
		Original: model.DefaultOriginalGain,
		Music:    model.DefaultMusicGain,
	}
	if req.OriginalVolume != nil {
		mix.Original = *req.OriginalVolume
	}
	if req.MusicVolume != nil {
		mix.Music = *req.MusicVolume
	}

	now := time.Now()
	job := &model.CompilationJob{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		InputClips: req.VideoURLs,
		AudioTrack: req.AudioTrack,
		VolumeMix:  mix,
		Quality:    req.Quality,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	// Hold the custom track against deletion while the job is live.
	if job.AudioTrack != nil && job.AudioTrack.Kind == model.TrackKindCustom {
		if err := s.redis.Incr(ctx, trackRefsKey(job.AudioTrack.ID)).Err(); err != nil {
			return nil, fmt.Errorf("failed to reference track: %w", err)
		}
	}

	task, err := newCompileTask(job)
	if err != nil {
		s.abortSubmission(ctx, job)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// The pipeline retries transient fetch errors internally; a failed
	// job is never re-run automatically, the client resubmits.
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("compile"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		s.abortSubmission(ctx, job)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.CompileStartResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: now,
	}, nil
}

// GetStatus returns a job's polling view, owner-scoped. A foreign
// caller gets ErrJobNotFound, never confirmation that the job exists.
func (s *CompileService) GetStatus(ctx context.Context, ownerID, jobID string) (*model.CompileStatusResponse, error) {
	job, err := s.GetJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}

	return &model.CompileStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Quality:     job.Quality,
		OutputURI:   job.OutputURI,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetJob loads an owner-scoped job record.
func (s *CompileService) GetJob(ctx context.Context, ownerID, jobID string) (*model.CompilationJob, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Cancel moves a non-terminal job to failed/cancelled and raises the
// cancel flag the worker watches, aborting in-flight fetches and
// encodes. Terminal jobs cannot be cancelled.
func (s *CompileService) Cancel(ctx context.Context, ownerID, jobID string) (*model.CompileCancelResponse, error) {
	job, err := s.GetJob(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, ErrJobTerminal
	}

	if err := s.redis.Set(ctx, jobCancelKey(jobID), "1", 24*time.Hour).Err(); err != nil {
		return nil, fmt.Errorf("failed to flag cancellation: %w", err)
	}

	if err := s.FailJob(ctx, jobID, model.JobError{
		Stage:   stageFor(job.Status),
		Code:    model.FailureCancelled,
		Message: "cancelled by user",
	}); err != nil {
		return nil, err
	}

	return &model.CompileCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusFailed,
	}, nil
}

// IsCancelled reports whether a cancel flag is raised for the job.
func (s *CompileService) IsCancelled(ctx context.Context, jobID string) bool {
	n, err := s.redis.Exists(ctx, jobCancelKey(jobID)).Result()
	return err == nil && n > 0
}

// AdvanceStage moves a job to the next pipeline state. Called only
// by the orchestrator; refuses to touch terminal jobs so a
// cancellation that races a stage boundary wins.
func (s *CompileService) AdvanceStage(ctx context.Context, jobID string, status model.JobStatus) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}

	job.Status = status
	return s.saveJob(ctx, job)
}

// CompleteJob records the finished artifact and seals the job.
func (s *CompileService) CompleteJob(ctx context.Context, jobID, outputURI string) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}

	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.OutputURI = outputURI
	job.Error = nil
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	s.releaseTrackRef(ctx, job)
	return nil
}

// FailJob seals the job with the failing stage and cause.
func (s *CompileService) FailJob(ctx context.Context, jobID string, jobErr model.JobError) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrJobTerminal
	}

	now := time.Now()
	job.Status = model.JobStatusFailed
	job.OutputURI = ""
	job.Error = &jobErr
	job.CompletedAt = &now

	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	s.releaseTrackRef(ctx, job)
	return nil
}

// abortSubmission unwinds a submission that never reached the queue:
// the caller gets an error instead of a job id, so the pending record
// and its track reference must not linger.
func (s *CompileService) abortSubmission(ctx context.Context, job *model.CompilationJob) {
	s.releaseTrackRef(ctx, job)
	s.redis.Del(ctx, jobKey(job.ID))
}

func (s *CompileService) releaseTrackRef(ctx context.Context, job *model.CompilationJob) {
	if job.AudioTrack == nil || job.AudioTrack.Kind != model.TrackKindCustom {
		return
	}
	s.redis.Decr(ctx, trackRefsKey(job.AudioTrack.ID))
}

// stageFor names the pipeline stage a job in the given state is in.
func stageFor(status model.JobStatus) model.Stage {
	switch status {
	case model.JobStatusFetching:
		return model.StageFetch
	case model.JobStatusMixing:
		return model.StageMix
	case model.JobStatusEncoding:
		return model.StageEncode
	default:
		return model.StageSubmit
	}
}

// Helper methods

func (s *CompileService) saveJob(ctx context.Context, job *model.CompilationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	// Jobs are retained until explicitly purged; no TTL.
	return s.redis.Set(ctx, jobKey(job.ID), data, 0).Err()
}

func (s *CompileService) loadJob(ctx context.Context, jobID string) (*model.CompilationJob, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.CompilationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *CompileService) loadTrack(ctx context.Context, trackID string) (*model.CustomAudioTrack, error) {
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

func newCompileTask(job *model.CompilationJob) (*asynq.Task, error) {
	payload := &model.CompileJobPayload{
		OwnerID:    job.OwnerID,
		InputClips: job.InputClips,
		AudioTrack: job.AudioTrack,
		VolumeMix:  job.VolumeMix,
		Quality:    job.Quality,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	taskPayload := map[string]interface{}{
		"jobId":   job.ID,
		"payload": json.RawMessage(payloadBytes),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCompile, data), nil
}
