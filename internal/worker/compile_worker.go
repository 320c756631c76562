package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fanreel/api/internal/client"
	"github.com/fanreel/api/internal/media"
	"github.com/fanreel/api/internal/model"
	"github.com/fanreel/api/internal/service"
	"github.com/fanreel/api/internal/websocket"
)

// CompileWorker runs the highlight reel pipeline for one job:
// fetch -> mix -> encode -> store. Stages execute strictly in order
// for a job; jobs interleave freely subject to the fetcher's I/O cap
// and the composer's worker pool.
type CompileWorker struct {
	compileService *service.CompileService
	trackService   *service.TrackService
	artifacts      *service.ArtifactService
	storage        client.StorageClient
	fetcher        *media.Fetcher
	mixer          *media.Mixer
	composer       *media.Composer
	hub            *websocket.Hub
	workDir        string
}

func NewCompileWorker(
	compileService *service.CompileService,
	trackService *service.TrackService,
	artifacts *service.ArtifactService,
	storage client.StorageClient,
	fetcher *media.Fetcher,
	mixer *media.Mixer,
	composer *media.Composer,
	hub *websocket.Hub,
	workDir string,
) *CompileWorker {
	return &CompileWorker{
		compileService: compileService,
		trackService:   trackService,
		artifacts:      artifacts,
		storage:        storage,
		fetcher:        fetcher,
		mixer:          mixer,
		composer:       composer,
		hub:            hub,
		workDir:        workDir,
	}
}

// ProcessTask handles one queued compilation.
func (w *CompileWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting compile job: %s", jobID)

	var payload model.CompileJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, model.StageSubmit, model.FailureInternal, "invalid payload")
		return fmt.Errorf("failed to unmarshal compile payload: %w", err)
	}

	// Cancelled while still queued: nothing to do, the registry
	// already holds the terminal record.
	if w.compileService.IsCancelled(ctx, jobID) {
		log.Printf("Compile job %s cancelled before start", jobID)
		return nil
	}

	// The watcher turns a raised cancel flag into context
	// cancellation, killing in-flight fetches and ffmpeg runs.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.watchCancel(jobCtx, jobID, cancel)

	// Job-scoped scratch storage, removed when the job goes terminal.
	scratch, err := os.MkdirTemp(w.workDir, "reel-"+jobID+"-")
	if err != nil {
		w.failJob(ctx, jobID, model.StageFetch, model.FailureInternal, "scratch storage unavailable")
		return err
	}
	defer os.RemoveAll(scratch)

	// Stage 1: fetch
	if err := w.advance(ctx, jobID, model.JobStatusFetching, model.StageFetch); err != nil {
		return w.advanceFailed(ctx, jobID, model.StageFetch, err)
	}
	clipPaths, err := w.fetcher.FetchAll(jobCtx, scratch, payload.InputClips)
	if err != nil {
		return w.stageFailed(ctx, jobID, model.StageFetch, err)
	}

	trackPath, err := w.stageTrack(jobCtx, scratch, &payload)
	if err != nil {
		return w.stageFailed(ctx, jobID, model.StageFetch, err)
	}

	// Stage 2: mix
	if err := w.advance(ctx, jobID, model.JobStatusMixing, model.StageMix); err != nil {
		return w.advanceFailed(ctx, jobID, model.StageMix, err)
	}
	mixedPath := filepath.Join(scratch, "mixed.m4a")
	if err := w.mixer.Mix(jobCtx, clipPaths, trackPath, payload.VolumeMix, mixedPath); err != nil {
		return w.stageFailed(ctx, jobID, model.StageMix, err)
	}

	// Stage 3: encode
	if err := w.advance(ctx, jobID, model.JobStatusEncoding, model.StageEncode); err != nil {
		return w.advanceFailed(ctx, jobID, model.StageEncode, err)
	}
	outPath := filepath.Join(scratch, "reel.mp4")
	if err := w.composer.Compose(jobCtx, clipPaths, mixedPath, payload.Quality, outPath); err != nil {
		return w.stageFailed(ctx, jobID, model.StageEncode, err)
	}

	// Stage 4: store. Re-check cancellation first so a partial or
	// cancelled job never exposes an artifact.
	if w.compileService.IsCancelled(ctx, jobID) {
		log.Printf("Compile job %s cancelled before store", jobID)
		return nil
	}
	outputURI, err := w.artifacts.Store(jobCtx, payload.OwnerID, jobID, outPath)
	if err != nil {
		return w.stageFailed(ctx, jobID, model.StageStore, err)
	}

	if err := w.compileService.CompleteJob(ctx, jobID, outputURI); err != nil {
		if errors.Is(err, service.ErrJobTerminal) {
			return nil
		}
		w.failJob(ctx, jobID, model.StageStore, model.FailureInternal, "failed to record result")
		return err
	}

	w.hub.BroadcastComplete(jobID, outputURI)
	log.Printf("Compile job %s completed", jobID)
	return nil
}

// stageTrack resolves the optional background track reference and
// stages the audio file into scratch storage. Built-in tracks come
// from the shared library prefix, custom tracks from the owner's
// storage path (ownership checked again here — the reference was
// validated at submission, but records are the source of truth).
func (w *CompileWorker) stageTrack(ctx context.Context, scratch string, payload *model.CompileJobPayload) (string, error) {
	ref := payload.AudioTrack
	if ref == nil {
		return "", nil
	}

	var key string
	switch ref.Kind {
	case model.TrackKindBuiltIn:
		key = service.BuiltInTrackKey(ref.ID)
	case model.TrackKindCustom:
		track, err := w.trackService.Get(ctx, ref.ID)
		if err != nil {
			return "", &media.InputError{URL: ref.ID, Err: err}
		}
		if track.OwnerID != payload.OwnerID {
			return "", &media.InputError{URL: ref.ID, Err: service.ErrTrackNotFound}
		}
		key = track.StoragePath
	default:
		return "", &media.InputError{URL: ref.ID, Err: fmt.Errorf("unknown track kind %q", ref.Kind)}
	}

	if w.storage == nil {
		return "", &media.InputError{URL: key, Err: fmt.Errorf("track storage not configured")}
	}

	body, _, err := w.storage.Download(ctx, key)
	if err != nil {
		return "", &media.InputError{URL: key, Err: err}
	}
	defer body.Close()

	dest := filepath.Join(scratch, "track"+filepath.Ext(key))
	file, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		return "", &media.InputError{URL: key, Err: err}
	}
	return dest, nil
}

// watchCancel polls the registry's cancel flag and aborts the job
// context when it is raised.
func (w *CompileWorker) watchCancel(ctx context.Context, jobID string, cancel context.CancelFunc) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.compileService.IsCancelled(ctx, jobID) {
				cancel()
				return
			}
		}
	}
}

// advance moves the job to the next state and broadcasts it.
// ErrJobTerminal means a cancellation won the race; the caller stops.
func (w *CompileWorker) advance(ctx context.Context, jobID string, status model.JobStatus, stage model.Stage) error {
	if err := w.compileService.AdvanceStage(ctx, jobID, status); err != nil {
		if errors.Is(err, service.ErrJobTerminal) {
			log.Printf("Compile job %s already terminal, stopping", jobID)
		} else {
			log.Printf("Failed to advance job %s: %v", jobID, err)
		}
		return err
	}
	w.hub.BroadcastProgress(jobID, status, stage)
	return nil
}

// advanceFailed handles a refused state transition. A terminal job
// means cancellation won the race and the work simply stops; any
// other cause is a registry fault — the job must be sealed if at all
// possible and the task reported failed, never left dangling in a
// non-terminal state with its track reference held.
func (w *CompileWorker) advanceFailed(ctx context.Context, jobID string, stage model.Stage, err error) error {
	if errors.Is(err, service.ErrJobTerminal) {
		return nil
	}
	w.failJob(ctx, jobID, stage, model.FailureInternal, "failed to record job progress")
	return err
}

// stageFailed classifies a stage error and seals the job with it.
func (w *CompileWorker) stageFailed(ctx context.Context, jobID string, stage model.Stage, err error) error {
	code := model.FailureInternal
	msg := err.Error()

	var inputErr *media.InputError
	switch {
	case errors.As(err, &inputErr):
		code = model.FailureInputUnavailable
		msg = fmt.Sprintf("source unavailable: %s", inputErr.URL)
	case errors.Is(err, context.DeadlineExceeded):
		code = model.FailureTimeout
		msg = "processing timed out"
	case errors.Is(err, context.Canceled):
		// The cancel endpoint already sealed the job; nothing to record.
		log.Printf("Compile job %s cancelled during %s", jobID, stage)
		return nil
	}

	w.failJob(ctx, jobID, stage, code, msg)
	return err
}

func (w *CompileWorker) failJob(ctx context.Context, jobID string, stage model.Stage, code model.FailureCode, msg string) {
	jobErr := model.JobError{Stage: stage, Code: code, Message: msg}
	if err := w.compileService.FailJob(ctx, jobID, jobErr); err != nil {
		if !errors.Is(err, service.ErrJobTerminal) {
			log.Printf("Failed to mark job %s as failed: %v", jobID, err)
		}
		return
	}
	w.hub.BroadcastError(jobID, jobErr)
}
