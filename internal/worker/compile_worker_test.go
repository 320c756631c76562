package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fanreel/api/internal/config"
	"github.com/fanreel/api/internal/media"
	"github.com/fanreel/api/internal/model"
	"github.com/fanreel/api/internal/service"
	"github.com/fanreel/api/internal/websocket"
)

func compileTask(t *testing.T, jobID string, payload model.CompileJobPayload) *asynq.Task {
	t.Helper()
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payloadBytes),
	})
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	return asynq.NewTask(service.TaskTypeCompile, data)
}

// A registry that cannot be reached must surface as a task failure:
// returning nil would make the queue record success while the job
// stays non-terminal forever.
func TestProcessTask_RegistryUnavailableReportsFailure(t *testing.T) {
	deadRedis := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})

	compileService := service.NewCompileService(deadRedis, nil)
	trackService := service.NewTrackService(deadRedis, nil)
	artifacts := service.NewArtifactService(nil)
	runner := media.NewRunner("")
	fetcher := media.NewFetcher(config.FetchConfig{})
	mixer := media.NewMixer(runner)
	composer := media.NewComposer(runner, config.EncodeConfig{})
	hub := websocket.NewHub()

	w := NewCompileWorker(
		compileService, trackService, artifacts,
		nil, fetcher, mixer, composer, hub,
		t.TempDir(),
	)

	task := compileTask(t, "job-registry-down", model.CompileJobPayload{
		OwnerID:    "owner-1",
		InputClips: []string{"https://clips.example.com/a.mp4"},
		VolumeMix:  model.VolumeMix{Original: 0.7, Music: 0.3},
		Quality:    model.QualityFast,
	})

	err := w.ProcessTask(context.Background(), task)
	if err == nil {
		t.Fatal("expected ProcessTask to report failure when the registry is unreachable")
	}
}
